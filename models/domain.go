package models

import (
	"time"

	"github.com/google/uuid"
)

// Monitor is a saved marketplace search owned by a user
type Monitor struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	UserID         string         `json:"userId" db:"user_id"`
	Name           string         `json:"name" db:"name"`
	URL            string         `json:"url" db:"url"`
	CheckFrequency CheckFrequency `json:"checkFrequency" db:"check_frequency"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// LocationDetails is the structured location attached to a listing
type LocationDetails struct {
	City            string `json:"city"`
	State           string `json:"state"`
	CityPageID      string `json:"cityPageId"`
	CityDisplayName string `json:"cityDisplayName"`
}

// Listing is the canonical, deduplicated form of one marketplace item.
// ID is the marketplace's own item identifier.
type Listing struct {
	ID                 string           `json:"id" db:"id"`
	Title              string           `json:"title" db:"title"`
	Price              int64            `json:"price" db:"price"` // minor units (cents)
	Location           *string          `json:"location" db:"location"`
	LocationDetails    *LocationDetails `json:"locationDetails" db:"location_details"`
	Photos             []string         `json:"photos" db:"photos"`
	PrimaryPhotoURL    *string          `json:"primaryPhotoUrl" db:"primary_photo_url"`
	MarketplaceURL     string           `json:"marketplaceUrl" db:"marketplace_url"`
	Description        *string          `json:"description" db:"description"`
	EnrichmentAttempts int              `json:"-" db:"enrichment_attempts"`
	FirstSeenAt        time.Time        `json:"firstSeenAt" db:"first_seen_at"`
	LastSeenAt         time.Time        `json:"lastSeenAt" db:"last_seen_at"`
}

// PriceHistory is one observed price for a listing
type PriceHistory struct {
	ID         int64     `json:"id" db:"id"`
	ListingID  string    `json:"listingId" db:"listing_id"`
	Price      int64     `json:"price" db:"price"`
	RecordedAt time.Time `json:"recordedAt" db:"recorded_at"`
}

// Match records that a monitor has observed a listing at least once
type Match struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MonitorID  uuid.UUID `json:"monitorId" db:"monitor_id"`
	ListingID  string    `json:"listingId" db:"listing_id"`
	MatchedAt  time.Time `json:"matchedAt" db:"matched_at"`
	IsNotified bool      `json:"isNotified" db:"is_notified"`
}

// MatchWithListing is a match joined with its listing and price history
type MatchWithListing struct {
	Match
	Listing      Listing        `json:"listing"`
	PriceHistory []PriceHistory `json:"priceHistory"`
}

// MatchStats summarises the matches of one monitor
type MatchStats struct {
	TotalMatches      int `json:"totalMatches"`
	UnnotifiedMatches int `json:"unnotifiedMatches"`
}

// User is the local record of an identity-provider user
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
