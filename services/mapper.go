package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"marketplace_watcher/identity"
	"marketplace_watcher/models"
)

var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// MapListing converts a raw marketplace item into the stored listing shape.
// It never fails: missing fields fall back to empty values.
func MapListing(raw models.RawListing, now time.Time) models.Listing {
	url := raw.ListingURL
	if url == "" {
		url = raw.FacebookURL
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = identity.ListingIDFromURL(url)
	}

	listing := models.Listing{
		ID:             id,
		Title:          raw.MarketplaceListingTitle,
		Price:          ParsePriceCents(raw.ListingPrice),
		Photos:         []string{},
		MarketplaceURL: identity.CanonicalListingURL(url),
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}

	if raw.PrimaryListingPhoto != nil && raw.PrimaryListingPhoto.PhotoImageURL != "" {
		photo := raw.PrimaryListingPhoto.PhotoImageURL
		listing.PrimaryPhotoURL = &photo
	}

	if raw.Location != nil && raw.Location.ReverseGeocode != nil {
		geo := raw.Location.ReverseGeocode
		if geo.City != "" {
			city := geo.City
			listing.Location = &city
		}
		details := &models.LocationDetails{City: geo.City, State: geo.State}
		if geo.CityPage != nil {
			details.CityPageID = geo.CityPage.ID
			details.CityDisplayName = geo.CityPage.DisplayName
		}
		listing.LocationDetails = details
	}

	return listing
}

// ParsePriceCents returns the price in minor units. The offset amount is
// already in cents; the decimal amount and the formatted label are scaled.
// Anything unparseable is 0.
func ParsePriceCents(p *models.RawPrice) int64 {
	if p == nil {
		return 0
	}

	if v, err := decimal.NewFromString(strings.TrimSpace(p.AmountWithOffsetInCurrency)); err == nil {
		return v.IntPart()
	}
	if v, err := decimal.NewFromString(strings.TrimSpace(p.Amount)); err == nil {
		return v.Shift(2).Round(0).IntPart()
	}

	cleaned := nonPriceChars.ReplaceAllString(p.FormattedAmount, "")
	if v, err := decimal.NewFromString(cleaned); err == nil {
		return v.Shift(2).Round(0).IntPart()
	}
	return 0
}
