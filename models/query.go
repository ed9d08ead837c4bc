package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchSort string

const (
	SortByDate  MatchSort = "date"
	SortByPrice MatchSort = "price"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

const (
	DefaultMatchLimit = 20
	MaxMatchLimit     = 100
)

// MatchQuery filters and pages the matches of one monitor
type MatchQuery struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	SortBy     MatchSort
	Order      SortOrder
}

// Normalize applies defaults and rejects out-of-range values.
func (q MatchQuery) Normalize() (MatchQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultMatchLimit
	}
	if q.Limit < 1 || q.Limit > MaxMatchLimit {
		return q, fmt.Errorf("limit must be between 1 and %d", MaxMatchLimit)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("offset must not be negative")
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortByDate
	case SortByDate, SortByPrice:
	default:
		return q, fmt.Errorf("invalid sort field %q", q.SortBy)
	}
	switch q.Order {
	case "":
		q.Order = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		return q, fmt.Errorf("invalid sort order %q", q.Order)
	}
	return q, nil
}

// DigestItem is one unnotified match ready to be delivered
type DigestItem struct {
	MatchID     uuid.UUID `json:"matchId"`
	MonitorID   uuid.UUID `json:"monitorId"`
	MonitorName string    `json:"monitorName"`
	ListingID   string    `json:"listingId"`
	Title       string    `json:"title"`
	Price       int64     `json:"price"`
	URL         string    `json:"url"`
	MatchedAt   time.Time `json:"matchedAt"`
}
