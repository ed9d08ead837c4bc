package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/metrics"
	"marketplace_watcher/models"
)

var (
	ErrMonitorNotFound = errors.New("Monitor not found")
	ErrMonitorInactive = errors.New("Monitor is not active")
)

// ListingSource fetches the current listings behind a marketplace search URL
type ListingSource interface {
	FetchListings(ctx context.Context, searchURL string) ([]models.RawListing, error)
}

// RunnerStore is the storage the reconciliation needs
type RunnerStore interface {
	GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	TouchListing(ctx context.Context, id string, seenAt time.Time) error
	AddPriceHistory(ctx context.Context, ph *models.PriceHistory) error
	GetMatch(ctx context.Context, monitorID uuid.UUID, listingID string) (*models.Match, error)
	CreateMatch(ctx context.Context, m *models.Match) error
}

// MonitorRunner reconciles one monitor's search results against storage
type MonitorRunner struct {
	store  RunnerStore
	source ListingSource
	now    func() time.Time
}

func NewMonitorRunner(store RunnerStore, source ListingSource) *MonitorRunner {
	return &MonitorRunner{
		store:  store,
		source: source,
		now:    time.Now,
	}
}

// Run fetches the monitor's listings and applies the writes needed to bring
// storage in line: new listings are inserted, price changes are recorded,
// unchanged listings get their last-seen bumped and every observed listing
// gets a match for this monitor. Failures never escape as errors; they are
// reported in the result with both id lists empty. Writes made before a
// failure are kept.
func (r *MonitorRunner) Run(ctx context.Context, monitorID uuid.UUID) models.MonitorRunResult {
	changed, total, err := r.reconcile(ctx, monitorID)
	if err != nil {
		log.Printf("MonitorRunner: monitor %s failed: %v", monitorID, err)
		metrics.MonitorRunsTotal.WithLabelValues(string(models.StatusError)).Inc()
		return models.ErrorResult(err.Error())
	}

	metrics.MonitorRunsTotal.WithLabelValues(string(models.StatusSuccess)).Inc()
	return models.SuccessResult(changed, total)
}

func (r *MonitorRunner) reconcile(ctx context.Context, monitorID uuid.UUID) (changed, total []string, err error) {
	monitor, err := r.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, nil, fmt.Errorf("get monitor: %w", err)
	}
	if monitor == nil {
		return nil, nil, ErrMonitorNotFound
	}
	if !monitor.IsActive {
		return nil, nil, ErrMonitorInactive
	}

	raws, err := r.source.FetchListings(ctx, monitor.URL)
	if err != nil {
		return nil, nil, err
	}
	if len(raws) == 0 {
		return nil, nil, nil
	}

	changed = []string{}
	total = []string{}

	for _, raw := range raws {
		listing := MapListing(raw, r.now())
		if listing.ID == "" {
			log.Printf("Warning: monitor %s: skipping listing without id (%s)", monitorID, raw.MarketplaceListingTitle)
			continue
		}
		total = append(total, listing.ID)
		metrics.ListingsObservedTotal.Inc()

		isChanged, err := r.reconcileListing(ctx, &listing)
		if err != nil {
			return nil, nil, err
		}
		if isChanged {
			changed = append(changed, listing.ID)
			metrics.ListingsChangedTotal.Inc()
		}

		if err := r.ensureMatch(ctx, monitorID, listing.ID); err != nil {
			return nil, nil, err
		}
	}

	return changed, total, nil
}

// reconcileListing writes one observed listing and reports whether it is new
// or its price moved.
func (r *MonitorRunner) reconcileListing(ctx context.Context, listing *models.Listing) (bool, error) {
	existing, err := r.store.GetListing(ctx, listing.ID)
	if err != nil {
		return false, fmt.Errorf("get listing %s: %w", listing.ID, err)
	}

	if existing == nil {
		if err := r.store.InsertListing(ctx, listing); err != nil {
			return false, fmt.Errorf("insert listing %s: %w", listing.ID, err)
		}
		if err := r.recordPrice(ctx, listing); err != nil {
			return false, err
		}
		return true, nil
	}

	if existing.Price != listing.Price {
		listing.FirstSeenAt = existing.FirstSeenAt
		if err := r.store.UpdateListing(ctx, listing); err != nil {
			return false, fmt.Errorf("update listing %s: %w", listing.ID, err)
		}
		if err := r.recordPrice(ctx, listing); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := r.store.TouchListing(ctx, listing.ID, listing.LastSeenAt); err != nil {
		return false, fmt.Errorf("touch listing %s: %w", listing.ID, err)
	}
	return false, nil
}

func (r *MonitorRunner) recordPrice(ctx context.Context, listing *models.Listing) error {
	ph := &models.PriceHistory{
		ListingID:  listing.ID,
		Price:      listing.Price,
		RecordedAt: r.now(),
	}
	if err := r.store.AddPriceHistory(ctx, ph); err != nil {
		return fmt.Errorf("add price history %s: %w", listing.ID, err)
	}
	metrics.PriceHistoryRowsTotal.Inc()
	return nil
}

func (r *MonitorRunner) ensureMatch(ctx context.Context, monitorID uuid.UUID, listingID string) error {
	existing, err := r.store.GetMatch(ctx, monitorID, listingID)
	if err != nil {
		return fmt.Errorf("get match %s: %w", listingID, err)
	}
	if existing != nil {
		return nil
	}

	match := &models.Match{
		ID:         uuid.New(),
		MonitorID:  monitorID,
		ListingID:  listingID,
		MatchedAt:  r.now(),
		IsNotified: false,
	}
	if err := r.store.CreateMatch(ctx, match); err != nil {
		return fmt.Errorf("create match %s: %w", listingID, err)
	}
	metrics.MatchesCreatedTotal.Inc()
	return nil
}
