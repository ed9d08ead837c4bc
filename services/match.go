package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"marketplace_watcher/models"
)

var ErrMatchNotFound = errors.New("Match not found")

// MatchStore is the storage behind match browsing
type MatchStore interface {
	GetMonitorForUser(ctx context.Context, id uuid.UUID, userID string) (*models.Monitor, error)
	ListMatches(ctx context.Context, monitorID uuid.UUID, q models.MatchQuery) ([]models.MatchWithListing, error)
	GetPriceHistory(ctx context.Context, listingIDs []string) (map[string][]models.PriceHistory, error)
	GetMatchStats(ctx context.Context, monitorID uuid.UUID) (models.MatchStats, error)
	MarkMatchNotified(ctx context.Context, matchID uuid.UUID, userID string) (bool, error)
	MarkAllMatchesNotified(ctx context.Context, monitorID uuid.UUID, userID string) (int64, error)
}

// MatchService exposes a monitor's matches to its owner
type MatchService struct {
	store MatchStore
}

func NewMatchService(store MatchStore) *MatchService {
	return &MatchService{store: store}
}

func (s *MatchService) ownedMonitor(ctx context.Context, monitorID uuid.UUID, userID string) error {
	m, err := s.store.GetMonitorForUser(ctx, monitorID, userID)
	if err != nil {
		return fmt.Errorf("get monitor: %w", err)
	}
	if m == nil {
		return ErrMonitorNotFound
	}
	return nil
}

// List returns one page of matches with each listing's price history
// attached, newest price first.
func (s *MatchService) List(ctx context.Context, monitorID uuid.UUID, userID string, q models.MatchQuery) ([]models.MatchWithListing, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, &ValidationError{Field: "query", Message: err.Error()}
	}
	if err := s.ownedMonitor(ctx, monitorID, userID); err != nil {
		return nil, err
	}

	matches, err := s.store.ListMatches(ctx, monitorID, q)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	if len(matches) == 0 {
		return []models.MatchWithListing{}, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Listing.ID)
	}
	history, err := s.store.GetPriceHistory(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get price history: %w", err)
	}

	for i := range matches {
		matches[i].PriceHistory = history[matches[i].Listing.ID]
		if matches[i].PriceHistory == nil {
			matches[i].PriceHistory = []models.PriceHistory{}
		}
	}
	return matches, nil
}

func (s *MatchService) MarkNotified(ctx context.Context, matchID uuid.UUID, userID string) error {
	ok, err := s.store.MarkMatchNotified(ctx, matchID, userID)
	if err != nil {
		return fmt.Errorf("mark match notified: %w", err)
	}
	if !ok {
		return ErrMatchNotFound
	}
	return nil
}

// MarkAllNotified returns how many matches were flipped.
func (s *MatchService) MarkAllNotified(ctx context.Context, monitorID uuid.UUID, userID string) (int64, error) {
	if err := s.ownedMonitor(ctx, monitorID, userID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllMatchesNotified(ctx, monitorID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notified: %w", err)
	}
	return n, nil
}

func (s *MatchService) Stats(ctx context.Context, monitorID uuid.UUID, userID string) (models.MatchStats, error) {
	if err := s.ownedMonitor(ctx, monitorID, userID); err != nil {
		return models.MatchStats{}, err
	}
	stats, err := s.store.GetMatchStats(ctx, monitorID)
	if err != nil {
		return models.MatchStats{}, fmt.Errorf("match stats: %w", err)
	}
	return stats, nil
}
