package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/models"
)

// memStore is an in-memory stand-in for PostgresStore used by service tests
type memStore struct {
	mu       sync.Mutex
	users    map[string]string
	monitors map[uuid.UUID]*models.Monitor
	listings map[string]*models.Listing
	history  []models.PriceHistory
	matches  []*models.Match
	settings map[string]*models.NotificationSettings

	inserts        int
	failInsertOnID string
	settingsReads  int
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]string),
		monitors: make(map[uuid.UUID]*models.Monitor),
		listings: make(map[string]*models.Listing),
		settings: make(map[string]*models.NotificationSettings),
	}
}

func (s *memStore) addMonitor(userID, url string, active bool) *models.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.Monitor{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "monitor " + url,
		URL:            url,
		CheckFrequency: models.FrequencyDaily,
		IsActive:       active,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.monitors[m.ID] = m
	return m
}

func (s *memStore) historyFor(listingID string) []models.PriceHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PriceHistory
	for _, ph := range s.history {
		if ph.ListingID == listingID {
			out = append(out, ph)
		}
	}
	return out
}

func (s *memStore) matchesFor(monitorID uuid.UUID) []models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.MonitorID == monitorID {
			out = append(out, *m)
		}
	}
	return out
}

// RunnerStore

func (s *memStore) GetMonitor(_ context.Context, id uuid.UUID) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) GetListing(_ context.Context, id string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) InsertListing(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertOnID != "" && l.ID == s.failInsertOnID {
		return errors.New("connection reset")
	}
	cp := *l
	s.listings[l.ID] = &cp
	s.inserts++
	return nil
}

func (s *memStore) UpdateListing(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.listings[l.ID]
	if !ok {
		return errors.New("not found")
	}
	cp := *l
	cp.FirstSeenAt = existing.FirstSeenAt
	if existing.LastSeenAt.After(cp.LastSeenAt) {
		cp.LastSeenAt = existing.LastSeenAt
	}
	s.listings[l.ID] = &cp
	return nil
}

func (s *memStore) TouchListing(_ context.Context, id string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; ok && seenAt.After(l.LastSeenAt) {
		l.LastSeenAt = seenAt
	}
	return nil
}

func (s *memStore) AddPriceHistory(_ context.Context, ph *models.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ph.ID = int64(len(s.history) + 1)
	s.history = append(s.history, *ph)
	s.inserts++
	return nil
}

func (s *memStore) GetMatch(_ context.Context, monitorID uuid.UUID, listingID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.MonitorID == monitorID && m.ListingID == listingID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.matches {
		if existing.MonitorID == m.MonitorID && existing.ListingID == m.ListingID {
			return nil
		}
	}
	cp := *m
	s.matches = append(s.matches, &cp)
	s.inserts++
	return nil
}

// MonitorStore

func (s *memStore) EnsureUser(_ context.Context, id, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email != "" || s.users[id] == "" {
		s.users[id] = email
	}
	return nil
}

func (s *memStore) CreateMonitor(_ context.Context, m *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[m.UserID]; !ok {
		return errors.New("foreign key violation: users")
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

func (s *memStore) GetMonitorForUser(_ context.Context, id uuid.UUID, userID string) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok || m.UserID != userID {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListMonitorsByUser(_ context.Context, userID string) ([]models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Monitor
	for _, m := range s.monitors {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) UpdateMonitor(_ context.Context, m *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.monitors[m.ID]
	if !ok || existing.UserID != m.UserID {
		return errors.New("monitor not found")
	}
	m.UpdatedAt = time.Now()
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

func (s *memStore) DeleteMonitor(_ context.Context, id uuid.UUID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok || m.UserID != userID {
		return false, nil
	}
	delete(s.monitors, id)
	kept := s.matches[:0]
	for _, match := range s.matches {
		if match.MonitorID != id {
			kept = append(kept, match)
		}
	}
	s.matches = kept
	return true, nil
}

// MatchStore

func (s *memStore) ListMatches(_ context.Context, monitorID uuid.UUID, q models.MatchQuery) ([]models.MatchWithListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MatchWithListing
	for _, m := range s.matches {
		if m.MonitorID != monitorID || (q.OnlyUnread && m.IsNotified) {
			continue
		}
		out = append(out, models.MatchWithListing{Match: *m, Listing: *s.listings[m.ListingID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		if q.SortBy == models.SortByPrice {
			less = out[i].Listing.Price < out[j].Listing.Price
		} else {
			less = out[i].MatchedAt.Before(out[j].MatchedAt)
		}
		if q.Order == models.OrderDesc {
			return !less
		}
		return less
	})
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) GetPriceHistory(_ context.Context, listingIDs []string) (map[string][]models.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool)
	for _, id := range listingIDs {
		want[id] = true
	}
	out := make(map[string][]models.PriceHistory)
	for i := len(s.history) - 1; i >= 0; i-- {
		ph := s.history[i]
		if want[ph.ListingID] {
			out[ph.ListingID] = append(out[ph.ListingID], ph)
		}
	}
	return out, nil
}

func (s *memStore) GetMatchStats(_ context.Context, monitorID uuid.UUID) (models.MatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.MatchStats
	for _, m := range s.matches {
		if m.MonitorID == monitorID {
			stats.TotalMatches++
			if !m.IsNotified {
				stats.UnnotifiedMatches++
			}
		}
	}
	return stats, nil
}

func (s *memStore) MarkMatchNotified(_ context.Context, matchID uuid.UUID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == matchID {
			if mon, ok := s.monitors[m.MonitorID]; !ok || mon.UserID != userID {
				return false, nil
			}
			m.IsNotified = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarkAllMatchesNotified(_ context.Context, monitorID uuid.UUID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mon, ok := s.monitors[monitorID]
	if !ok || mon.UserID != userID {
		return 0, nil
	}
	var n int64
	for _, m := range s.matches {
		if m.MonitorID == monitorID && !m.IsNotified {
			m.IsNotified = true
			n++
		}
	}
	return n, nil
}

// SettingsStore

func (s *memStore) GetNotificationSettings(_ context.Context, userID string) (*models.NotificationSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsReads++
	ns, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *ns
	return &cp, nil
}

func (s *memStore) SaveNotificationSettings(_ context.Context, ns *models.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.settings[ns.UserID]; ok {
		ns.LastSentAt = existing.LastSentAt
	}
	cp := *ns
	s.settings[ns.UserID] = &cp
	return nil
}

func (s *memStore) MarkDigestSent(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.settings[userID]
	if !ok {
		d := models.DefaultNotificationSettings(userID)
		ns = &d
		s.settings[userID] = ns
	}
	ns.LastSentAt = &at
	return nil
}

// fakeSource returns canned listings per search URL
type fakeSource struct {
	mu       sync.Mutex
	listings map[string][]models.RawListing
	err      error
	calls    int
}

func (f *fakeSource) FetchListings(_ context.Context, url string) ([]models.RawListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings[url], nil
}

func (f *fakeSource) set(url string, raws ...models.RawListing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listings == nil {
		f.listings = make(map[string][]models.RawListing)
	}
	f.listings[url] = raws
}

func rawItem(id string, cents string) models.RawListing {
	return models.RawListing{
		ID:                      id,
		ListingURL:              "https://www.facebook.com/marketplace/item/" + id + "/",
		MarketplaceListingTitle: "item " + id,
		ListingPrice:            &models.RawPrice{AmountWithOffsetInCurrency: cents},
	}
}
