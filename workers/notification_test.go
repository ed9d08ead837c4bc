package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/models"
)

type memDigestStore struct {
	pending  map[string][]models.DigestItem
	notified map[uuid.UUID]bool
	sentAt   map[string]time.Time
}

func (s *memDigestStore) ListUsersWithPendingMatches(context.Context) ([]string, error) {
	var users []string
	for u, items := range s.pending {
		for _, it := range items {
			if !s.notified[it.MatchID] {
				users = append(users, u)
				break
			}
		}
	}
	return users, nil
}

func (s *memDigestStore) ListPendingDigestItems(_ context.Context, userID string, limit int) ([]models.DigestItem, error) {
	var out []models.DigestItem
	for _, it := range s.pending[userID] {
		if !s.notified[it.MatchID] && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memDigestStore) MarkMatchesNotified(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		s.notified[id] = true
	}
	return nil
}

func (s *memDigestStore) MarkDigestSent(_ context.Context, userID string, at time.Time) error {
	s.sentAt[userID] = at
	return nil
}

type staticSettings struct {
	byUser    map[string]models.NotificationSettings
	forgotten []string
}

func (s *staticSettings) Settings(_ context.Context, userID string) (models.NotificationSettings, error) {
	if ns, ok := s.byUser[userID]; ok {
		return ns, nil
	}
	return models.DefaultNotificationSettings(userID), nil
}

func (s *staticSettings) Forget(userID string) {
	s.forgotten = append(s.forgotten, userID)
}

type countingNotifier struct {
	digests map[string]int
	err     error
}

func (n *countingNotifier) SendTest(context.Context, string, string) error { return n.err }

func (n *countingNotifier) SendDigest(_ context.Context, userID string, items []models.DigestItem) error {
	if n.err != nil {
		return n.err
	}
	n.digests[userID] += len(items)
	return nil
}

func digestItems(n int) []models.DigestItem {
	out := make([]models.DigestItem, n)
	for i := range out {
		out[i] = models.DigestItem{MatchID: uuid.New(), Title: "item"}
	}
	return out
}

func TestNotificationWorkerHonoursSettings(t *testing.T) {
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)

	store := &memDigestStore{
		pending: map[string][]models.DigestItem{
			"fresh":    digestItems(2),
			"disabled": digestItems(1),
			"recent":   digestItems(1),
			"instant":  digestItems(3),
		},
		notified: make(map[uuid.UUID]bool),
		sentAt:   make(map[string]time.Time),
	}
	settings := &staticSettings{byUser: map[string]models.NotificationSettings{
		"disabled": {UserID: "disabled", EmailEnabled: false, EmailFrequency: models.EmailDaily},
		"recent":   {UserID: "recent", EmailEnabled: true, EmailFrequency: models.EmailDaily, LastSentAt: &recent},
		"instant":  {UserID: "instant", EmailEnabled: true, EmailFrequency: models.EmailImmediate, LastSentAt: &recent},
	}}
	notifier := &countingNotifier{digests: make(map[string]int)}

	w := NewNotificationWorker(store, settings, notifier)
	w.now = func() time.Time { return now }
	w.processBatch(context.Background())

	if notifier.digests["fresh"] != 2 || notifier.digests["instant"] != 3 {
		t.Errorf("expected digests for fresh and instant, got %v", notifier.digests)
	}
	if _, ok := notifier.digests["disabled"]; ok {
		t.Errorf("disabled user must not be notified")
	}
	if _, ok := notifier.digests["recent"]; ok {
		t.Errorf("daily user notified 2h ago must wait")
	}
	if !store.sentAt["fresh"].Equal(now) {
		t.Errorf("expected last sent to be recorded")
	}
	for _, it := range store.pending["fresh"] {
		if !store.notified[it.MatchID] {
			t.Errorf("expected delivered match to be marked notified")
		}
	}
	for _, it := range store.pending["recent"] {
		if store.notified[it.MatchID] {
			t.Errorf("undelivered match must stay unnotified")
		}
	}
	if len(settings.forgotten) != 2 {
		t.Errorf("expected cache invalidation for delivered users, got %v", settings.forgotten)
	}
}

func TestNotificationWorkerSendFailureKeepsMatches(t *testing.T) {
	store := &memDigestStore{
		pending:  map[string][]models.DigestItem{"u": digestItems(1)},
		notified: make(map[uuid.UUID]bool),
		sentAt:   make(map[string]time.Time),
	}
	notifier := &countingNotifier{digests: make(map[string]int), err: errors.New("smtp down")}

	w := NewNotificationWorker(store, &staticSettings{}, notifier)
	w.processBatch(context.Background())

	if store.notified[store.pending["u"][0].MatchID] {
		t.Errorf("failed delivery must not mark matches notified")
	}
	if _, ok := store.sentAt["u"]; ok {
		t.Errorf("failed delivery must not record a send")
	}
}
