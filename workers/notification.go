package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/metrics"
	"marketplace_watcher/models"
	"marketplace_watcher/services"
)

const digestItemLimit = 50

// DigestStore is the match storage the notification worker needs
type DigestStore interface {
	ListUsersWithPendingMatches(ctx context.Context) ([]string, error)
	ListPendingDigestItems(ctx context.Context, userID string, limit int) ([]models.DigestItem, error)
	MarkMatchesNotified(ctx context.Context, ids []uuid.UUID) error
	MarkDigestSent(ctx context.Context, userID string, at time.Time) error
}

// SettingsReader resolves a user's notification preferences
type SettingsReader interface {
	Settings(ctx context.Context, userID string) (models.NotificationSettings, error)
	Forget(userID string)
}

// NotificationWorker delivers digests of unnotified matches, honouring each
// user's email settings
type NotificationWorker struct {
	store     DigestStore
	settings  SettingsReader
	notifier  services.Notifier
	triggerCh chan struct{}
	logFunc   LogFunc
	now       func() time.Time
}

func NewNotificationWorker(store DigestStore, settings SettingsReader, notifier services.Notifier) *NotificationWorker {
	return &NotificationWorker{
		store:     store,
		settings:  settings,
		notifier:  notifier,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
		now:       time.Now,
	}
}

func (w *NotificationWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *NotificationWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the notification worker loop
func (w *NotificationWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		case <-w.triggerCh:
			w.processBatch(ctx)
		}
	}
}

func (w *NotificationWorker) processBatch(ctx context.Context) {
	users, err := w.store.ListUsersWithPendingMatches(ctx)
	if err != nil {
		log.Printf("Notifications: query error: %v", err)
		return
	}

	sent := 0
	for _, userID := range users {
		ok, err := w.deliver(ctx, userID)
		if err != nil {
			log.Printf("Notifications: user %s: %v", userID, err)
			w.logFunc(models.LogLevelError, "notifications", fmt.Sprintf("user %s: %v", userID, err))
			continue
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		log.Printf("Notifications: sent %d digests", sent)
	}
}

// deliver sends one digest if the user is due one. It reports whether a
// digest went out.
func (w *NotificationWorker) deliver(ctx context.Context, userID string) (bool, error) {
	settings, err := w.settings.Settings(ctx, userID)
	if err != nil {
		return false, err
	}
	now := w.now()
	if !settings.DigestDue(now) {
		return false, nil
	}

	items, err := w.store.ListPendingDigestItems(ctx, userID, digestItemLimit)
	if err != nil {
		return false, fmt.Errorf("list pending: %w", err)
	}
	if len(items) == 0 {
		return false, nil
	}

	if err := w.notifier.SendDigest(ctx, userID, items); err != nil {
		return false, fmt.Errorf("send digest: %w", err)
	}

	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.MatchID
	}
	if err := w.store.MarkMatchesNotified(ctx, ids); err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	if err := w.store.MarkDigestSent(ctx, userID, now); err != nil {
		return false, fmt.Errorf("mark digest sent: %w", err)
	}
	w.settings.Forget(userID)

	metrics.NotificationsSentTotal.Inc()
	return true, nil
}
