package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"marketplace_watcher/models"
)

const settingsCacheSize = 1024

// SettingsStore persists per-user notification settings
type SettingsStore interface {
	GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, ns *models.NotificationSettings) error
}

// SettingsInput is the payload for updating notification settings
type SettingsInput struct {
	EmailEnabled   bool   `json:"emailEnabled"`
	EmailFrequency string `json:"emailFrequency"`
}

// TestNotificationResult is returned after a test send
type TestNotificationResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

// NotificationService reads and writes notification settings through an LRU
// cache in front of the store.
type NotificationService struct {
	store    SettingsStore
	notifier Notifier
	cache    *lru.Cache[string, models.NotificationSettings]
	now      func() time.Time
}

func NewNotificationService(store SettingsStore, notifier Notifier) (*NotificationService, error) {
	cache, err := lru.New[string, models.NotificationSettings](settingsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create settings cache: %w", err)
	}
	return &NotificationService{
		store:    store,
		notifier: notifier,
		cache:    cache,
		now:      time.Now,
	}, nil
}

// Settings returns the stored settings, or the defaults when the user never
// saved any.
func (s *NotificationService) Settings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	if ns, ok := s.cache.Get(userID); ok {
		return ns, nil
	}

	stored, err := s.store.GetNotificationSettings(ctx, userID)
	if err != nil {
		return models.NotificationSettings{}, fmt.Errorf("get notification settings: %w", err)
	}

	ns := models.DefaultNotificationSettings(userID)
	if stored != nil {
		ns = *stored
	}
	s.cache.Add(userID, ns)
	return ns, nil
}

func (s *NotificationService) Update(ctx context.Context, userID string, in SettingsInput) (models.NotificationSettings, error) {
	freq, err := models.ParseEmailFrequency(in.EmailFrequency)
	if err != nil {
		return models.NotificationSettings{}, &ValidationError{Field: "emailFrequency", Message: err.Error()}
	}

	ns := models.NotificationSettings{
		UserID:         userID,
		EmailEnabled:   in.EmailEnabled,
		EmailFrequency: freq,
	}
	if err := s.store.SaveNotificationSettings(ctx, &ns); err != nil {
		s.cache.Remove(userID)
		return models.NotificationSettings{}, fmt.Errorf("save notification settings: %w", err)
	}
	s.cache.Add(userID, ns)
	return ns, nil
}

// Forget drops a cached entry after the store was written elsewhere.
func (s *NotificationService) Forget(userID string) {
	s.cache.Remove(userID)
}

func (s *NotificationService) SendTest(ctx context.Context, userID, email string) (*TestNotificationResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "must not be empty"}
	}
	if err := s.notifier.SendTest(ctx, userID, email); err != nil {
		return nil, fmt.Errorf("send test notification: %w", err)
	}
	return &TestNotificationResult{
		Success: true,
		Message: "Test notification sent to " + email,
		SentAt:  s.now().UTC(),
	}, nil
}
