package services

import (
	"context"
	"log"

	"marketplace_watcher/models"
)

// Notifier delivers messages to a user's inbox
type Notifier interface {
	SendTest(ctx context.Context, userID, email string) error
	SendDigest(ctx context.Context, userID string, items []models.DigestItem) error
}

// LogNotifier writes notifications to the log instead of sending email.
type LogNotifier struct{}

func (LogNotifier) SendTest(_ context.Context, userID, email string) error {
	log.Printf("Notifier: test notification to %s for user %s", email, userID)
	return nil
}

func (LogNotifier) SendDigest(_ context.Context, userID string, items []models.DigestItem) error {
	log.Printf("Notifier: digest for user %s with %d matches", userID, len(items))
	for _, it := range items {
		log.Printf("Notifier:   [%s] %s %d %s", it.MonitorName, it.Title, it.Price, it.URL)
	}
	return nil
}
