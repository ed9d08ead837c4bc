package services

import (
	"context"
	"errors"
	"testing"

	"marketplace_watcher/models"
)

type recordingNotifier struct {
	tests   []string
	digests map[string][]models.DigestItem
	err     error
}

func (n *recordingNotifier) SendTest(_ context.Context, _, email string) error {
	if n.err != nil {
		return n.err
	}
	n.tests = append(n.tests, email)
	return nil
}

func (n *recordingNotifier) SendDigest(_ context.Context, userID string, items []models.DigestItem) error {
	if n.err != nil {
		return n.err
	}
	if n.digests == nil {
		n.digests = make(map[string][]models.DigestItem)
	}
	n.digests[userID] = append(n.digests[userID], items...)
	return nil
}

func TestNotificationSettingsDefaults(t *testing.T) {
	store := newMemStore()
	svc, err := NewNotificationService(store, &recordingNotifier{})
	if err != nil {
		t.Fatal(err)
	}

	ns, err := svc.Settings(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if !ns.EmailEnabled || ns.EmailFrequency != models.EmailDaily {
		t.Errorf("unexpected defaults %+v", ns)
	}

	svc.Settings(context.Background(), "u")
	if store.settingsReads != 1 {
		t.Errorf("expected cached second read, store was read %d times", store.settingsReads)
	}
}

func TestNotificationSettingsUpdate(t *testing.T) {
	store := newMemStore()
	svc, _ := NewNotificationService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Update(ctx, "u", SettingsInput{EmailEnabled: false, EmailFrequency: "weekly"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, "u", SettingsInput{EmailFrequency: "hourly"}); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	ns, _ := svc.Settings(ctx, "u")
	if ns.EmailEnabled || ns.EmailFrequency != models.EmailWeekly {
		t.Errorf("unexpected settings %+v", ns)
	}
	if store.settingsReads != 0 {
		t.Errorf("expected read from cache after update")
	}

	svc.Forget("u")
	stored, _ := svc.Settings(ctx, "u")
	if stored.EmailFrequency != models.EmailWeekly {
		t.Errorf("expected persisted weekly, got %s", stored.EmailFrequency)
	}
}

func TestNotificationSendTest(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := NewNotificationService(newMemStore(), notifier)

	res, err := svc.SendTest(context.Background(), "u", "me@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "Test notification sent to me@example.com" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(notifier.tests) != 1 {
		t.Errorf("expected one send, got %d", len(notifier.tests))
	}

	if _, err := svc.SendTest(context.Background(), "u", ""); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	notifier.err = errors.New("smtp down")
	if _, err := svc.SendTest(context.Background(), "u", "me@example.com"); err == nil {
		t.Errorf("expected notifier error")
	}
}
