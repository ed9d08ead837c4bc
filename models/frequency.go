package models

import (
	"fmt"
	"time"
)

// CheckFrequency is how often a monitor expects to be polled
type CheckFrequency string

const (
	FrequencyHourly CheckFrequency = "hourly"
	FrequencyDaily  CheckFrequency = "daily"
	FrequencyWeekly CheckFrequency = "weekly"
)

// ParseCheckFrequency accepts the three known frequencies. Empty means daily.
func ParseCheckFrequency(s string) (CheckFrequency, error) {
	switch CheckFrequency(s) {
	case "":
		return FrequencyDaily, nil
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return CheckFrequency(s), nil
	default:
		return "", fmt.Errorf("invalid check frequency %q", s)
	}
}

func (f CheckFrequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		panic(fmt.Sprintf("unknown check frequency %q", string(f)))
	}
}

// EmailFrequency controls how often match digests are delivered
type EmailFrequency string

const (
	EmailImmediate EmailFrequency = "immediate"
	EmailDaily     EmailFrequency = "daily"
	EmailWeekly    EmailFrequency = "weekly"
)

func ParseEmailFrequency(s string) (EmailFrequency, error) {
	switch EmailFrequency(s) {
	case EmailImmediate, EmailDaily, EmailWeekly:
		return EmailFrequency(s), nil
	default:
		return "", fmt.Errorf("invalid email frequency %q", s)
	}
}

// Interval is the minimum gap between two digests. Immediate has none.
func (f EmailFrequency) Interval() time.Duration {
	switch f {
	case EmailImmediate:
		return 0
	case EmailDaily:
		return 24 * time.Hour
	case EmailWeekly:
		return 7 * 24 * time.Hour
	default:
		panic(fmt.Sprintf("unknown email frequency %q", string(f)))
	}
}

// NotificationSettings are per-user delivery preferences
type NotificationSettings struct {
	UserID         string         `json:"userId" db:"user_id"`
	EmailEnabled   bool           `json:"emailEnabled" db:"email_enabled"`
	EmailFrequency EmailFrequency `json:"emailFrequency" db:"email_frequency"`
	LastSentAt     *time.Time     `json:"lastSentAt,omitempty" db:"last_sent_at"`
}

// DefaultNotificationSettings is what a user gets before saving anything
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:         userID,
		EmailEnabled:   true,
		EmailFrequency: EmailDaily,
	}
}

// DigestDue reports whether a digest may be sent at now.
func (s NotificationSettings) DigestDue(now time.Time) bool {
	if !s.EmailEnabled {
		return false
	}
	if s.LastSentAt == nil {
		return true
	}
	return now.Sub(*s.LastSentAt) >= s.EmailFrequency.Interval()
}
