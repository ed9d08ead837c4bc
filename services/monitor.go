package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"marketplace_watcher/identity"
	"marketplace_watcher/models"
)

const maxMonitorNameLength = 255

// ValidationError is returned for input the caller can fix
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// MonitorStore is the storage behind monitor management
type MonitorStore interface {
	EnsureUser(ctx context.Context, id, email string) error
	CreateMonitor(ctx context.Context, m *models.Monitor) error
	GetMonitorForUser(ctx context.Context, id uuid.UUID, userID string) (*models.Monitor, error)
	ListMonitorsByUser(ctx context.Context, userID string) ([]models.Monitor, error)
	UpdateMonitor(ctx context.Context, m *models.Monitor) error
	DeleteMonitor(ctx context.Context, id uuid.UUID, userID string) (bool, error)
}

// MonitorInput is the payload for creating a monitor
type MonitorInput struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	CheckFrequency string `json:"checkFrequency"`
}

// MonitorPatch updates only the fields that are set
type MonitorPatch struct {
	Name           *string `json:"name"`
	URL            *string `json:"url"`
	CheckFrequency *string `json:"checkFrequency"`
	IsActive       *bool   `json:"isActive"`
}

// MonitorService manages the monitors owned by a user
type MonitorService struct {
	store MonitorStore
}

func NewMonitorService(store MonitorStore) *MonitorService {
	return &MonitorService{store: store}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxMonitorNameLength {
		return "", &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxMonitorNameLength)}
	}
	return name, nil
}

func validateURL(raw string) (string, error) {
	if err := identity.ValidateSearchURL(raw); err != nil {
		return "", &ValidationError{Field: "url", Message: err.Error()}
	}
	return strings.TrimSpace(raw), nil
}

func validateFrequency(raw string) (models.CheckFrequency, error) {
	f, err := models.ParseCheckFrequency(raw)
	if err != nil {
		return "", &ValidationError{Field: "checkFrequency", Message: err.Error()}
	}
	return f, nil
}

// Create stores a new active monitor, creating the owning user row first if
// this is the user's first write.
func (s *MonitorService) Create(ctx context.Context, userID, email string, in MonitorInput) (*models.Monitor, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	url, err := validateURL(in.URL)
	if err != nil {
		return nil, err
	}
	freq, err := validateFrequency(in.CheckFrequency)
	if err != nil {
		return nil, err
	}

	if email == "" {
		email = fmt.Sprintf("user-%s@example.com", userID)
	}
	if err := s.store.EnsureUser(ctx, userID, email); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	m := &models.Monitor{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		URL:            url,
		CheckFrequency: freq,
		IsActive:       true,
	}
	if err := s.store.CreateMonitor(ctx, m); err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	log.Printf("MonitorService: user %s created monitor %s (%s)", userID, m.ID, m.Name)
	return m, nil
}

func (s *MonitorService) Get(ctx context.Context, id uuid.UUID, userID string) (*models.Monitor, error) {
	m, err := s.store.GetMonitorForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	if m == nil {
		return nil, ErrMonitorNotFound
	}
	return m, nil
}

// List returns the user's monitors, newest first.
func (s *MonitorService) List(ctx context.Context, userID string) ([]models.Monitor, error) {
	monitors, err := s.store.ListMonitorsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	if monitors == nil {
		monitors = []models.Monitor{}
	}
	return monitors, nil
}

func (s *MonitorService) Update(ctx context.Context, id uuid.UUID, userID string, patch MonitorPatch) (*models.Monitor, error) {
	m, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if m.Name, err = validateName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.URL != nil {
		if m.URL, err = validateURL(*patch.URL); err != nil {
			return nil, err
		}
	}
	if patch.CheckFrequency != nil {
		if m.CheckFrequency, err = validateFrequency(*patch.CheckFrequency); err != nil {
			return nil, err
		}
	}
	if patch.IsActive != nil {
		m.IsActive = *patch.IsActive
	}

	if err := s.store.UpdateMonitor(ctx, m); err != nil {
		return nil, fmt.Errorf("update monitor: %w", err)
	}
	return m, nil
}

func (s *MonitorService) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	deleted, err := s.store.DeleteMonitor(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	if !deleted {
		return ErrMonitorNotFound
	}
	log.Printf("MonitorService: user %s deleted monitor %s", userID, id)
	return nil
}

// ToggleActive flips is_active and returns the updated monitor.
func (s *MonitorService) ToggleActive(ctx context.Context, id uuid.UUID, userID string) (*models.Monitor, error) {
	m, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	m.IsActive = !m.IsActive
	if err := s.store.UpdateMonitor(ctx, m); err != nil {
		return nil, fmt.Errorf("toggle monitor: %w", err)
	}
	return m, nil
}
