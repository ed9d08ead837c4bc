package models

import "time"

type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// BatchRun is the operational record of one orchestrator pass
type BatchRun struct {
	ID              int64      `json:"id" db:"id"`
	Trigger         string     `json:"trigger" db:"trigger_source"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	State           RunState   `json:"state" db:"state"`
	TotalMonitors   int        `json:"total_monitors" db:"total_monitors"`
	SuccessCount    int        `json:"success_count" db:"success_count"`
	ErrorCount      int        `json:"error_count" db:"error_count"`
	ListingsSeen    int        `json:"listings_seen" db:"listings_seen"`
	ListingsChanged int        `json:"listings_changed" db:"listings_changed"`
	Error           string     `json:"error,omitempty" db:"error"`
}

// MonitorRunRecord is the persisted per-monitor outcome within a batch
type MonitorRunRecord struct {
	ID           int64     `json:"id" db:"id"`
	RunID        int64     `json:"run_id" db:"run_id"`
	MonitorID    string    `json:"monitor_id" db:"monitor_id"`
	Status       string    `json:"status" db:"status"`
	TotalCount   int       `json:"total_count" db:"total_count"`
	ChangedCount int       `json:"changed_count" db:"changed_count"`
	Error        string    `json:"error,omitempty" db:"error"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}
