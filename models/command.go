package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRunNow           CommandType = "run_now"
	CmdRunMonitor       CommandType = "run_monitor"
	CmdPause            CommandType = "pause"
	CmdResume           CommandType = "resume"
	CmdRunNotifications CommandType = "run_notifications"
	CmdRunEnrichment    CommandType = "run_enrichment"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	MonitorID string `json:"monitor_id,omitempty"`
}
