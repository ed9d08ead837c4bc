package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the outcome of reconciling one monitor
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// MonitorRunResult is the outcome of one reconciliation.
// On error both id lists are empty and Error carries the message.
type MonitorRunResult struct {
	ChangedListingIDs []string
	TotalListingIDs   []string
	Status            ResultStatus
	Error             string
}

func SuccessResult(changed, total []string) MonitorRunResult {
	if changed == nil {
		changed = []string{}
	}
	if total == nil {
		total = []string{}
	}
	return MonitorRunResult{ChangedListingIDs: changed, TotalListingIDs: total, Status: StatusSuccess}
}

func ErrorResult(msg string) MonitorRunResult {
	if msg == "" {
		msg = "Unknown error"
	}
	return MonitorRunResult{
		ChangedListingIDs: []string{},
		TotalListingIDs:   []string{},
		Status:            StatusError,
		Error:             msg,
	}
}

func (r MonitorRunResult) OK() bool {
	switch r.Status {
	case StatusSuccess:
		return true
	case StatusError:
		return false
	default:
		panic(fmt.Sprintf("unknown result status %q", string(r.Status)))
	}
}

type monitorRunResultJSON struct {
	ChangedListingIDs []string     `json:"changedListingIds"`
	TotalListingIDs   []string     `json:"totalListingIds"`
	Status            ResultStatus `json:"status"`
	Error             *string      `json:"error,omitempty"`
}

// MarshalJSON never emits null lists and only emits error for error results.
func (r MonitorRunResult) MarshalJSON() ([]byte, error) {
	out := monitorRunResultJSON{
		ChangedListingIDs: r.ChangedListingIDs,
		TotalListingIDs:   r.TotalListingIDs,
		Status:            r.Status,
	}
	if out.ChangedListingIDs == nil {
		out.ChangedListingIDs = []string{}
	}
	if out.TotalListingIDs == nil {
		out.TotalListingIDs = []string{}
	}
	if !r.OK() {
		msg := r.Error
		out.Error = &msg
	}
	return json.Marshal(out)
}

func (r *MonitorRunResult) UnmarshalJSON(data []byte) error {
	var in monitorRunResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ChangedListingIDs = in.ChangedListingIDs
	r.TotalListingIDs = in.TotalListingIDs
	r.Status = in.Status
	r.Error = ""
	if in.Error != nil {
		r.Error = *in.Error
	}
	return nil
}

// MonitorBatchResult is one entry of a batch report
type MonitorBatchResult struct {
	MonitorID   uuid.UUID        `json:"monitorId"`
	MonitorName string           `json:"monitorName"`
	Result      MonitorRunResult `json:"result"`
}

// BatchSummary aggregates a batch run. Duration is in milliseconds.
type BatchSummary struct {
	TotalMonitors int       `json:"totalMonitors"`
	SuccessCount  int       `json:"successCount"`
	ErrorCount    int       `json:"errorCount"`
	Duration      int64     `json:"duration"`
	Timestamp     time.Time `json:"timestamp"`
}

// BatchReport is the response of a completed batch
type BatchReport struct {
	Success bool                 `json:"success"`
	Summary BatchSummary         `json:"summary"`
	Results []MonitorBatchResult `json:"results"`
}

// NewBatchReport counts outcomes over results.
func NewBatchReport(results []MonitorBatchResult, started, finished time.Time) *BatchReport {
	if results == nil {
		results = []MonitorBatchResult{}
	}
	summary := BatchSummary{
		TotalMonitors: len(results),
		Duration:      finished.Sub(started).Milliseconds(),
		Timestamp:     finished.UTC(),
	}
	for _, r := range results {
		if r.Result.OK() {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
	}
	return &BatchReport{Success: true, Summary: summary, Results: results}
}
