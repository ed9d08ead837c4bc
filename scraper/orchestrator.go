package scraper

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/batch"
	"marketplace_watcher/metrics"
	"marketplace_watcher/models"
	"marketplace_watcher/storage"
)

const (
	TriggerCron     = "cron"
	TriggerSchedule = "schedule"
	TriggerCommand  = "command"
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
)

// MonitorLister loads the monitors a batch works on
type MonitorLister interface {
	ListActiveMonitors(ctx context.Context) ([]models.Monitor, error)
	GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error)
}

// MonitorRunner reconciles a single monitor
type MonitorRunner interface {
	Run(ctx context.Context, monitorID uuid.UUID) models.MonitorRunResult
}

// ReportArchiver stores finished batch reports
type ReportArchiver interface {
	UploadJSON(ctx context.Context, key string, v any) error
}

type Orchestrator struct {
	monitors  MonitorLister
	runner    MonitorRunner
	store     *storage.SQLiteStore
	archive   ReportArchiver
	groupSize int
	paused    atomic.Bool
	now       func() time.Time
}

func NewOrchestrator(monitors MonitorLister, runner MonitorRunner, store *storage.SQLiteStore, groupSize int) *Orchestrator {
	if groupSize < 1 {
		groupSize = 10
	}
	return &Orchestrator{
		monitors:  monitors,
		runner:    runner,
		store:     store,
		groupSize: groupSize,
		now:       time.Now,
	}
}

// SetArchive enables uploading every batch report.
func (o *Orchestrator) SetArchive(a ReportArchiver) {
	o.archive = a
}

// RunAll reconciles every active monitor in groups of groupSize. Groups run
// one after another and monitors within a group run concurrently. A failing
// or panicking monitor only affects its own result. The only error returned
// is a failure to load the monitors.
func (o *Orchestrator) RunAll(ctx context.Context, trigger string) (*models.BatchReport, error) {
	started := o.now()

	monitors, err := o.monitors.ListActiveMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active monitors: %w", err)
	}
	metrics.ActiveMonitors.Set(float64(len(monitors)))

	run := o.startRun(trigger, started, len(monitors))
	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting batch (%s): %d active monitors", trigger, len(monitors)), "")

	results := batch.Grouped(ctx, monitors, o.groupSize, o.safeRun)

	finished := o.now()
	report := models.NewBatchReport(results, started, finished)
	o.finishRun(run, report, finished)
	metrics.BatchDuration.Observe(finished.Sub(started).Seconds())

	o.log(run, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d monitors, %d succeeded, %d failed in %dms",
			report.Summary.TotalMonitors, report.Summary.SuccessCount, report.Summary.ErrorCount, report.Summary.Duration), "")

	o.archiveReport(ctx, run, report)
	return report, nil
}

// RunMonitor reconciles one monitor outside of a batch.
func (o *Orchestrator) RunMonitor(ctx context.Context, monitorID uuid.UUID, trigger string) (*models.BatchReport, error) {
	started := o.now()

	var monitor models.Monitor
	m, err := o.monitors.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	if m != nil {
		monitor = *m
	} else {
		monitor.ID = monitorID
	}

	run := o.startRun(trigger, started, 1)
	result := o.safeRun(ctx, monitor)

	finished := o.now()
	report := models.NewBatchReport([]models.MonitorBatchResult{result}, started, finished)
	o.finishRun(run, report, finished)
	return report, nil
}

// safeRun turns a panic inside the reconciliation into an error result.
func (o *Orchestrator) safeRun(ctx context.Context, m models.Monitor) (res models.MonitorBatchResult) {
	res.MonitorID = m.ID
	res.MonitorName = m.Name

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Orchestrator: monitor %s panicked: %v", m.ID, r)
			metrics.MonitorRunsTotal.WithLabelValues(string(models.StatusError)).Inc()
			res.Result = models.ErrorResult(fmt.Sprintf("panic: %v", r))
		}
	}()

	res.Result = o.runner.Run(ctx, m.ID)
	return res
}

func (o *Orchestrator) startRun(trigger string, started time.Time, total int) *models.BatchRun {
	run := &models.BatchRun{
		Trigger:       trigger,
		StartedAt:     started,
		State:         models.RunStateRunning,
		TotalMonitors: total,
	}
	if o.store == nil {
		return run
	}
	id, err := o.store.CreateRun(run)
	if err != nil {
		log.Printf("Warning: failed to record run start: %v", err)
		return run
	}
	run.ID = id
	return run
}

func (o *Orchestrator) finishRun(run *models.BatchRun, report *models.BatchReport, finished time.Time) {
	run.FinishedAt = &finished
	run.State = models.RunStateCompleted
	run.TotalMonitors = report.Summary.TotalMonitors
	run.SuccessCount = report.Summary.SuccessCount
	run.ErrorCount = report.Summary.ErrorCount

	for _, r := range report.Results {
		run.ListingsSeen += len(r.Result.TotalListingIDs)
		run.ListingsChanged += len(r.Result.ChangedListingIDs)

		if !r.Result.OK() {
			o.log(run, models.LogLevelError, r.Result.Error, r.MonitorID.String())
		}
		if o.store == nil || run.ID == 0 {
			continue
		}
		rec := &models.MonitorRunRecord{
			RunID:        run.ID,
			MonitorID:    r.MonitorID.String(),
			Status:       string(r.Result.Status),
			TotalCount:   len(r.Result.TotalListingIDs),
			ChangedCount: len(r.Result.ChangedListingIDs),
			Error:        r.Result.Error,
			RecordedAt:   finished,
		}
		if err := o.store.RecordMonitorResult(rec); err != nil {
			log.Printf("Warning: failed to record result for %s: %v", r.MonitorID, err)
		}
	}

	if o.store == nil || run.ID == 0 {
		return
	}
	if err := o.store.FinishRun(run); err != nil {
		log.Printf("Warning: failed to record run finish: %v", err)
	}
}

func (o *Orchestrator) archiveReport(ctx context.Context, run *models.BatchRun, report *models.BatchReport) {
	if o.archive == nil {
		return
	}
	key := fmt.Sprintf("%s/%s-%d.json",
		run.StartedAt.UTC().Format("2006/01/02"), run.StartedAt.UTC().Format("150405"), run.ID)
	if err := o.archive.UploadJSON(ctx, key, report); err != nil {
		o.log(run, models.LogLevelWarn, fmt.Sprintf("Archive upload failed: %v", err), "")
		return
	}
	log.Printf("Orchestrator: archived batch report to %s", key)
}

// HandleCommand executes a queued run/pause/resume command.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := storage.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdRunNow:
		_, err := o.RunAll(ctx, TriggerCommand)
		return err
	case models.CmdRunMonitor:
		if params.MonitorID == "" {
			_, err := o.RunAll(ctx, TriggerCommand)
			return err
		}
		id, err := uuid.Parse(params.MonitorID)
		if err != nil {
			return fmt.Errorf("invalid monitor id %q: %w", params.MonitorID, err)
		}
		_, err = o.RunMonitor(ctx, id, TriggerCommand)
		return err
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Runner paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Runner resumed")
	default:
		return fmt.Errorf("orchestrator cannot handle command %s", cmd.Command)
	}

	return nil
}

// IsPaused reports whether scheduled batches are suspended. Explicit triggers
// still run.
func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) log(run *models.BatchRun, level models.LogLevel, message, monitorID string) {
	if monitorID != "" {
		log.Printf("[%s] %s: %s", level, monitorID, message)
	} else {
		log.Printf("[%s] Orchestrator: %s", level, message)
	}
	if o.store == nil || run.ID == 0 {
		return
	}
	runID := run.ID
	if err := o.store.Log(&runID, level, message, monitorID); err != nil {
		log.Printf("Warning: failed to write run log: %v", err)
	}
}
