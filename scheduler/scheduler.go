package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"marketplace_watcher/config"
	"marketplace_watcher/models"
)

const logRetention = 14 * 24 * time.Hour

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// BatchRunner is the orchestrator surface the scheduler drives
type BatchRunner interface {
	RunAll(ctx context.Context, trigger string) (*models.BatchReport, error)
	HandleCommand(ctx context.Context, cmd *models.Command) error
	IsPaused() bool
}

// CommandQueue is the operational store holding queued commands and run logs
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	PruneLogs(cutoff time.Time) (int64, error)
}

type Scheduler struct {
	cfg          *config.SchedulerConfig
	runner       BatchRunner
	queue        CommandQueue
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
	stopOnce     sync.Once
	pollInterval time.Duration

	notificationWorker Triggerable
	enrichmentWorker   Triggerable
}

func New(cfg *config.SchedulerConfig, runner BatchRunner, queue CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		runner:       runner,
		queue:        queue,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(notifications, enrichment Triggerable) {
	s.notificationWorker = notifications
	s.enrichmentWorker = enrichment
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runScheduled(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		if _, err := s.cron.AddFunc("@daily", s.pruneLogs); err != nil {
			return fmt.Errorf("schedule log pruning: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands and the cron endpoint")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// runScheduled runs one batch unless the runner has been paused.
func (s *Scheduler) runScheduled(ctx context.Context) {
	if s.runner.IsPaused() {
		log.Println("Scheduled run skipped: runner paused")
		return
	}
	report, err := s.runner.RunAll(ctx, "schedule")
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
		return
	}
	log.Printf("Scheduled run: %d monitors, %d ok, %d failed",
		report.Summary.TotalMonitors, report.Summary.SuccessCount, report.Summary.ErrorCount)
}

func (s *Scheduler) pruneLogs() {
	n, err := s.queue.PruneLogs(time.Now().Add(-logRetention))
	if err != nil {
		log.Printf("Log prune error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Pruned %d run log rows", n)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.queue.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.queue.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunNotifications:
		if s.notificationWorker != nil {
			s.notificationWorker.Trigger()
			log.Println("Notification worker triggered via command")
		}
		return nil
	case models.CmdRunEnrichment:
		if s.enrichmentWorker != nil {
			s.enrichmentWorker.Trigger()
			log.Println("Enrichment worker triggered via command")
		}
		return nil
	default:
		return s.runner.HandleCommand(ctx, cmd)
	}
}

// TriggerNow runs a batch immediately, ignoring pause.
func (s *Scheduler) TriggerNow(ctx context.Context) (*models.BatchReport, error) {
	return s.runner.RunAll(ctx, "schedule")
}
