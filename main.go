package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/api"
	"marketplace_watcher/config"
	"marketplace_watcher/httputil"
	"marketplace_watcher/logging"
	"marketplace_watcher/models"
	"marketplace_watcher/scheduler"
	"marketplace_watcher/scraper"
	"marketplace_watcher/services"
	"marketplace_watcher/storage"
	"marketplace_watcher/workers"
)

var (
	runNow    = flag.Bool("run", false, "Run every active monitor once, print the report and exit")
	monitorID = flag.String("monitor", "", "Run a single monitor by id and exit")
	seed      = flag.Bool("seed", false, "Create monitors from config/monitors/*.yaml and exit")
	seedDir   = flag.String("seed-dir", "config/monitors", "Directory of monitor seed files")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting marketplace_watcher...")

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	monitorService := services.NewMonitorService(pgStore)

	if *seed {
		if err := seedMonitors(ctx, monitorService, *seedDir); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		return
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	source := scraper.NewApifySource(&cfg.Apify, clients.API)
	runner := services.NewMonitorRunner(pgStore, source)
	orchestrator := scraper.NewOrchestrator(pgStore, runner, sqliteStore, cfg.Runner.GroupSize)

	if cfg.Archive.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.Archive)
		if err != nil {
			log.Printf("Warning: report archiving disabled: %v", err)
		} else {
			orchestrator.SetArchive(uploader)
			log.Printf("Archiving batch reports to s3://%s", cfg.Archive.Bucket)
		}
	}

	if *runNow || *monitorID != "" {
		if err := runOnce(ctx, orchestrator, *monitorID); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := services.LogNotifier{}
	notificationService, err := services.NewNotificationService(pgStore, notifier)
	if err != nil {
		log.Fatalf("Failed to create notification service: %v", err)
	}
	matchService := services.NewMatchService(pgStore)

	workerLog := func(level models.LogLevel, component, message string) {
		if err := sqliteStore.Log(nil, level, fmt.Sprintf("[%s] %s", component, message), ""); err != nil {
			log.Printf("Warning: failed to write worker log: %v", err)
		}
	}

	enrichmentWorker := workers.NewEnrichmentWorker(pgStore, clients.Scraping)
	enrichmentWorker.SetLogger(workerLog)
	go enrichmentWorker.Run(ctx, 10, 5*time.Minute)
	log.Println("Enrichment worker started")

	notificationWorker := workers.NewNotificationWorker(pgStore, notificationService, notifier)
	notificationWorker.SetLogger(workerLog)
	go notificationWorker.Run(ctx, 15*time.Minute)
	log.Println("Notification worker started")

	sched := scheduler.New(&cfg.Scheduler, orchestrator, sqliteStore)
	sched.SetWorkers(notificationWorker, enrichmentWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.Server.CronSecret == "" {
		log.Println("Warning: CRON_SECRET not set, the cron endpoint will reject every request")
	}

	router := api.SetupRouter(api.Deps{
		Server:        &cfg.Server,
		Runner:        orchestrator,
		Monitors:      monitorService,
		Matches:       matchService,
		Notifications: notificationService,
	})
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Printf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// runOnce executes a single batch (or one monitor) and prints the report.
func runOnce(ctx context.Context, orchestrator *scraper.Orchestrator, id string) error {
	var (
		report *models.BatchReport
		err    error
	)
	if id != "" {
		monitorUUID, parseErr := uuid.Parse(id)
		if parseErr != nil {
			return fmt.Errorf("invalid monitor id %q: %w", id, parseErr)
		}
		report, err = orchestrator.RunMonitor(ctx, monitorUUID, scraper.TriggerCLI)
	} else {
		report, err = orchestrator.RunAll(ctx, scraper.TriggerCLI)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func seedMonitors(ctx context.Context, monitors *services.MonitorService, dir string) error {
	seeds, err := config.LoadSeeds(dir)
	if err != nil {
		return err
	}

	created := 0
	for _, file := range seeds {
		for _, sm := range file.Monitors {
			m, err := monitors.Create(ctx, file.UserID, file.Email, services.MonitorInput{
				Name:           sm.Name,
				URL:            sm.URL,
				CheckFrequency: sm.CheckFrequency,
			})
			if err != nil {
				log.Printf("Seed: skipping %q: %v", sm.Name, err)
				continue
			}
			if sm.Active != nil && !*sm.Active {
				inactive := false
				if _, err := monitors.Update(ctx, m.ID, file.UserID, services.MonitorPatch{IsActive: &inactive}); err != nil {
					return fmt.Errorf("deactivate %s: %w", m.ID, err)
				}
			}
			created++
		}
	}
	log.Printf("Seed: created %d monitors from %s", created, dir)
	return nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
