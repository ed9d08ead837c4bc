package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"marketplace_watcher/models"
)

// BatchRunner runs every active monitor once
type BatchRunner interface {
	RunAll(ctx context.Context, trigger string) (*models.BatchReport, error)
}

type CronHandler struct {
	runner  BatchRunner
	trigger string
}

func NewCronHandler(runner BatchRunner, trigger string) *CronHandler {
	return &CronHandler{runner: runner, trigger: trigger}
}

// RunMonitors reconciles all active monitors. Individual monitor failures are
// part of a 200 report; only a batch that could not run at all is a 500.
func (h *CronHandler) RunMonitors(c *gin.Context) {
	started := time.Now()
	log.Println("Cron: starting monitor runner batch")

	// The batch keeps going if the caller hangs up.
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.runner.RunAll(ctx, h.trigger)
	if err != nil {
		finished := time.Now()
		log.Printf("Cron: batch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"duration":  finished.Sub(started).Milliseconds(),
			"timestamp": finished.UTC(),
		})
		return
	}

	log.Printf("Cron: batch finished: %d monitors, %d ok, %d failed",
		report.Summary.TotalMonitors, report.Summary.SuccessCount, report.Summary.ErrorCount)
	c.JSON(http.StatusOK, report)
}
