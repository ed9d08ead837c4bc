package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"marketplace_watcher/models"
	"marketplace_watcher/services"
)

// MonitorTrigger runs one monitor on demand
type MonitorTrigger interface {
	RunMonitor(ctx context.Context, monitorID uuid.UUID, trigger string) (*models.BatchReport, error)
}

type MonitorHandler struct {
	monitors *services.MonitorService
	trigger  MonitorTrigger
}

func NewMonitorHandler(monitors *services.MonitorService, trigger MonitorTrigger) *MonitorHandler {
	return &MonitorHandler{monitors: monitors, trigger: trigger}
}

func (h *MonitorHandler) List(c *gin.Context) {
	monitors, err := h.monitors.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, monitors)
}

func (h *MonitorHandler) Create(c *gin.Context) {
	var in services.MonitorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.monitors.Create(c.Request.Context(), currentUser(c), c.GetString(UserEmailKey), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MonitorHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.monitors.Get(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MonitorHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var patch services.MonitorPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.monitors.Update(c.Request.Context(), id, currentUser(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MonitorHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.monitors.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *MonitorHandler) ToggleActive(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.monitors.ToggleActive(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Run reconciles one of the caller's monitors immediately.
func (h *MonitorHandler) Run(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.monitors.Get(c.Request.Context(), id, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	report, err := h.trigger.RunMonitor(ctx, id, "api")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Results[0].Result)
}
