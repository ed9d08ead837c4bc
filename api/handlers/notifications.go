package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"marketplace_watcher/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) GetSettings(c *gin.Context) {
	ns, err := h.notifications.Settings(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

type settingsRequest struct {
	EmailEnabled   *bool  `json:"emailEnabled" binding:"required"`
	EmailFrequency string `json:"emailFrequency" binding:"required"`
}

func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ns, err := h.notifications.Update(c.Request.Context(), currentUser(c), services.SettingsInput{
		EmailEnabled:   *req.EmailEnabled,
		EmailFrequency: req.EmailFrequency,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

type testNotificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *NotificationHandler) SendTest(c *gin.Context) {
	var req testNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.notifications.SendTest(c.Request.Context(), currentUser(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
