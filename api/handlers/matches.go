package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"marketplace_watcher/models"
	"marketplace_watcher/services"
)

type MatchHandler struct {
	matches *services.MatchService
}

func NewMatchHandler(matches *services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

type matchListParams struct {
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
	OnlyUnread bool   `form:"onlyUnread"`
	SortBy     string `form:"sortBy"`
	SortOrder  string `form:"sortOrder"`
}

func (h *MatchHandler) List(c *gin.Context) {
	monitorID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var p matchListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := models.MatchQuery{
		Limit:      p.Limit,
		Offset:     p.Offset,
		OnlyUnread: p.OnlyUnread,
		SortBy:     models.MatchSort(p.SortBy),
		Order:      models.SortOrder(p.SortOrder),
	}
	matches, err := h.matches.List(c.Request.Context(), monitorID, currentUser(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *MatchHandler) Stats(c *gin.Context) {
	monitorID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	stats, err := h.matches.Stats(c.Request.Context(), monitorID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *MatchHandler) MarkAllNotified(c *gin.Context) {
	monitorID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	n, err := h.matches.MarkAllNotified(c.Request.Context(), monitorID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *MatchHandler) MarkNotified(c *gin.Context) {
	matchID, ok := pathUUID(c, "matchId")
	if !ok {
		return
	}
	if err := h.matches.MarkNotified(c.Request.Context(), matchID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
