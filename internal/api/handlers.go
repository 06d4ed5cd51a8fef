// Package api exposes the HTTP control surface: triggering collection
// cycles, reading and tuning price ceilings, and reading back accepted
// listings.
package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propwatch/server/internal/dedup"
	"propwatch/server/internal/limits"
	"propwatch/server/internal/orchestrator"
)

// Collector is the slice of the orchestrator the API depends on.
type Collector interface {
	RunCycleAsync() error
	Running() bool
}

type Handler struct {
	collector Collector
	gate      *limits.Gate
	store     *dedup.Store
	logger    *logrus.Logger
}

type limitRequest struct {
	Ceiling int `json:"ceiling" binding:"required,gt=0"`
}

func NewHandler(collector Collector, gate *limits.Gate, store *dedup.Store, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		collector: collector,
		gate:      gate,
		store:     store,
		logger:    logger,
	}
}

// StartCollection kicks off a background cycle. A cycle already in flight
// yields 409 without side effects.
func (h *Handler) StartCollection(c *gin.Context) {
	if err := h.collector.RunCycleAsync(); err != nil {
		if errors.Is(err, orchestrator.ErrCycleRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "A collection cycle is already running"})
			return
		}
		h.logger.WithError(err).Error("Failed to start collection cycle")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start collection cycle"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "Collection cycle started"})
}

// GetLimits returns the effective ceiling per property type, overrides
// applied over defaults.
func (h *Handler) GetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, h.gate.Effective())
}

// UpdateLimit sets a new ceiling for one configured property type. The
// change takes effect from the next gate check onward.
func (h *Handler) UpdateLimit(c *gin.Context) {
	tag := c.Param("type")
	if !h.gate.Known(tag) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown property type"})
		return
	}

	var req limitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid limit request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ceiling must be a positive integer"})
		return
	}

	h.gate.Override(tag, req.Ceiling)
	h.logger.WithFields(logrus.Fields{
		"type":    tag,
		"ceiling": req.Ceiling,
	}).Info("Price ceiling updated")

	c.JSON(http.StatusOK, gin.H{"type": tag, "ceiling": req.Ceiling})
}

// GetRecentListings returns the most recently accepted listings, newest
// first.
func (h *Handler) GetRecentListings(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 50
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent listings"})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetHealth(c *gin.Context) {
	count, err := h.store.Count()
	if err != nil {
		h.logger.WithError(err).Error("Failed to count stored listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read listing store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"listings":   count,
		"collecting": h.collector.Running(),
	})
}
