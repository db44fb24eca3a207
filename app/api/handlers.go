package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/pipeline"
	"github.com/sponsorscout/jobengine/app/retention"
)

func NewHandler(coordinator *pipeline.Coordinator, classifier *classify.Classifier,
	jobRepo database.JobRepository) *Handler {
	return &Handler{
		coordinator: coordinator,
		classifier:  classifier,
		jobRepo:     jobRepo,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"running":   h.coordinator.IsRunning(),
	}

	if active, err := h.jobRepo.CountActive(c.Request.Context()); err == nil {
		health["active_listings"] = active
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"running":  h.coordinator.IsRunning(),
		"next_run": h.coordinator.NextScheduledRun().Format(time.RFC3339),
	}

	if counts, err := h.jobRepo.CountBySource(c.Request.Context()); err == nil {
		stats["listings_by_source"] = counts
	} else {
		slog.Error("Database error", "operation", "count_by_source", "error", err)
	}

	if active, err := h.jobRepo.CountActive(c.Request.Context()); err == nil {
		stats["active_listings"] = active
	}

	if last := h.coordinator.LastRunStats(); last != nil {
		stats["last_run"] = last
	}
	if cleanup := h.coordinator.LastCleanupStats(); cleanup != nil {
		stats["last_cleanup"] = cleanup
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) TriggerRun(c *gin.Context) {
	runID, err := h.coordinator.TriggerRun(pipeline.TriggerManual)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
			return
		}
		slog.Error("Failed to trigger run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  runID,
		"trigger": pipeline.TriggerManual,
	})
}

func (h *Handler) GetLastRun(c *gin.Context) {
	stats := h.coordinator.LastRunStats()
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No completed run yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetNextRun(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"next_run": h.coordinator.NextScheduledRun().Format(time.RFC3339),
		"running":  h.coordinator.IsRunning(),
	})
}

func (h *Handler) TriggerCleanup(c *gin.Context) {
	stats, err := h.coordinator.TriggerCleanup(c.Request.Context())
	if err != nil {
		if errors.Is(err, retention.ErrCleanupRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "A cleanup is already in progress"})
			return
		}
		slog.Error("Cleanup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetLastCleanup(c *gin.Context) {
	stats := h.coordinator.LastCleanupStats()
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No completed cleanup yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result := h.classifier.Detect(req.Title, req.Description, req.Company)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Reclassify(c *gin.Context) {
	var req ReclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	filter := database.ReclassifyFilter{
		OnlyActive: req.OnlyActive,
		Source:     req.Source,
	}

	report, err := h.coordinator.BatchReclassify(c.Request.Context(), filter, req.Limit)
	if err != nil {
		slog.Error("Reclassification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reclassification failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
