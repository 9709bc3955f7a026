package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sheetbridge/internal/domain/transform"
	"sheetbridge/internal/domain/validation"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	engine  *validation.Engine
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine *validation.Engine, version string) *HealthHandler {
	return &HealthHandler{engine: engine, version: version, started: time.Now()}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	opts := h.engine.Options()

	c.JSON(http.StatusOK, gin.H{
		"app":     "sheetbridge",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"engine": map[string]any{
			"levels":             opts.Levels,
			"id_field":           opts.Fields.IDField,
			"label_field":        opts.Fields.LabelField,
			"helper_prefix":      opts.HelperPrefix,
			"detect_fk":          opts.DetectFK,
			"fk_role_prefix":     opts.RolePrefix,
			"mode_missing_fk":    opts.Policy.MissingFK,
			"mode_duplicate_ids": opts.Policy.DuplicateIDs,
		},
		"steps": transform.Names(),
	})
}
