package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
)

// HealthHandlers contains the liveness/readiness HTTP handlers
type HealthHandlers struct {
	db      *database.DB
	started time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB) *HealthHandlers {
	return &HealthHandlers{db: db, started: time.Now()}
}

// Health reports process and datastore health.
func (h *HealthHandlers) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"uptime": time.Since(h.started).String(),
	})
}
