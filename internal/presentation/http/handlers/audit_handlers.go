package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/application/services"
	domainaudit "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// AuditHandlers contains the compliance-review HTTP handlers
type AuditHandlers struct {
	auditService *services.AuditService
	logger       *logging.ChanneledLogger
}

// NewAuditHandlers creates audit handlers with injected dependencies
func NewAuditHandlers(auditService *services.AuditService, logger *logging.ChanneledLogger) *AuditHandlers {
	return &AuditHandlers{auditService: auditService, logger: logger}
}

// QueryAudit returns scope switches matching the filter, newest first.
// Elevated principals only.
func (h *AuditHandlers) QueryAudit(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.Elevated {
		c.JSON(http.StatusForbidden, gin.H{"error": "elevated access required"})
		return
	}

	filter := domainaudit.Filter{
		PrincipalID: c.Query("principal"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		filter.To = t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	entries, err := h.auditService.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.Audit().Error("Audit query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
