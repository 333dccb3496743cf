package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/application/services"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/tenant"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// InvalidateRequest is the POST /cache/invalidate body.
type InvalidateRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

// CacheHandlers contains the cache invalidation hook for data-mutation
// collaborators
type CacheHandlers struct {
	aggregator *services.AggregatorService
	directory  *tenant.Directory
	logger     *logging.ChanneledLogger
}

// NewCacheHandlers creates cache handlers with injected dependencies
func NewCacheHandlers(aggregator *services.AggregatorService, directory *tenant.Directory, logger *logging.ChanneledLogger) *CacheHandlers {
	return &CacheHandlers{aggregator: aggregator, directory: directory, logger: logger}
}

// InvalidateTenant drops every cached entry derived from the tenant's data.
// Called when the tenant's underlying rows change. Elevated principals only.
func (h *CacheHandlers) InvalidateTenant(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.Elevated {
		c.JSON(http.StatusForbidden, gin.H{"error": "elevated access required"})
		return
	}

	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	removed := h.aggregator.InvalidateTenant(c.Request.Context(), req.TenantID)
	h.directory.InvalidateDirectoryCache(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{"tenantId": req.TenantID, "entriesRemoved": removed})
}
