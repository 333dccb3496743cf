// Package handlers provides HTTP handlers for the clinic analytics API
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/application/services"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// SetScopeRequest is the PUT /scope body.
type SetScopeRequest struct {
	Scope    string `json:"scope" binding:"required"`
	TenantID string `json:"tenantId"`
}

// ScopeHandlers contains the scope read/switch HTTP handlers
type ScopeHandlers struct {
	scopeService *services.ScopeService
	logger       *logging.ChanneledLogger
}

// NewScopeHandlers creates scope handlers with injected dependencies
func NewScopeHandlers(scopeService *services.ScopeService, logger *logging.ChanneledLogger) *ScopeHandlers {
	return &ScopeHandlers{scopeService: scopeService, logger: logger}
}

// GetScope returns the caller's current scope, initializing the default on
// first use.
func (h *ScopeHandlers) GetScope(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	sel, err := h.scopeService.GetScope(c.Request.Context(), principal)
	if err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account has no clinic access configured"})
			return
		}
		h.logger.Scope().Error("Get scope failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scope": sel})
}

// SetScope switches the caller's scope. Failures are typed so the UI can show
// an actionable message.
func (h *ScopeHandlers) SetScope(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req SetScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	requested := scope.Selection{Kind: scope.Kind(req.Scope), TenantID: req.TenantID}
	if requested.Kind == scope.KindSingle && requested.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required for single-clinic scope"})
		return
	}

	sel, err := h.scopeService.SetScope(c.Request.Context(), principal, requested, middleware.GetRequestID(c))
	if err != nil {
		switch {
		case errors.Is(err, scope.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "you don't have access to this location"})
		case errors.Is(err, scope.ErrUnknownTenant):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown location"})
		case errors.Is(err, scope.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "please slow down"})
		default:
			h.logger.Scope().Error("Set scope failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"scope": sel})
}
