package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// TenantHandlers contains the tenant directory HTTP handlers
type TenantHandlers struct {
	directory scope.Directory
	logger    *logging.ChanneledLogger
}

// NewTenantHandlers creates tenant handlers with injected dependencies
func NewTenantHandlers(directory scope.Directory, logger *logging.ChanneledLogger) *TenantHandlers {
	return &TenantHandlers{directory: directory, logger: logger}
}

// ListTenants returns the active clinics visible to the caller.
func (h *TenantHandlers) ListTenants(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	tenants, err := h.directory.ListTenants(c.Request.Context(), principal)
	if err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account has no clinic access configured"})
			return
		}
		h.logger.Tenant().Error("List tenants failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}
