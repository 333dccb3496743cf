// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clarident/clarident-go/internal/application/container"
	"github.com/clarident/clarident-go/internal/presentation/http/handlers"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestID())

	scopeHandlers := handlers.NewScopeHandlers(c.ScopeService, c.Logger)
	dashboardHandlers := handlers.NewDashboardHandlers(c.AggregatorService, c.Logger)
	tenantHandlers := handlers.NewTenantHandlers(c.Directory, c.Logger)
	auditHandlers := handlers.NewAuditHandlers(c.AuditService, c.Logger)
	cacheHandlers := handlers.NewCacheHandlers(c.AggregatorService, c.Directory, c.Logger)
	healthHandlers := handlers.NewHealthHandlers(c.DB)

	r.GET("/api/v1/health", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.Principal(c.Logger))
	{
		api.GET("/scope", scopeHandlers.GetScope)
		api.PUT("/scope", scopeHandlers.SetScope)
		api.GET("/tenants", tenantHandlers.ListTenants)
		api.GET("/audit", auditHandlers.QueryAudit)
		api.POST("/cache/invalidate", cacheHandlers.InvalidateTenant)

		// The dashboard is the only surface that runs tenant-scoped queries,
		// so it alone pays for a bound connection.
		scoped := api.Group("")
		scoped.Use(middleware.BoundConnection(c.DB, c.ScopeService, c.Binder, c.Logger))
		{
			scoped.GET("/dashboard", dashboardHandlers.GetDashboard)
		}
	}

	return r
}
