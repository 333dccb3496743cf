package middleware

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/application/services"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
	"github.com/clarident/clarident-go/internal/infrastructure/security"
)

// Context keys for the request's bound connection and resolved scope.
const (
	BoundConnKey = "boundConn"
	ScopeKey     = "scope"
)

// releaseTimeout bounds the attribute clear that runs after the handler.
const releaseTimeout = 5 * time.Second

// BoundConnection checks a connection out of the pool, resolves the caller's
// current scope, and binds the connection to it for the rest of the request.
// Runs exactly once per request, before any tenant-scoped query. The
// attribute is cleared and the connection returned when the handler finishes.
//
// A failed elevation re-check aborts the request rather than serving it under
// a silently narrowed scope.
func BoundConnection(db *database.DB, scopes *services.ScopeService, binder *security.Binder, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
			return
		}

		ctx := c.Request.Context()

		sel, err := scopes.GetScope(ctx, principal)
		if err != nil {
			if errors.Is(err, scope.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "account has no clinic access configured",
				})
				return
			}
			logger.System().Error("Scope resolution failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		conn, err := db.Checkout(ctx)
		if err != nil {
			logger.Database().Error("Connection checkout failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "datastore unavailable"})
			return
		}

		bound, err := binder.Bind(ctx, conn, principal, sel)
		if err != nil {
			if bound != nil {
				releaseAndReturn(bound, conn, logger)
			} else {
				conn.Close()
			}
			if errors.Is(err, scope.ErrSecurityDowngrade) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "access verification failed, request aborted",
				})
				return
			}
			logger.Database().Error("Connection bind failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(BoundConnKey, bound)
		c.Set(ScopeKey, sel)

		c.Next()

		releaseAndReturn(bound, conn, logger)
	}
}

// releaseAndReturn clears the connection's security attribute and hands it
// back to the pool. It runs on a detached context: the request context may
// already be canceled by the time the handler finishes (client disconnect,
// write-timeout teardown) and the clear must not die with it. A connection
// whose clear failed is discarded rather than pooled; the next checkout must
// never inherit a tenant filter or the bypass attribute.
func releaseAndReturn(bound *security.BoundConn, conn *sql.Conn, logger *logging.ChanneledLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := bound.Release(ctx); err != nil {
		if logger != nil {
			logger.Database().Error("Discarding connection after failed attribute clear",
				"attribute", bound.Attribute(), "error", err.Error())
		}
		conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	conn.Close()
}

// GetBoundConn returns the request's bound connection.
func GetBoundConn(c *gin.Context) (*security.BoundConn, bool) {
	v, ok := c.Get(BoundConnKey)
	if !ok {
		return nil, false
	}
	bound, ok := v.(*security.BoundConn)
	return bound, ok
}

// GetScope returns the scope the request's connection was bound to.
func GetScope(c *gin.Context) (scope.Selection, bool) {
	v, ok := c.Get(ScopeKey)
	if !ok {
		return scope.Selection{}, false
	}
	sel, ok := v.(scope.Selection)
	return sel, ok
}
