package security

import (
	"context"
	"database/sql"
	"time"

	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
)

// SessionConn is the slice of a checked-out connection the binder needs.
// *sql.Conn satisfies it.
type SessionConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Binder sets the storage engine's session-scoped security attribute on a
// request's connection. It is the single point where tenant isolation is
// either correctly or incorrectly enforced: every tenant-scoped query on the
// connection must happen after a successful Bind and before Release.
type Binder struct {
	directory scope.Directory
	logger    *logging.ChanneledLogger

	setStatement   string
	clearStatement string
	bypassValue    string
}

// NewBinder creates a binder. The statements come from configuration and
// belong to the external storage engine's contract.
func NewBinder(directory scope.Directory, logger *logging.ChanneledLogger, setStatement, clearStatement, bypassValue string) *Binder {
	return &Binder{
		directory:      directory,
		logger:         logger,
		setStatement:   setStatement,
		clearStatement: clearStatement,
		bypassValue:    bypassValue,
	}
}

// BoundConn is a connection carrying a tenant security attribute. Never
// shared between requests; Release must run before the connection goes back
// to the pool.
type BoundConn struct {
	conn   SessionConn
	binder *Binder

	// Attribute the connection is currently bound to, for logging.
	attribute string
}

// Conn exposes the underlying connection for query execution.
func (bc *BoundConn) Conn() SessionConn {
	return bc.conn
}

// Attribute returns the value the connection is currently bound to.
func (bc *BoundConn) Attribute() string {
	return bc.attribute
}

// Release clears the security attribute so the connection can return to the
// pool without a stale tenant filter.
func (bc *BoundConn) Release(ctx context.Context) error {
	_, err := bc.conn.ExecContext(ctx, bc.binder.clearStatement)
	if err != nil && bc.binder.logger != nil {
		bc.binder.logger.Database().Error("Failed to clear security attribute", "error", err.Error())
	}
	return err
}

// Bind sets the row-filter attribute for the selection. For the cross-tenant
// view it re-verifies elevation against the datastore immediately before
// setting the bypass value; a cached or token-carried elevation flag is never
// trusted here. On any verification failure Bind fails closed: it binds the
// principal's home tenant and returns ErrSecurityDowngrade so the caller can
// abort the request instead of serving it wrongly scoped.
func (b *Binder) Bind(ctx context.Context, conn SessionConn, p scope.Principal, sel scope.Selection) (*BoundConn, error) {
	start := time.Now()

	switch sel.Kind {
	case scope.KindSingle:
		if err := b.setAttribute(ctx, conn, sel.TenantID); err != nil {
			return nil, err
		}
		return &BoundConn{conn: conn, binder: b, attribute: sel.TenantID}, nil

	case scope.KindAll:
		elevated, err := b.directory.IsElevated(ctx, p.ID)
		if err != nil || !elevated {
			monitoring.SecurityDowngradesTotal.Inc()
			if b.logger != nil {
				b.logger.Auth().Warn("Elevation verification failed, binding restrictive scope",
					"principalId", p.ID, "verified", elevated, "error", errString(err))
			}
			return b.bindRestrictive(ctx, conn, p)
		}

		if err := b.setAttribute(ctx, conn, b.bypassValue); err != nil {
			return nil, err
		}
		if b.logger != nil {
			b.logger.Auth().Debug("Bypass attribute bound after fresh elevation check",
				"principalId", p.ID, "duration", time.Since(start))
		}
		return &BoundConn{conn: conn, binder: b, attribute: b.bypassValue}, nil

	default:
		// An unknown scope kind is treated like a failed verification.
		monitoring.SecurityDowngradesTotal.Inc()
		return b.bindRestrictive(ctx, conn, p)
	}
}

// bindRestrictive binds the most restrictive possible scope, never "no
// filter", and signals the downgrade.
func (b *Binder) bindRestrictive(ctx context.Context, conn SessionConn, p scope.Principal) (*BoundConn, error) {
	home := p.Home()
	if home == "" {
		// No home tenant to fall back to; nothing safe can be bound.
		return nil, scope.ErrSecurityDowngrade
	}
	if err := b.setAttribute(ctx, conn, home); err != nil {
		return nil, err
	}
	return &BoundConn{conn: conn, binder: b, attribute: home}, scope.ErrSecurityDowngrade
}

func (b *Binder) setAttribute(ctx context.Context, conn SessionConn, value string) error {
	_, err := conn.ExecContext(ctx, b.setStatement, value)
	if err != nil && b.logger != nil {
		b.logger.Database().Error("Failed to set security attribute", "error", err.Error())
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
