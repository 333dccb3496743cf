// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/clarident/clarident-go/internal/application/services"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/cleanup"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/interfaces"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/manager"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/stores"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/audit"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/scopestate"
	"github.com/clarident/clarident-go/internal/infrastructure/ratelimit"
	"github.com/clarident/clarident-go/internal/infrastructure/security"
	"github.com/clarident/clarident-go/internal/infrastructure/tenant"
	"github.com/clarident/clarident-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies.
// Per-request state (bound connections, repositories) is never stored here.
type Container struct {
	ScopeService      *services.ScopeService
	AggregatorService *services.AggregatorService
	AuditService      *services.AuditService

	DB            *database.DB
	Directory     *tenant.Directory
	Binder        *security.Binder
	CacheManager  *manager.Manager
	CleanupWorker *cleanup.Worker
	Limiter       *ratelimit.FixedWindow
	Logger        *logging.ChanneledLogger
	Clock         clock.Clock
}

// NewContainer creates and wires all singleton services from configuration.
func NewContainer(ctx context.Context, logger *logging.ChanneledLogger) (*Container, error) {
	clk := clock.New()

	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBDataSource, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cacheManager, err := buildCacheManager(ctx, clk, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	directory := tenant.NewDirectory(db, cacheManager, logger)
	binder := security.NewBinder(directory, logger,
		config.RLSSetStatement, config.RLSClearStatement, config.RLSBypassValue)

	scopeRecords, err := buildScopeStore(clk)
	if err != nil {
		db.Close()
		return nil, err
	}

	auditStore, err := audit.NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit store: %w", err)
	}

	limiter := ratelimit.NewFixedWindow(config.ScopeSwitchLimit, config.ScopeSwitchWindow, clk)

	return &Container{
		ScopeService:      services.NewScopeService(directory, scopeRecords, auditStore, limiter, logger, clk),
		AggregatorService: services.NewAggregatorService(cacheManager, logger, clk),
		AuditService:      services.NewAuditService(auditStore, logger),
		DB:                db,
		Directory:         directory,
		Binder:            binder,
		CacheManager:      cacheManager,
		CleanupWorker:     cleanup.NewWorker(cacheManager, cleanup.NewConfig(), clk),
		Limiter:           limiter,
		Logger:            logger,
		Clock:             clk,
	}, nil
}

func buildCacheManager(ctx context.Context, clk clock.Clock, logger *logging.ChanneledLogger) (*manager.Manager, error) {
	tierStores := []interfaces.Store{stores.NewMemoryStore(logger)}

	if config.RedisEnabled {
		redisStore, err := stores.NewRedisStore(ctx, stores.RedisConfig{
			Addr: config.RedisAddr,
			DB:   config.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init durable cache tier: %w", err)
		}
		tierStores = append(tierStores, redisStore)
	}

	if config.BackupCachePath != "" {
		backupStore, err := stores.NewBackupStore(config.DBDriver, config.BackupCachePath, logger)
		if err != nil {
			return nil, fmt.Errorf("init backup cache tier: %w", err)
		}
		tierStores = append(tierStores, backupStore)
	}

	return manager.NewManager(clk, logger, tierStores...), nil
}

func buildScopeStore(clk clock.Clock) (scopestate.Store, error) {
	if !config.RedisEnabled {
		return scopestate.NewMemoryStore(clk), nil
	}
	store, err := scopestate.NewRedisStore(config.RedisAddr, config.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("init scope record store: %w", err)
	}
	return store, nil
}

// Shutdown releases the container's long-lived resources.
func (c *Container) Shutdown() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
