// Package config provides centralized default values for Clarident
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Auth
	JWTSecret string

	// Database
	DBDriver                 string
	DBDataSource             string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Row-level security session attribute. The storage engine is an
	// external collaborator; these statements are whatever the deployed
	// engine expects for setting and clearing its session-scoped tenant
	// attribute. The bypass value disables row filtering and is only ever
	// set after a fresh elevation check.
	RLSSetStatement   string
	RLSClearStatement string
	RLSBypassValue    string

	// Redis (durable cache tier + scope records)
	RedisAddr    string
	RedisDB      int
	RedisEnabled bool

	// Backup cache tier (sqlite file, degraded-mode reads)
	BackupCachePath string

	// TTL Configuration
	DirectoryTTL   time.Duration
	DashboardTTL   time.Duration
	EntitlementTTL time.Duration
	ScopeRecordTTL time.Duration

	// Cache size governance
	MemoryTierMaxEntries  int
	DurableTierMaxEntries int
	BackupTierMaxEntries  int
	CleanupInterval       time.Duration
	CleanupVerbose        bool

	// Aggregation
	AggregationTimeout time.Duration

	// Scope switch rate limiting (fixed window)
	ScopeSwitchLimit  int
	ScopeSwitchWindow time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDataSource = getEnvString("DB_DATA_SOURCE", "clarident.db")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Row-level security
	RLSSetStatement = getEnvString("RLS_SET_STATEMENT", "SELECT set_config('app.current_tenant', ?, false)")
	RLSClearStatement = getEnvString("RLS_CLEAR_STATEMENT", "SELECT set_config('app.current_tenant', '', false)")
	RLSBypassValue = getEnvString("RLS_BYPASS_VALUE", "rls_bypass")

	// Redis
	RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	RedisDB = getEnvInt("REDIS_DB", 0)
	RedisEnabled = getEnvBool("REDIS_ENABLED", true)

	// Backup cache tier
	BackupCachePath = getEnvString("BACKUP_CACHE_PATH", "cache_backup.db")

	// TTL Configuration
	DirectoryTTL = time.Duration(getEnvInt("DIRECTORY_TTL_MINUTES", 5)) * time.Minute
	DashboardTTL = time.Duration(getEnvInt("DASHBOARD_TTL_MINUTES", 10)) * time.Minute
	EntitlementTTL = time.Duration(getEnvInt("ENTITLEMENT_TTL_MINUTES", 5)) * time.Minute
	ScopeRecordTTL = time.Duration(getEnvInt("SCOPE_RECORD_TTL_HOURS", 12)) * time.Hour

	// Cache size governance
	MemoryTierMaxEntries = getEnvInt("MEMORY_TIER_MAX_ENTRIES", 10000)
	DurableTierMaxEntries = getEnvInt("DURABLE_TIER_MAX_ENTRIES", 50000)
	BackupTierMaxEntries = getEnvInt("BACKUP_TIER_MAX_ENTRIES", 50000)
	CleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	CleanupVerbose = getEnvBool("CACHE_CLEANUP_VERBOSE", false)

	// Aggregation
	AggregationTimeout = getEnvDuration("AGGREGATION_TIMEOUT", 5*time.Second)

	// Scope switch rate limiting
	ScopeSwitchLimit = getEnvInt("SCOPE_SWITCH_LIMIT", 10)
	ScopeSwitchWindow = getEnvDuration("SCOPE_SWITCH_WINDOW", 60*time.Second)
}
