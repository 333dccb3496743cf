package cleanup

import (
	"time"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
	FillThresholds   map[types.Tier]int
}

// NewConfig creates a new cleanup configuration by reading values
// from the already-initialized variables in the centralized /pkg/config package.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.CleanupInterval,
		VerboseReporting: config.CleanupVerbose,
		FillThresholds: map[types.Tier]int{
			types.TierMemory:  config.MemoryTierMaxEntries,
			types.TierDurable: config.DurableTierMaxEntries,
			types.TierBackup:  config.BackupTierMaxEntries,
		},
	}
}
