package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corelattice/lattice/src/common"
)

// Config holds the tunables of a serving node.
type Config struct {
	// SyncInterval is the period of the background chain synchronization.
	SyncInterval time.Duration `mapstructure:"sync-interval"`

	// TCPTimeout is applied to outgoing queries.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// CacheSize is the number of items in the recency caches.
	CacheSize int `mapstructure:"cache-size"`

	// BatchLimit caps how many certificates are requested from a validator
	// in one query.
	BatchLimit int `mapstructure:"batch-limit"`

	Logger *logrus.Logger
}

// NewConfig creates a Config.
func NewConfig(syncInterval time.Duration,
	timeout time.Duration,
	cacheSize int,
	batchLimit int,
	logger *logrus.Logger) *Config {

	return &Config{
		SyncInterval: syncInterval,
		TCPTimeout:   timeout,
		CacheSize:    cacheSize,
		BatchLimit:   batchLimit,
		Logger:       logger,
	}
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		SyncInterval: 1000 * time.Millisecond,
		TCPTimeout:   1000 * time.Millisecond,
		CacheSize:    5000,
		BatchLimit:   DefaultBatchLimit,
		Logger:       logger,
	}
}

// TestConfig returns a config with a logger hooked to the test runner.
func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
