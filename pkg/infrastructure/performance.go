package infrastructure

import (
	"time"
)

// PerformanceConfig bundles the tunables that vary between a development,
// test, and production wiring of the same event-store and middleware
// components. Unlike Config.Eventing (the outbox delivery/reclaim cadence),
// this covers storage access patterns and cross-cutting middleware, so the
// two are loaded from separate top-level config sections.
type PerformanceConfig struct {
	// EventStore configuration
	EventStore EventStoreConfig `mapstructure:"event_store"`

	// Middleware configuration
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// EventStoreConfig contains event store performance settings, consumed by
// DatabaseProvider (ConnectionPoolSize) and GormEventRepository (BatchSize,
// MaxEventHistory, QueryTimeout, EnableQueryOptimization).
type EventStoreConfig struct {
	// BatchSize for bulk inserts (default: 100)
	BatchSize int `mapstructure:"batch_size"`

	// MaxEventHistory limits the number of events loaded per aggregate (default: 10000)
	MaxEventHistory int `mapstructure:"max_event_history"`

	// ConnectionPoolSize for database connections (default: 10)
	ConnectionPoolSize int `mapstructure:"connection_pool_size"`

	// QueryTimeout for database queries (default: 30s)
	QueryTimeout time.Duration `mapstructure:"query_timeout"`

	// EnableQueryOptimization enables GORM prepared-statement caching (default: true)
	EnableQueryOptimization bool `mapstructure:"enable_query_optimization"`
}

// MiddlewareConfig contains middleware performance settings, consumed by
// LoggerProvider (EnableDetailedLogging), PrometheusMetricsCollectorProvider
// (EnableMetrics), and SnapshotRepositoryProvider/CacheProviderProvider
// (CacheTTL).
type MiddlewareConfig struct {
	// EnableMetrics switches between the Prometheus-backed MetricsCollector
	// and a dependency-free in-memory one that never leaves the process
	// (default: true)
	EnableMetrics bool `mapstructure:"enable_metrics"`

	// EnableDetailedLogging forces debug-level logging regardless of
	// Logging.Level (default: false in production)
	EnableDetailedLogging bool `mapstructure:"enable_detailed_logging"`

	// CacheTTL for the snapshot and query caches (default: 5m)
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DefaultPerformanceConfig returns default performance configuration.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		EventStore: EventStoreConfig{
			BatchSize:               100,
			MaxEventHistory:         10000,
			ConnectionPoolSize:      10,
			QueryTimeout:            30 * time.Second,
			EnableQueryOptimization: true,
		},
		Middleware: MiddlewareConfig{
			EnableMetrics:         true,
			EnableDetailedLogging: false,
			CacheTTL:              5 * time.Minute,
		},
	}
}

// ProductionPerformanceConfig returns optimized configuration for production.
func ProductionPerformanceConfig() PerformanceConfig {
	config := DefaultPerformanceConfig()

	config.EventStore.BatchSize = 200
	config.EventStore.ConnectionPoolSize = 20
	config.EventStore.QueryTimeout = 10 * time.Second

	config.Middleware.EnableDetailedLogging = false
	config.Middleware.CacheTTL = 10 * time.Minute

	return config
}

// DevelopmentPerformanceConfig returns configuration optimized for development.
func DevelopmentPerformanceConfig() PerformanceConfig {
	config := DefaultPerformanceConfig()

	config.EventStore.BatchSize = 50
	config.EventStore.ConnectionPoolSize = 5
	config.EventStore.QueryTimeout = 60 * time.Second

	config.Middleware.EnableDetailedLogging = true
	config.Middleware.CacheTTL = 1 * time.Minute

	return config
}

// TestPerformanceConfig returns configuration optimized for testing.
func TestPerformanceConfig() PerformanceConfig {
	config := DefaultPerformanceConfig()

	config.EventStore.BatchSize = 10
	config.EventStore.ConnectionPoolSize = 2
	config.EventStore.QueryTimeout = 5 * time.Second

	config.Middleware.EnableDetailedLogging = false
	config.Middleware.EnableMetrics = false // Disable metrics in tests
	config.Middleware.CacheTTL = 10 * time.Second

	return config
}
