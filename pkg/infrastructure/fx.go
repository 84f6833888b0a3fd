package infrastructure

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/pericarp/es/pkg/application"
	"github.com/pericarp/es/pkg/domain"
	"github.com/pericarp/es/pkg/eventing"
	"github.com/pericarp/es/pkg/security"
)

// InfrastructureModule provides the production adapters for every port
// pkg/domain and pkg/eventing define: a GORM-backed event/snapshot store, a
// Watermill event bus, an in-memory outbox deliverer/reclaimer, and a
// Prometheus metrics collector. A test or demo fx.App overrides individual
// providers (e.g. swap GormEventRepository for MemoryEventRepository) by
// providing its own constructor earlier in the option list.
var InfrastructureModule = fx.Options(
	fx.Provide(
		LoadConfig,
		LoggerProvider,
		DatabaseProvider,
		EventRepositoryProvider,
		SnapshotRepositoryProvider,
		EventBusProvider,
		OutboxProvider,
		EventDelivererProvider,
		EventReclaimerProvider,
		MetricsRegistererProvider,
		PrometheusMetricsCollectorProvider,
		CacheProviderProvider,
	),
	fx.Invoke(
		registerDatabaseLifecycle,
	),
)

// registerDatabaseLifecycle pings the database on start and closes the
// connection pool on stop.
func registerDatabaseLifecycle(lc fx.Lifecycle, db *gorm.DB, logger domain.Logger) {
	errorHandler := security.NewSecurityErrorHandler(logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			// DSNs embed credentials (user:pass@host); route ping failures
			// through the sanitizer so a logged error never leaks them.
			if err := sqlDB.PingContext(ctx); err != nil {
				return errorHandler.HandleSystemError(err, "database ping")
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}

// LoggerProvider creates a logger based on config. Performance.Middleware's
// EnableDetailedLogging forces debug level regardless of Logging.Level, for
// a development/troubleshooting wiring that shouldn't require touching the
// base logging config.
func LoggerProvider(config *Config) domain.Logger {
	level := config.Logging.Level
	if config.Performance.Middleware.EnableDetailedLogging {
		level = "debug"
	}
	return NewLogger(level, config.Logging.Format)
}

// DatabaseProvider opens the configured GORM connection and sizes its
// underlying connection pool from Performance.EventStore.
func DatabaseProvider(config *Config) (*gorm.DB, error) {
	db, err := NewDatabase(config.Database)
	if err != nil {
		return nil, err
	}
	if poolSize := config.Performance.EventStore.ConnectionPoolSize; poolSize > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(poolSize)
		sqlDB.SetMaxIdleConns(poolSize)
	}
	return db, nil
}

// EventRepositoryProvider constructs the GORM-backed domain.EventRepository,
// tuned by Performance.EventStore.
func EventRepositoryProvider(db *gorm.DB, config *Config) (domain.EventRepository, error) {
	return NewGormEventRepository(db, config.Performance.EventStore)
}

// SnapshotRepositoryProvider constructs the GORM-backed
// domain.SnapshotRepository, wrapped with an in-process cache sized from
// Performance.Middleware.CacheTTL.
func SnapshotRepositoryProvider(db *gorm.DB, config *Config) (domain.SnapshotRepository, error) {
	repo, err := NewGormSnapshotRepository(db)
	if err != nil {
		return nil, err
	}
	ttl := config.Performance.Middleware.CacheTTL
	if ttl <= 0 {
		ttl = defaultSnapshotCacheTTL
	}
	return NewCachingSnapshotRepository(repo, ttl, 2*ttl), nil
}

// CacheProviderProvider supplies the production application.CacheProvider,
// a go-cache-backed cache sized from Performance.Middleware.
func CacheProviderProvider(config *Config) application.CacheProvider {
	ttl := config.Performance.Middleware.CacheTTL
	if ttl <= 0 {
		ttl = defaultSnapshotCacheTTL
	}
	return NewGoCacheProvider(ttl, 2*ttl)
}

// EventBusProvider wires a Watermill-backed eventing.EventBus behind a
// circuit breaker.
func EventBusProvider(logger domain.Logger) eventing.EventBus {
	bus := NewWatermillEventBus(NewWatermillLoggerAdapter(logger))
	return NewBreakerEventBus(bus, DefaultBreakerSettings("event-bus"))
}

// OutboxProvider creates the shared in-memory outbox the default deliverer
// and reclaimer draw from. A production deployment swaps this for a
// database-table-backed outbox sharing the same eventing ports.
func OutboxProvider() *MemoryOutbox {
	return NewMemoryOutbox()
}

// EventDelivererProvider wraps a MemoryEventDeliverer with rate limiting.
func EventDelivererProvider(outbox *MemoryOutbox) eventing.EventDeliverer {
	deliverer := NewMemoryEventDeliverer(outbox)
	return NewRateLimitedDeliverer(deliverer, defaultDeliveryRatePerSecond, defaultDeliveryBurst)
}

// EventReclaimerProvider constructs the reclaimer half of the shared outbox.
func EventReclaimerProvider(outbox *MemoryOutbox) eventing.EventReclaimer {
	return NewMemoryEventReclaimer(outbox)
}

// MetricsRegistererProvider supplies the Prometheus registry
// PrometheusMetricsCollectorProvider registers against.
func MetricsRegistererProvider() prometheus.Registerer {
	return prometheus.NewRegistry()
}

// PrometheusMetricsCollectorProvider supplies the production
// application.MetricsCollector, or a dependency-free in-memory one when
// Performance.Middleware.EnableMetrics is false (a test/demo profile that
// wants the bus's MetricsMiddleware to still have something to call without
// registering Prometheus collectors). A production fx.App combines
// InfrastructureModule with application.ApplicationModule (not
// application.DefaultsModule, which provides the same type) so there is
// exactly one constructor for the interface in the graph.
func PrometheusMetricsCollectorProvider(reg prometheus.Registerer, config *Config) (application.MetricsCollector, error) {
	if !config.Performance.Middleware.EnableMetrics {
		return application.NewInMemoryMetricsCollector(), nil
	}
	return NewPrometheusMetricsCollector(reg)
}

const (
	defaultSnapshotCacheTTL      = 5 * time.Minute
	defaultDeliveryRatePerSecond = 50
	defaultDeliveryBurst         = 100
)
