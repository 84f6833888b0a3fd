package application

import "go.uber.org/fx"

// ApplicationModule provides the command/query buses. MetricsCollector and
// CacheProvider are deliberately not provided here: infrastructure.
// InfrastructureModule supplies the production Prometheus-backed collector
// and go-cache-backed provider, and fx treats two constructors for the same
// output type in one app as a build error, not a fallback, so the
// dependency-free defaults live in DefaultsModule instead for wiring that
// never includes InfrastructureModule.
var ApplicationModule = fx.Options(
	fx.Provide(
		NewCommandBus,
		NewQueryBus,
	),
)

// DefaultsModule supplies the dependency-free in-memory MetricsCollector and
// CacheProvider. Combine it with ApplicationModule for standalone tests and
// demos; a production fx.App includes infrastructure.InfrastructureModule
// instead, never both.
var DefaultsModule = fx.Options(
	fx.Provide(
		MetricsCollectorProvider,
		CacheProviderProvider,
	),
)

// MetricsCollectorProvider supplies the dependency-free MetricsCollector.
func MetricsCollectorProvider() MetricsCollector {
	return NewInMemoryMetricsCollector()
}

// CacheProviderProvider supplies the dependency-free CacheProvider.
func CacheProviderProvider() CacheProvider {
	return NewInMemoryCache()
}
