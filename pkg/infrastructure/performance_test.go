package infrastructure

import (
	"testing"
	"time"
)

func TestDefaultPerformanceConfig(t *testing.T) {
	config := DefaultPerformanceConfig()

	if config.EventStore.BatchSize != 100 {
		t.Errorf("Expected default batch size 100, got %d", config.EventStore.BatchSize)
	}
	if config.EventStore.ConnectionPoolSize != 10 {
		t.Errorf("Expected default connection pool size 10, got %d", config.EventStore.ConnectionPoolSize)
	}
	if !config.EventStore.EnableQueryOptimization {
		t.Error("Expected query optimization enabled by default")
	}
	if !config.Middleware.EnableMetrics {
		t.Error("Expected metrics enabled by default")
	}
}

func TestProductionPerformanceConfig(t *testing.T) {
	config := ProductionPerformanceConfig()

	if config.EventStore.BatchSize != 200 {
		t.Errorf("Expected production batch size 200, got %d", config.EventStore.BatchSize)
	}
	if config.EventStore.ConnectionPoolSize != 20 {
		t.Errorf("Expected production connection pool size 20, got %d", config.EventStore.ConnectionPoolSize)
	}
	if config.Middleware.CacheTTL != 10*time.Minute {
		t.Errorf("Expected production cache TTL 10m, got %v", config.Middleware.CacheTTL)
	}
}

func TestDevelopmentPerformanceConfig(t *testing.T) {
	config := DevelopmentPerformanceConfig()

	if config.EventStore.ConnectionPoolSize != 5 {
		t.Errorf("Expected development connection pool size 5, got %d", config.EventStore.ConnectionPoolSize)
	}
	if !config.Middleware.EnableDetailedLogging {
		t.Error("Expected detailed logging enabled in development")
	}
}

func TestTestPerformanceConfig(t *testing.T) {
	config := TestPerformanceConfig()

	if config.Middleware.EnableMetrics {
		t.Error("Expected metrics disabled in test config")
	}
	if config.EventStore.ConnectionPoolSize != 2 {
		t.Errorf("Expected test connection pool size 2, got %d", config.EventStore.ConnectionPoolSize)
	}
}
