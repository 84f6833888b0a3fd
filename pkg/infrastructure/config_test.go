package infrastructure

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear any existing environment variables
	clearEnvVars()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	// Test default values
	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected default database driver 'sqlite', got '%s'", config.Database.Driver)
	}

	if config.Database.DSN != "file:events.db?cache=shared&mode=rwc" {
		t.Errorf("Expected default database DSN, got '%s'", config.Database.DSN)
	}

	if config.Events.Publisher != "channel" {
		t.Errorf("Expected default events publisher 'channel', got '%s'", config.Events.Publisher)
	}

	if config.Eventing.DeliverIntervalMS != 10000 {
		t.Errorf("Expected default deliver_interval_ms 10000, got %d", config.Eventing.DeliverIntervalMS)
	}
	if config.Eventing.ReclaimIntervalMS != 60000 {
		t.Errorf("Expected default reclaim_interval_ms 60000, got %d", config.Eventing.ReclaimIntervalMS)
	}
	if config.Eventing.HandlerConcurrency != 8 {
		t.Errorf("Expected default handler_concurrency 8, got %d", config.Eventing.HandlerConcurrency)
	}

	if config.Logging.Level != "info" {
		t.Errorf("Expected default logging level 'info', got '%s'", config.Logging.Level)
	}

	if config.Logging.Format != "text" {
		t.Errorf("Expected default logging format 'text', got '%s'", config.Logging.Format)
	}

	if config.Performance.EventStore.BatchSize != 100 {
		t.Errorf("Expected default event_store.batch_size 100, got %d", config.Performance.EventStore.BatchSize)
	}
	if config.Performance.EventStore.ConnectionPoolSize != 10 {
		t.Errorf("Expected default event_store.connection_pool_size 10, got %d", config.Performance.EventStore.ConnectionPoolSize)
	}
	if config.Performance.Middleware.CacheTTL != 5*time.Minute {
		t.Errorf("Expected default middleware.cache_ttl 5m, got %v", config.Performance.Middleware.CacheTTL)
	}
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	// Clear any existing environment variables
	clearEnvVars()

	// Set environment variables
	os.Setenv("PERICARP_DATABASE_DRIVER", "postgres")
	os.Setenv("PERICARP_DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	os.Setenv("PERICARP_EVENTS_PUBLISHER", "pubsub")
	os.Setenv("PERICARP_LOGGING_LEVEL", "debug")
	os.Setenv("PERICARP_LOGGING_FORMAT", "json")

	defer clearEnvVars()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	// Test environment variable values
	if config.Database.Driver != "postgres" {
		t.Errorf("Expected database driver 'postgres', got '%s'", config.Database.Driver)
	}

	expectedDSN := "host=localhost user=test password=test dbname=test port=5432 sslmode=disable"
	if config.Database.DSN != expectedDSN {
		t.Errorf("Expected database DSN '%s', got '%s'", expectedDSN, config.Database.DSN)
	}

	if config.Events.Publisher != "pubsub" {
		t.Errorf("Expected events publisher 'pubsub', got '%s'", config.Events.Publisher)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", config.Logging.Level)
	}

	if config.Logging.Format != "json" {
		t.Errorf("Expected logging format 'json', got '%s'", config.Logging.Format)
	}
}

func TestValidateConfig_InvalidDriver(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "invalid",
			DSN:    "some-dsn",
		},
		Events: EventsConfig{
			Publisher: "channel",
		},
		Eventing: EventingConfig{
			DeliverIntervalMS:  10000,
			ReclaimIntervalMS:  60000,
			HandlerConcurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for invalid database driver")
	}
}

func TestValidateConfig_EmptyDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "",
		},
		Events: EventsConfig{
			Publisher: "channel",
		},
		Eventing: EventingConfig{
			DeliverIntervalMS:  10000,
			ReclaimIntervalMS:  60000,
			HandlerConcurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for empty DSN")
	}
}

func TestValidateConfig_InvalidPublisher(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:test.db",
		},
		Events: EventsConfig{
			Publisher: "invalid",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for invalid events publisher")
	}
}

func TestValidateConfig_InvalidLoggingLevel(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:test.db",
		},
		Events: EventsConfig{
			Publisher: "channel",
		},
		Eventing: EventingConfig{
			DeliverIntervalMS:  10000,
			ReclaimIntervalMS:  60000,
			HandlerConcurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "invalid",
			Format: "text",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for invalid logging level")
	}
}

func TestValidateConfig_InvalidHandlerConcurrency(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:test.db",
		},
		Events: EventsConfig{
			Publisher: "channel",
		},
		Eventing: EventingConfig{
			DeliverIntervalMS:  10000,
			ReclaimIntervalMS:  60000,
			HandlerConcurrency: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for non-positive handler_concurrency")
	}
}

func TestEventingConfig_EngineConfig(t *testing.T) {
	cfg := EventingConfig{
		DeliverIntervalMS:  5000,
		ReclaimIntervalMS:  30000,
		HandlerConcurrency: 4,
	}

	engineConfig := cfg.EngineConfig()
	if engineConfig.DeliverInterval != 5*time.Second {
		t.Errorf("Expected DeliverInterval 5s, got %v", engineConfig.DeliverInterval)
	}
	if engineConfig.ReclaimInterval != 30*time.Second {
		t.Errorf("Expected ReclaimInterval 30s, got %v", engineConfig.ReclaimInterval)
	}
	if engineConfig.HandlerConcurrency != 4 {
		t.Errorf("Expected HandlerConcurrency 4, got %d", engineConfig.HandlerConcurrency)
	}
}

func TestValidateConfig_InvalidLoggingFormat(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:test.db",
		},
		Events: EventsConfig{
			Publisher: "channel",
		},
		Eventing: EventingConfig{
			DeliverIntervalMS:  10000,
			ReclaimIntervalMS:  60000,
			HandlerConcurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "invalid",
		},
	}

	err := validateConfig(config)
	if err == nil {
		t.Error("Expected validation error for invalid logging format")
	}
}

func TestGetSQLiteDSN(t *testing.T) {
	dsn := GetSQLiteDSN("test.db")
	expected := "file:test.db?cache=shared&mode=rwc"
	if dsn != expected {
		t.Errorf("Expected SQLite DSN '%s', got '%s'", expected, dsn)
	}
}

func TestGetPostgresDSN(t *testing.T) {
	dsn := GetPostgresDSN("localhost", "user", "pass", "dbname", 5432, "disable")
	expected := "host=localhost user=user password=pass dbname=dbname port=5432 sslmode=disable"
	if dsn != expected {
		t.Errorf("Expected PostgreSQL DSN '%s', got '%s'", expected, dsn)
	}
}

func TestGetPostgresDSN_DefaultSSLMode(t *testing.T) {
	dsn := GetPostgresDSN("localhost", "user", "pass", "dbname", 5432, "")
	expected := "host=localhost user=user password=pass dbname=dbname port=5432 sslmode=disable"
	if dsn != expected {
		t.Errorf("Expected PostgreSQL DSN with default sslmode '%s', got '%s'", expected, dsn)
	}
}

// clearEnvVars clears all PERICARP environment variables
func clearEnvVars() {
	envVars := []string{
		"PERICARP_DATABASE_DRIVER",
		"PERICARP_DATABASE_DSN",
		"PERICARP_EVENTS_PUBLISHER",
		"PERICARP_LOGGING_LEVEL",
		"PERICARP_LOGGING_FORMAT",
	}

	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}
}