package infrastructure

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pericarp/es/pkg/eventing"
)

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Events      EventsConfig      `mapstructure:"events"`
	Eventing    EventingConfig    `mapstructure:"eventing"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// EventsConfig holds event system configuration
type EventsConfig struct {
	Publisher string `mapstructure:"publisher"` // channel, pubsub
}

// EventingConfig configures the outbox delivery/reclaim/dispatch cadence;
// see eventing.EventEngineConfig, which this is converted into.
type EventingConfig struct {
	DeliverIntervalMS  int `mapstructure:"deliver_interval_ms"`
	ReclaimIntervalMS  int `mapstructure:"reclaim_interval_ms"`
	HandlerConcurrency int `mapstructure:"handler_concurrency"`
}

// EngineConfig converts EventingConfig to eventing.EventEngineConfig.
func (c EventingConfig) EngineConfig() eventing.EventEngineConfig {
	return eventing.EventEngineConfig{
		DeliverInterval:    time.Duration(c.DeliverIntervalMS) * time.Millisecond,
		ReclaimInterval:    time.Duration(c.ReclaimIntervalMS) * time.Millisecond,
		HandlerConcurrency: c.HandlerConcurrency,
	}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Format string `mapstructure:"format"` // json, text
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PERICARP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults()

	// An explicit file (the demo CLI's --config flag) replaces the search paths
	if file := os.Getenv("PERICARP_CONFIG_FILE"); file != "" {
		viper.SetConfigFile(file)
	}

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "file:events.db?cache=shared&mode=rwc")

	// Events defaults
	viper.SetDefault("events.publisher", "channel")

	// Eventing defaults (outbox delivery/reclaim/dispatch cadence)
	viper.SetDefault("eventing.deliver_interval_ms", 10000)
	viper.SetDefault("eventing.reclaim_interval_ms", 60000)
	viper.SetDefault("eventing.handler_concurrency", 8)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Performance defaults (event store access patterns and middleware tuning)
	viper.SetDefault("performance.event_store.batch_size", 100)
	viper.SetDefault("performance.event_store.max_event_history", 10000)
	viper.SetDefault("performance.event_store.connection_pool_size", 10)
	viper.SetDefault("performance.event_store.query_timeout", 30*time.Second)
	viper.SetDefault("performance.event_store.enable_query_optimization", true)
	viper.SetDefault("performance.middleware.enable_metrics", true)
	viper.SetDefault("performance.middleware.enable_detailed_logging", false)
	viper.SetDefault("performance.middleware.cache_ttl", 5*time.Minute)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate database driver
	switch config.Database.Driver {
	case "sqlite", "postgres":
		// Valid drivers
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", config.Database.Driver)
	}

	// Validate DSN is not empty
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	// Validate events publisher
	switch config.Events.Publisher {
	case "channel", "pubsub":
		// Valid publishers
	default:
		return fmt.Errorf("unsupported events publisher: %s (supported: channel, pubsub)", config.Events.Publisher)
	}

	// Validate logging level
	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
		// Valid levels
	default:
		return fmt.Errorf("unsupported logging level: %s (supported: debug, info, warn, error, fatal)", config.Logging.Level)
	}

	// Validate logging format
	switch config.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("unsupported logging format: %s (supported: json, text)", config.Logging.Format)
	}

	if config.Eventing.DeliverIntervalMS <= 0 {
		return fmt.Errorf("eventing deliver_interval_ms must be positive")
	}
	if config.Eventing.ReclaimIntervalMS <= 0 {
		return fmt.Errorf("eventing reclaim_interval_ms must be positive")
	}
	if config.Eventing.HandlerConcurrency <= 0 {
		return fmt.Errorf("eventing handler_concurrency must be positive")
	}

	return nil
}

// GetSQLiteDSN returns a SQLite DSN for the given database file
func GetSQLiteDSN(dbFile string) string {
	return fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbFile)
}

// GetPostgresDSN returns a PostgreSQL DSN with the given parameters
func GetPostgresDSN(host, user, password, dbname string, port int, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		host, user, password, dbname, port, sslmode)
}