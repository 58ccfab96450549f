package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Persistence PersistenceConfig
	Ledger      LedgerConfig
	Engine      EngineConfig
	Directory   DirectoryConfig
	Auth        AuthConfig
	Tracing     TracingConfig
	Activity    ActivityConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// PersistenceConfig contains persistence configuration
type PersistenceConfig struct {
	Type       string // "memory", "badger"
	DataDir    string
	BackupDir  string
	SyncWrites bool
}

// LedgerConfig holds the integrity ledger signing material.
type LedgerConfig struct {
	SecretKey string
}

// EngineConfig tunes audit item generation and collection.
type EngineConfig struct {
	SampleSize         int
	CyclicStaleness    time.Duration
	CollectConcurrency int
	OperationTimeout   time.Duration
	VerifyBatchSize    int
	ItemChunkSize      int
}

// DirectoryConfig selects the asset directory backend.
type DirectoryConfig struct {
	Type     string // "memory", "postgres"
	SeedFile string
	DSN      string
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	Enabled     bool
	JWTSecret   string
	JWTExpiry   time.Duration
	Issuer      string
	RequireAuth bool
	PublicPaths []string
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// ActivityConfig configures the operational activity trail.
type ActivityConfig struct {
	Enabled       bool
	Sink          string // "stdout", "file"
	FilePath      string
	BufferSize    int
	FlushInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnvString("AUDITLEDGER_HOST", ""),
			Port: getEnvInt("AUDITLEDGER_PORT", 8890),
		},
		Log: LogConfig{
			Level:  getEnvString("AUDITLEDGER_LOG_LEVEL", "info"),
			Format: getEnvString("AUDITLEDGER_LOG_FORMAT", "text"),
		},
		Persistence: PersistenceConfig{
			Type:       getEnvString("AUDITLEDGER_PERSISTENCE_TYPE", "badger"),
			DataDir:    getEnvString("AUDITLEDGER_DATA_DIR", "./data"),
			BackupDir:  getEnvString("AUDITLEDGER_BACKUP_DIR", "./backups"),
			SyncWrites: getEnvBool("AUDITLEDGER_SYNC_WRITES", true),
		},
		Ledger: LedgerConfig{
			SecretKey: getEnvString("AUDITLEDGER_LEDGER_SECRET", ""),
		},
		Engine: EngineConfig{
			SampleSize:         getEnvInt("AUDITLEDGER_SAMPLE_SIZE", 100),
			CyclicStaleness:    getEnvDuration("AUDITLEDGER_CYCLIC_STALENESS", 180*24*time.Hour),
			CollectConcurrency: getEnvInt("AUDITLEDGER_COLLECT_CONCURRENCY", 8),
			OperationTimeout:   getEnvDuration("AUDITLEDGER_OPERATION_TIMEOUT", 10*time.Second),
			VerifyBatchSize:    getEnvInt("AUDITLEDGER_VERIFY_BATCH_SIZE", 200),
			ItemChunkSize:      getEnvInt("AUDITLEDGER_ITEM_CHUNK_SIZE", 1000),
		},
		Directory: DirectoryConfig{
			Type:     getEnvString("AUDITLEDGER_DIRECTORY_TYPE", "memory"),
			SeedFile: getEnvString("AUDITLEDGER_DIRECTORY_SEED", ""),
			DSN:      getEnvString("AUDITLEDGER_DIRECTORY_DSN", ""),
		},
		Auth: AuthConfig{
			Enabled:     getEnvBool("AUDITLEDGER_AUTH_ENABLED", false),
			JWTSecret:   getEnvString("AUDITLEDGER_JWT_SECRET", ""),
			JWTExpiry:   getEnvDuration("AUDITLEDGER_JWT_EXPIRY", 15*time.Minute),
			Issuer:      getEnvString("AUDITLEDGER_JWT_ISSUER", "auditledger"),
			RequireAuth: getEnvBool("AUDITLEDGER_REQUIRE_AUTH", false),
			PublicPaths: getEnvStringSlice("AUDITLEDGER_PUBLIC_PATHS", []string{"/health", "/health/live", "/health/ready", "/metrics"}),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("AUDITLEDGER_TRACING_ENABLED", false),
			Endpoint:       getEnvString("AUDITLEDGER_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("AUDITLEDGER_TRACING_SERVICE_NAME", "auditledger"),
			ServiceVersion: getEnvString("AUDITLEDGER_TRACING_SERVICE_VERSION", "0.1.0"),
			Environment:    getEnvString("AUDITLEDGER_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("AUDITLEDGER_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("AUDITLEDGER_TRACING_INSECURE", true),
		},
		Activity: ActivityConfig{
			Enabled:       getEnvBool("AUDITLEDGER_ACTIVITY_ENABLED", false),
			Sink:          getEnvString("AUDITLEDGER_ACTIVITY_SINK", "stdout"),
			FilePath:      getEnvString("AUDITLEDGER_ACTIVITY_FILE", "./activity.log"),
			BufferSize:    getEnvInt("AUDITLEDGER_ACTIVITY_BUFFER", 1024),
			FlushInterval: getEnvDuration("AUDITLEDGER_ACTIVITY_FLUSH_INTERVAL", time.Second),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	switch c.Persistence.Type {
	case "memory":
	case "badger":
		if c.Persistence.DataDir == "" {
			return fmt.Errorf("data directory must be specified for badger persistence")
		}
	default:
		return fmt.Errorf("invalid persistence type: %s (must be memory or badger)", c.Persistence.Type)
	}

	// The ledger secret has no default.
	if len(c.Ledger.SecretKey) < 16 {
		return fmt.Errorf("ledger secret must be at least 16 characters")
	}

	if c.Engine.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive")
	}
	if c.Engine.CyclicStaleness <= 0 {
		return fmt.Errorf("cyclic staleness must be positive")
	}
	if c.Engine.CollectConcurrency <= 0 {
		return fmt.Errorf("collect concurrency must be positive")
	}
	if c.Engine.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive")
	}
	if c.Engine.VerifyBatchSize <= 0 {
		return fmt.Errorf("verify batch size must be positive")
	}
	if c.Engine.ItemChunkSize <= 0 {
		return fmt.Errorf("item chunk size must be positive")
	}

	switch c.Directory.Type {
	case "memory":
	case "postgres":
		if c.Directory.DSN == "" {
			return fmt.Errorf("directory DSN must be specified for postgres directory")
		}
	default:
		return fmt.Errorf("invalid directory type: %s (must be memory or postgres)", c.Directory.Type)
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret must be specified when auth is enabled")
		}
		if c.Auth.JWTExpiry <= 0 {
			return fmt.Errorf("JWT expiry must be positive")
		}
		if c.Auth.Issuer == "" {
			return fmt.Errorf("JWT issuer must be specified when auth is enabled")
		}
	}

	if c.Activity.Enabled {
		switch c.Activity.Sink {
		case "stdout":
		case "file":
			if c.Activity.FilePath == "" {
				return fmt.Errorf("activity file path must be specified for file sink")
			}
		default:
			return fmt.Errorf("invalid activity sink: %s (must be stdout or file)", c.Activity.Sink)
		}
	}

	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	if c.Server.Host == "" {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvString gets a string environment variable with a default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvStringSlice gets a comma separated environment variable with a default value
func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
