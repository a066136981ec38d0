// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Analytics settings
	SessionTimeoutSeconds    int    `mapstructure:"sessiontimeoutseconds"`
	RealtimeWindowMinutes    int    `mapstructure:"realtimewindowminutes"`
	ReportTimezone           string `mapstructure:"reporttimezone"`
	IngestRateLimitPerMinute int    `mapstructure:"ingestratelimitperminute"`

	// DashboardAPIKeyHash is a bcrypt hash of the dashboard bearer key.
	// Empty leaves the dashboard API open.
	DashboardAPIKeyHash string `mapstructure:"dashboardapikeyhash"`

	// PrivateKey seeds cartridge's cookie and CSRF secrets.
	PrivateKey string `mapstructure:"privatekey"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	ReaperIntervalSeconds     int `mapstructure:"reaperintervalseconds"`
	ReaperBatchSize           int `mapstructure:"reaperbatchsize"`
	GeoDBCheckIntervalSeconds int `mapstructure:"geodbcheckintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "blogpulse")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("realtimewindowminutes", 5)
		v.SetDefault("reporttimezone", "UTC")
		v.SetDefault("ingestratelimitperminute", 70)
		v.SetDefault("dashboardapikeyhash", "")
		v.SetDefault("privatekey", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("reaperintervalseconds", 60)
		v.SetDefault("reaperbatchsize", 500)
		v.SetDefault("geodbcheckintervalseconds", 3600)

		v.BindEnv("appname", "BLOGPULSE_APP_NAME")
		v.BindEnv("appport", "BLOGPULSE_APP_PORT")
		v.BindEnv("environment", "BLOGPULSE_ENV")
		v.BindEnv("loglevel", "BLOGPULSE_LOG_LEVEL")
		v.BindEnv("sessiontimeoutseconds", "BLOGPULSE_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("realtimewindowminutes", "BLOGPULSE_REALTIME_WINDOW_MINUTES")
		v.BindEnv("reporttimezone", "BLOGPULSE_REPORT_TIMEZONE")
		v.BindEnv("ingestratelimitperminute", "BLOGPULSE_INGEST_RATE_LIMIT_PER_MINUTE")
		v.BindEnv("dashboardapikeyhash", "BLOGPULSE_DASHBOARD_API_KEY_HASH")
		v.BindEnv("privatekey", "BLOGPULSE_PRIVATE_KEY")
		v.BindEnv("storagepath", "BLOGPULSE_STORAGE_PATH")
		v.BindEnv("geodbpath", "BLOGPULSE_GEO_DB_PATH")
		v.BindEnv("publicdir", "BLOGPULSE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "BLOGPULSE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "BLOGPULSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "BLOGPULSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "BLOGPULSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "BLOGPULSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "BLOGPULSE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "BLOGPULSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "BLOGPULSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("reaperintervalseconds", "BLOGPULSE_REAPER_INTERVAL_SECONDS")
		v.BindEnv("reaperbatchsize", "BLOGPULSE_REAPER_BATCH_SIZE")
		v.BindEnv("geodbcheckintervalseconds", "BLOGPULSE_GEO_DB_CHECK_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be positive, got %d", c.SessionTimeoutSeconds)
	}
	if c.RealtimeWindowMinutes <= 0 {
		return fmt.Errorf("realtime window must be positive, got %d", c.RealtimeWindowMinutes)
	}
	if c.Environment == Production && c.PrivateKey == "" {
		return fmt.Errorf("BLOGPULSE_PRIVATE_KEY is required in production")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("invalid report timezone %q: %w", c.ReportTimezone, err)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name.
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret implements cartridge.FactoryConfig. Outside production an
// empty key falls back to a fixed development value.
func (c *Config) GetSessionSecret() string {
	if c.PrivateKey == "" {
		return "blogpulse-development-secret-key!"
	}
	return c.PrivateKey
}

// GetSessionTimeout returns the visit session window in seconds.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// SessionTimeout is the fixed window, measured from session start, during
// which later events may still attach to an open session.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel dashboard queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
