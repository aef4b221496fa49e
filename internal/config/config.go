// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
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

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// SessionTimeoutSeconds is the shopper session inactivity timeout.
	SessionTimeoutSeconds      int `mapstructure:"sessiontimeoutseconds"`
	LoginSessionTimeoutSeconds int `mapstructure:"loginsessiontimeoutseconds"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	GeoLiteLicenseKey     string `mapstructure:"geolitelicensekey"`
	GeoLiteDownloadURL    string `mapstructure:"geolitedownloadurl"`
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

	// Tracker settings (storefront side of the pipeline)
	TrackerEndpoint         string `mapstructure:"trackerendpoint"`
	FlushIntervalSeconds    int    `mapstructure:"flushintervalseconds"`
	// QueueCapacity may exceed the collector's per-request limit; flushes
	// are split into requests of at most tracking.MaxBatchSize events.
	QueueCapacity           int    `mapstructure:"queuecapacity"`
	RequestTimeoutSeconds   int    `mapstructure:"requesttimeoutseconds"`
	BreakerFailureThreshold int    `mapstructure:"breakerfailurethreshold"`
	BreakerCooldownSeconds  int    `mapstructure:"breakercooldownseconds"`
	RedisURL                string `mapstructure:"redisurl"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	EventRetentionDays int `mapstructure:"eventretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env is the normal case outside local development.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("appname", "shopsphere")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("loginsessiontimeoutseconds", 604800)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("geolitelicensekey", "")
		v.SetDefault("geolitedownloadurl", "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=%s&suffix=tar.gz")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("trackerendpoint", "http://localhost:3000")
		v.SetDefault("flushintervalseconds", 5)
		v.SetDefault("queuecapacity", 1000)
		v.SetDefault("requesttimeoutseconds", 10)
		v.SetDefault("breakerfailurethreshold", 5)
		v.SetDefault("breakercooldownseconds", 30)
		v.SetDefault("redisurl", "")
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("eventretentiondays", 365)

		v.BindEnv("appname", "SHOPSPHERE_APP_NAME")
		v.BindEnv("appport", "SHOPSPHERE_APP_PORT")
		v.BindEnv("environment", "SHOPSPHERE_ENV")
		v.BindEnv("loglevel", "SHOPSPHERE_LOG_LEVEL")
		v.BindEnv("privatekey", "SHOPSPHERE_PRIVATE_KEY")
		v.BindEnv("sessiontimeoutseconds", "SHOPSPHERE_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("loginsessiontimeoutseconds", "SHOPSPHERE_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("storagepath", "SHOPSPHERE_STORAGE_PATH")
		v.BindEnv("geodbpath", "SHOPSPHERE_GEO_DB_PATH")
		v.BindEnv("geolitelicensekey", "SHOPSPHERE_GEOLITE_LICENSE_KEY")
		v.BindEnv("geolitedownloadurl", "SHOPSPHERE_GEOLITE_DOWNLOAD_URL")
		v.BindEnv("publicdir", "SHOPSPHERE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "SHOPSPHERE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "SHOPSPHERE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "SHOPSPHERE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "SHOPSPHERE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "SHOPSPHERE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "SHOPSPHERE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "SHOPSPHERE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "SHOPSPHERE_DB_MAX_IDLE_CONNS")
		v.BindEnv("trackerendpoint", "SHOPSPHERE_TRACKER_ENDPOINT")
		v.BindEnv("flushintervalseconds", "SHOPSPHERE_FLUSH_INTERVAL_SECONDS")
		v.BindEnv("queuecapacity", "SHOPSPHERE_QUEUE_CAPACITY")
		v.BindEnv("requesttimeoutseconds", "SHOPSPHERE_REQUEST_TIMEOUT_SECONDS")
		v.BindEnv("breakerfailurethreshold", "SHOPSPHERE_BREAKER_FAILURE_THRESHOLD")
		v.BindEnv("breakercooldownseconds", "SHOPSPHERE_BREAKER_COOLDOWN_SECONDS")
		v.BindEnv("redisurl", "SHOPSPHERE_REDIS_URL")
		v.BindEnv("jobintervalseconds", "SHOPSPHERE_JOB_INTERVAL_SECONDS")
		v.BindEnv("eventretentiondays", "SHOPSPHERE_EVENT_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique SHOPSPHERE_PRIVATE_KEY (cannot use default)")
		}
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

	if c.DatabaseType != SQLiteDatabase {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}

	if c.FlushIntervalSeconds <= 0 {
		return fmt.Errorf("flush interval must be positive: %d", c.FlushIntervalSeconds)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive: %d", c.QueueCapacity)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request timeout must be positive: %d", c.RequestTimeoutSeconds)
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

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the shopper session timeout in seconds.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// GetLoginSessionTimeout returns the operator cookie lifetime in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// An explicit env var wins; otherwise tests get 1 and everything else 10.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment.
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

// FlushInterval is the pending-queue flush period.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// RequestTimeout bounds every tracker request to the collection endpoint.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SessionTimeout is the shopper session inactivity window.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// BreakerCooldown is how long the transport circuit stays open.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
