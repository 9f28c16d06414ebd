package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string         `mapstructure:"environment" validate:"required"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Store       StoreConfig    `mapstructure:"store"`
	Index       IndexConfig    `mapstructure:"index"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Server      ServerConfig   `mapstructure:"server"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

// LoggingConfig holds process logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// StoreConfig holds document store configuration.
// An empty Endpoint disables writes.
type StoreConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Region   string        `mapstructure:"region"`
	Service  string        `mapstructure:"service"`
	Sign     bool          `mapstructure:"sign"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// Static signing keys; empty uses the default AWS credential chain
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key" validate:"required_with=AccessKey"`
	SessionToken string `mapstructure:"session_token"`
}

// IndexConfig holds index naming and settings
type IndexConfig struct {
	Prefix   string `mapstructure:"prefix" validate:"required,lowercase"`
	Shards   int    `mapstructure:"shards" validate:"gte=1"`
	Replicas int    `mapstructure:"replicas" validate:"gte=0"`
}

// PipelineConfig holds per-invocation processing configuration
type PipelineConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=1"`
}

// ServerConfig holds the HTTP ingest server configuration
type ServerConfig struct {
	Address   string        `mapstructure:"address"`
	Timeout   time.Duration `mapstructure:"timeout"`
	AccessKey string        `mapstructure:"access_key"`
}

// CacheConfig holds known-index cache housekeeping configuration
type CacheConfig struct {
	PruneInterval time.Duration `mapstructure:"prune_interval" validate:"gt=0"`
	RetentionDays int           `mapstructure:"retention_days" validate:"gte=1"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// legacyEnv maps the bare environment names of earlier deployments onto config keys.
var legacyEnv = map[string]string{
	"store.endpoint": "OPENSEARCH_ENDPOINT",
	"store.region":   "AWS_REGION",
	"index.prefix":   "INDEX_PREFIX",
	"logging.level":  "LOG_LEVEL",
}

// LoadConfig reads configuration from file or environment variables.
// An empty path searches the working directory and ./config.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Setup configuration paths
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".env") {
		v.SetConfigFile(path)
	} else {
		if path != "" {
			v.AddConfigPath(path)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Try to read the YAML config first
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			v.SetConfigName("app")
			v.SetConfigType("env")
			// Continue even if no config file is found - ENV vars and defaults apply
			_ = v.ReadInConfig()
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Enable environment variables to override config
	v.SetEnvPrefix("LOGROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "LOGROUTER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("unable to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	config.Logging.Level = NormalizeLevel(config.Logging.Level)

	if err := Validate(config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// NormalizeLevel lower-cases a level name and folds "warning" into "warn"
func NormalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

// Validate checks the configuration ranges
func Validate(config Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "production")

	// Logging settings
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Document store settings
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.region", "ap-northeast-2")
	v.SetDefault("store.service", "es")
	v.SetDefault("store.sign", true)
	v.SetDefault("store.username", "")
	v.SetDefault("store.password", "")
	v.SetDefault("store.timeout", "30s")
	v.SetDefault("store.access_key", "")
	v.SetDefault("store.secret_key", "")
	v.SetDefault("store.session_token", "")

	// Index settings
	v.SetDefault("index.prefix", "logs")
	v.SetDefault("index.shards", 1)
	v.SetDefault("index.replicas", 0)

	// Pipeline settings
	v.SetDefault("pipeline.workers", 8)

	// Server settings
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "60s")
	v.SetDefault("server.access_key", "")

	// Cache settings
	v.SetDefault("cache.prune_interval", "1h")
	v.SetDefault("cache.retention_days", 2)

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "48h")

	// Tracing settings
	v.SetDefault("tracing.license_key", "")
	v.SetDefault("tracing.app_name", "Log Router")
	v.SetDefault("tracing.log_enabled", false)
	v.SetDefault("tracing.distributed_tracing_enabled", true)
}

// StoreEnabled reports whether a document store endpoint is configured
func (c Config) StoreEnabled() bool {
	return strings.TrimSpace(c.Store.Endpoint) != ""
}
