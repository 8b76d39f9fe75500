package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the OpenSubtitles REST API root.
const DefaultBaseURL = "https://api.opensubtitles.com/api/v1"

// DefaultDailyQuota is the number of downloads the provider grants per day
// once the reset instant has passed.
const DefaultDailyQuota = 100

type Config struct {
	OpenSubtitles struct {
		APIKey    string `mapstructure:"api_key"`
		AppName   string `mapstructure:"app_name"`
		BaseURL   string `mapstructure:"base_url"`
		SubFormat string `mapstructure:"sub_format"`
	} `mapstructure:"opensubtitles"`
	DownloadSecurityKey   string `mapstructure:"download_security_key"`
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"` // Go duration string like "30s", "1m", etc.
	Server                struct {
		Port            int    `mapstructure:"port"`
		Address         string `mapstructure:"address"`
		ShutdownTimeout string `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	GRPC struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"grpc"`
	LogLevel string `mapstructure:"log_level"`
	Cache    struct {
		Provider string `mapstructure:"provider"` // "memory" or "redis"
		Size     int    `mapstructure:"size"`     // Maximum number of entries in the LRU cache
		TTL      string `mapstructure:"ttl"`      // Go duration string like "1h", "24h", etc.
		Redis    struct {
			Address   string `mapstructure:"address"`
			Password  string `mapstructure:"password"`
			DB        int    `mapstructure:"db"`
			KeyPrefix string `mapstructure:"key_prefix"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`
	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
	Quota struct {
		DailyLimit int `mapstructure:"daily_limit"`
	} `mapstructure:"quota"`
}

var logger zerolog.Logger

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()
}

// LoadConfig reads config.yaml (from . or ./config), a .env file when present,
// and the environment. Keys use the APP_ prefix with dots replaced by
// underscores; the provider credentials and security key are also read from
// their historical names (OPENSUBTITLES_API_KEY, OPENSUBTITLES_APP_NAME,
// DOWNLOAD_SECURITY_KEY).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	_ = v.BindEnv("log_level", "APP_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("opensubtitles.api_key", "APP_OPENSUBTITLES_API_KEY", "OPENSUBTITLES_API_KEY")
	_ = v.BindEnv("opensubtitles.app_name", "APP_OPENSUBTITLES_APP_NAME", "OPENSUBTITLES_APP_NAME")
	_ = v.BindEnv("download_security_key", "APP_DOWNLOAD_SECURITY_KEY", "DOWNLOAD_SECURITY_KEY")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested values
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("opensubtitles.api_key", "")
	v.SetDefault("opensubtitles.app_name", "")
	v.SetDefault("opensubtitles.base_url", DefaultBaseURL)
	v.SetDefault("opensubtitles.sub_format", "srt")
	v.SetDefault("download_security_key", "")
	v.SetDefault("proxy_connection_string", "")
	v.SetDefault("client_timeout", "30s")
	v.SetDefault("server.port", 4321)
	v.SetDefault("server.address", "localhost")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 9091)
	v.SetDefault("log_level", "info")
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "subgrab:")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("quota.daily_limit", DefaultDailyQuota)
}

// ConfigureLogger applies the configured log level to the process logger.
func ConfigureLogger(cfg *Config) zerolog.Logger {
	level := zerolog.InfoLevel // default
	if cfg.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", cfg.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	logger.Info().Str("level", level.String()).Msg("Logging configured")
	return logger
}

// Duration parses a Go duration string, falling back to def when the value is
// empty or invalid.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn().Err(err).Str("value", value).Dur("default", def).Msg("Invalid duration, using default")
		return def
	}
	return parsed
}

// UserAgent returns the User-Agent sent to the subtitle provider.
func (c *Config) UserAgent() string {
	return c.OpenSubtitles.AppName + " v1.0.0"
}

// DailyQuota returns the configured daily download allowance.
func (c *Config) DailyQuota() int {
	if c.Quota.DailyLimit > 0 {
		return c.Quota.DailyLimit
	}
	return DefaultDailyQuota
}

func GetLogger() zerolog.Logger {
	return logger
}
