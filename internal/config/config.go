package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Session   SessionConfig   `mapstructure:"session"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Access    AccessConfig    `mapstructure:"access"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// SessionConfig holds workflow session storage configuration
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

// BroadcastConfig holds announcement delivery configuration
type BroadcastConfig struct {
	Pause             time.Duration `mapstructure:"pause"`
	Concurrency       int           `mapstructure:"concurrency"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	FailureSample     int           `mapstructure:"failure_sample"`
}

// ScheduleConfig holds calendar and listing configuration
type ScheduleConfig struct {
	Timezone       string `mapstructure:"timezone"`
	FallbackOffset int    `mapstructure:"fallback_offset_hours"`
	PageSize       int    `mapstructure:"page_size"`
}

// AccessConfig lists what unregistered users may do
type AccessConfig struct {
	AllowedCommands  []string `mapstructure:"allowed_commands"`
	CallbackPatterns []string `mapstructure:"callback_patterns"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads and validates the configuration
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Read loads configuration from an optional YAML file, a .env file in the
// working directory and environment variables, in increasing precedence.
// It does not validate, so maintenance commands can run without chat credentials.
func Read(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/assistant.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("lark.api_timeout", 30*time.Second)

	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.redis_prefix", "campus:session:")

	v.SetDefault("broadcast.pause", 50*time.Millisecond)
	v.SetDefault("broadcast.concurrency", 1)
	v.SetDefault("broadcast.default_retry_after", time.Second)
	v.SetDefault("broadcast.failure_sample", 5)

	v.SetDefault("schedule.timezone", "Europe/Moscow")
	v.SetDefault("schedule.fallback_offset_hours", 3)
	v.SetDefault("schedule.page_size", 5)

	v.SetDefault("access.allowed_commands", []string{"start", "help"})
	v.SetDefault("access.callback_patterns", []string{"^create_profile"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars lets every key be overridden by ASSISTANT_<SECTION>_<KEY> and
// binds the well-known secret names directly.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("assistant")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("lark.app_id", "ASSISTANT_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "ASSISTANT_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("session.redis_password", "ASSISTANT_SESSION_REDIS_PASSWORD", "REDIS_PASSWORD")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be %q or %q, got %q", SessionBackendMemory, SessionBackendRedis, c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if c.Broadcast.Pause < 0 {
		return fmt.Errorf("broadcast.pause must not be negative")
	}
	if c.Broadcast.Concurrency < 1 {
		return fmt.Errorf("broadcast.concurrency must be at least 1")
	}

	if c.Schedule.PageSize < 1 {
		return fmt.Errorf("schedule.page_size must be at least 1")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	return nil
}
