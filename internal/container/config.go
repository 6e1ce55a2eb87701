// Package container provides dependency injection and lifecycle management
// for the campus assistant.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// Session store configuration
	Session SessionConfig

	// Announcement delivery configuration
	Broadcast BroadcastConfig

	// Calendar configuration
	Schedule ScheduleConfig

	// Access gate configuration
	Access AccessConfig

	// Server configuration
	Server ServerConfig

	// Version reported by the health endpoint
	Version string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID      string
	AppSecret  string
	BaseURL    string
	APITimeout time.Duration
}

// SessionConfig holds workflow session store settings.
type SessionConfig struct {
	// Backend is "memory" or "redis"
	Backend string

	// TTL is how long an idle session survives
	TTL time.Duration

	// SweepInterval is how often expired memory sessions are removed
	SweepInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// BroadcastConfig holds announcement delivery settings.
type BroadcastConfig struct {
	Pause             time.Duration
	Concurrency       int
	DefaultRetryAfter time.Duration

	// FailureSample bounds the failed recipients listed in a summary
	FailureSample int
}

// ScheduleConfig holds calendar settings.
type ScheduleConfig struct {
	Location *time.Location
	PageSize int
}

// AccessConfig lists what unregistered users may do.
type AccessConfig struct {
	AllowedCommands  []string
	CallbackPatterns []string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Enabled turns the HTTP server on
	Enabled bool

	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/assistant.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Lark: LarkConfig{
			APITimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           24 * time.Hour,
			SweepInterval: time.Minute,
			RedisPrefix:   "campus:session:",
		},
		Broadcast: BroadcastConfig{
			Pause:             50 * time.Millisecond,
			Concurrency:       1,
			DefaultRetryAfter: time.Second,
			FailureSample:     5,
		},
		Schedule: ScheduleConfig{
			Location: time.Local,
			PageSize: 5,
		},
		Access: AccessConfig{
			AllowedCommands:  []string{"start", "help"},
			CallbackPatterns: []string{"^create_profile"},
		},
		Server: ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Version: "dev",
	}
}

// Validate checks that required configuration values are present.
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

	if c.Session.Backend != "memory" && c.Session.Backend != "redis" {
		return fmt.Errorf("unknown session backend: %q", c.Session.Backend)
	}

	if c.Schedule.Location == nil {
		return fmt.Errorf("schedule.location is required")
	}

	return nil
}
