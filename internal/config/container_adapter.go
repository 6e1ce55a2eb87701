package config

import (
	"github.com/garyjia/campus-assistant/internal/container"
	"github.com/garyjia/campus-assistant/internal/infrastructure/datetime"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig(version string) *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			APITimeout: c.Lark.APITimeout,
		},
		Session: container.SessionConfig{
			Backend:       c.Session.Backend,
			TTL:           c.Session.TTL,
			SweepInterval: c.Session.SweepInterval,
			RedisAddr:     c.Session.RedisAddr,
			RedisPassword: c.Session.RedisPassword,
			RedisDB:       c.Session.RedisDB,
			RedisPrefix:   c.Session.RedisPrefix,
		},
		Broadcast: container.BroadcastConfig{
			Pause:             c.Broadcast.Pause,
			Concurrency:       c.Broadcast.Concurrency,
			DefaultRetryAfter: c.Broadcast.DefaultRetryAfter,
			FailureSample:     c.Broadcast.FailureSample,
		},
		Schedule: container.ScheduleConfig{
			Location: datetime.LoadLocation(c.Schedule.Timezone, c.Schedule.FallbackOffset),
			PageSize: c.Schedule.PageSize,
		},
		Access: container.AccessConfig{
			AllowedCommands:  c.Access.AllowedCommands,
			CallbackPatterns: c.Access.CallbackPatterns,
		},
		Server: container.ServerConfig{
			Enabled:      c.Server.Enabled,
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Version: version,
	}
}
