package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration, populated from the environment
type Config struct {
	Host string `env:"HOST" envDefault:""`
	Port int    `env:"PORT" envDefault:"8080"`

	// StorageType selects the storage backend ("memory" or "redis")
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`

	// ReconnectGracePeriod is how long a disconnected player's seat is held
	// before the game is forfeited against them
	ReconnectGracePeriod time.Duration `env:"RECONNECT_GRACE_PERIOD" envDefault:"60s"`

	// LobbySweepInterval is how often stale waiting games are expired
	LobbySweepInterval time.Duration `env:"LOBBY_SWEEP_INTERVAL" envDefault:"5s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
