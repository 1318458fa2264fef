package redis

import "time"

// Config holds Redis connection and retention settings
type Config struct {
	// URL is the Redis connection URL (redis://...)
	URL string

	// PoolSize is the maximum number of connections
	PoolSize int

	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int

	// GameTTL bounds how long finished game records are retained.
	// Applied on every write; active games keep being refreshed.
	GameTTL time.Duration

	// TxRetries is how many times an atomic update is retried when a
	// concurrent writer invalidates the watched key
	TxRetries int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PoolSize:     10,
		MinIdleConns: 2,
		GameTTL:      24 * time.Hour,
		TxRetries:    3,
	}
}
