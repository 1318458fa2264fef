package factory

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"chessmatch/internal/dependencies/clock"
	"chessmatch/internal/dependencies/random"
	"chessmatch/internal/services/draw"
	"chessmatch/internal/services/lobby"
	"chessmatch/internal/services/match"
	"chessmatch/internal/services/rules"
	"chessmatch/internal/services/session"
	"chessmatch/internal/storage"
	"chessmatch/internal/storage/memory"
	redisstorage "chessmatch/internal/storage/redis"
	"chessmatch/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Default timing parameters, used when the Config leaves them zero
const (
	DefaultReconnectGracePeriod = 60 * time.Second
	DefaultLobbySweepInterval   = 5 * time.Second
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.GameStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Rules            rules.Engine
	MatchController  *match.Controller
	DrawNegotiator   *draw.Negotiator
	Scheduler        *session.Scheduler
	SessionManager   *session.Manager
	LobbyCoordinator *lobby.Coordinator

	// Transport
	Registry   *ws.Registry
	HubManager *ws.HubManager
	Notifier   *ws.Notifier
	WSServer   *ws.Server
}

// Close releases storage resources held by the application
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// ReconnectGracePeriod is the disconnect forfeit window (optional)
	ReconnectGracePeriod time.Duration
	// LobbySweepInterval is the stale waiting game sweep period (optional)
	LobbySweepInterval time.Duration
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.GameStore
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	clk := clock.New()
	rnd := random.New()

	grace := cfg.ReconnectGracePeriod
	if grace == 0 {
		grace = DefaultReconnectGracePeriod
	}
	sweep := cfg.LobbySweepInterval
	if sweep == 0 {
		sweep = DefaultLobbySweepInterval
	}

	return newWithDependencies(store, clk, rnd, grace, sweep, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.GameStore,
	clk clock.Clock,
	rnd random.Random,
	grace time.Duration,
	sweep time.Duration,
	logger *slog.Logger,
) *App {
	rulesEngine := rules.NewEngine()
	matchController := match.NewController(store, rulesEngine, clk, rnd, logger)
	drawNegotiator := draw.NewNegotiator(matchController, logger)

	registry := ws.NewRegistry()
	hubManager := ws.NewHubManager(logger)
	notifier := ws.NewNotifier(registry, hubManager, logger)

	scheduler := session.NewScheduler()
	sessionManager := session.NewManager(matchController, drawNegotiator, scheduler, notifier, grace, logger)
	lobbyCoordinator := lobby.NewCoordinator(matchController, store, notifier, clk, sweep, logger)

	wsServer := ws.NewServer(
		lobbyCoordinator,
		matchController,
		drawNegotiator,
		sessionManager,
		hubManager,
		registry,
		notifier,
		clk,
		logger,
	)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		Rules:            rulesEngine,
		MatchController:  matchController,
		DrawNegotiator:   drawNegotiator,
		Scheduler:        scheduler,
		SessionManager:   sessionManager,
		LobbyCoordinator: lobbyCoordinator,
		Registry:         registry,
		HubManager:       hubManager,
		Notifier:         notifier,
		WSServer:         wsServer,
	}
}
