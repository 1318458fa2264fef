package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chessmatch/internal/config"
	"chessmatch/internal/factory"
	redisstorage "chessmatch/internal/storage/redis"
	"chessmatch/internal/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "chessmatch",
		Short:        "Real-time chess match coordination server",
		SilenceUsage: true,
	}

	var port int
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the match coordination server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port)
		},
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(portOverride int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	appCfg := factory.Config{
		Logger:               logger,
		StorageType:          cfg.StorageType,
		ReconnectGracePeriod: cfg.ReconnectGracePeriod,
		LobbySweepInterval:   cfg.LobbySweepInterval,
	}
	if cfg.StorageType == factory.StorageTypeRedis {
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		appCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(appCfg)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("storage close failed", slog.String("error", err.Error()))
		}
	}()

	router := ws.NewRouter(ws.RouterConfig{
		Logger: logger,
		Server: app.WSServer,
	})

	// Websocket connections are long-lived, so the server carries no
	// read or write timeouts; per-message deadlines live in the transport
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Stale waiting games are swept for as long as the server runs
	go app.LobbyCoordinator.RunSweep(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	logger.Info("server started", slog.String("addr", server.Addr))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		app.Scheduler.Stop()
		app.HubManager.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
