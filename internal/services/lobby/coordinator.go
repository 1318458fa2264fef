package lobby

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"chessmatch/internal/dependencies/clock"
	"chessmatch/internal/model"
	"chessmatch/internal/services/match"
	"chessmatch/internal/storage"
)

// Notifier broadcasts availability changes to lobby observers
type Notifier interface {
	NotifyLobby(event model.Event)
}

// Coordinator maintains the open-games view. Every transition that removes a
// game from the waiting pool is paired with exactly one removal notification,
// and every creation with exactly one addition notification; handlers never
// emit these themselves.
type Coordinator struct {
	matches    *match.Controller
	storage    storage.GameStore
	notifier   Notifier
	clock      clock.Clock
	sweepEvery time.Duration
	logger     *slog.Logger
}

// NewCoordinator creates a lobby Coordinator
func NewCoordinator(
	matches *match.Controller,
	storage storage.GameStore,
	notifier Notifier,
	clock clock.Clock,
	sweepEvery time.Duration,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		matches:    matches,
		storage:    storage,
		notifier:   notifier,
		clock:      clock,
		sweepEvery: sweepEvery,
		logger:     logger,
	}
}

// OpenGames returns the current waiting pool, oldest first
func (c *Coordinator) OpenGames(ctx context.Context) ([]model.GameSummaryPayload, error) {
	waiting, err := c.storage.ListWaitingGames(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})

	summaries := make([]model.GameSummaryPayload, 0, len(waiting))
	for _, g := range waiting {
		summaries = append(summaries, model.SummarizeGame(g))
	}
	return summaries, nil
}

// CreateGame opens a new waiting game and announces it to the lobby
func (c *Coordinator) CreateGame(ctx context.Context, creatorID model.UserID, timeControl int) (*model.Game, error) {
	game, err := c.matches.Create(ctx, creatorID, timeControl)
	if err != nil {
		return nil, err
	}

	c.notifier.NotifyLobby(model.Event{
		Type:    model.EventGameAdded,
		Payload: model.SummarizeGame(game),
	})
	return game, nil
}

// JoinGame fills a waiting game and removes it from the open pool
func (c *Coordinator) JoinGame(ctx context.Context, gameID model.GameID, joinerID model.UserID) (*model.Game, error) {
	game, err := c.matches.Join(ctx, gameID, joinerID)
	if err != nil {
		return nil, err
	}

	c.notifier.NotifyLobby(model.Event{
		Type:    model.EventGameRemoved,
		Payload: model.GameRemovedPayload{GameID: gameID},
	})
	return game, nil
}

// CancelGame withdraws a waiting game and removes it from the open pool
func (c *Coordinator) CancelGame(ctx context.Context, gameID model.GameID, requesterID model.UserID) (*model.Game, error) {
	game, err := c.matches.Cancel(ctx, gameID, requesterID)
	if err != nil {
		return nil, err
	}

	c.notifier.NotifyLobby(model.Event{
		Type:    model.EventGameRemoved,
		Payload: model.GameRemovedPayload{GameID: gameID},
	})
	return game, nil
}

// RunSweep expires stale waiting games on a fixed period until ctx is
// cancelled. A failed iteration is logged and swallowed; it never stops
// subsequent iterations.
func (c *Coordinator) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	c.logger.Info("lobby sweep started", slog.Duration("period", c.sweepEvery))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("lobby sweep stopped")
			return
		case <-ticker.C:
			c.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single expiry pass
func (c *Coordinator) SweepOnce(ctx context.Context) {
	expired, err := c.matches.ExpireStaleWaiting(ctx, c.clock.Now())
	if err != nil {
		c.logger.Error("stale game sweep failed", slog.String("error", err.Error()))
	}

	for _, game := range expired {
		c.notifier.NotifyLobby(model.Event{
			Type:    model.EventGameRemoved,
			Payload: model.GameRemovedPayload{GameID: game.ID},
		})
		c.notifier.NotifyLobby(model.Event{
			Type:    model.EventGameAutoCancelled,
			Payload: model.SummarizeGame(game),
		})
	}
}
