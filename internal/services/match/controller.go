package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chessmatch/internal/dependencies/clock"
	"chessmatch/internal/dependencies/random"
	"chessmatch/internal/model"
	"chessmatch/internal/services/rules"
	"chessmatch/internal/services/timer"
	"chessmatch/internal/storage"
)

const (
	// GameIDLength is the length of generated game ids
	GameIDLength = 12
	// GameIDAlphabet is the characters used in game ids
	GameIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// WaitingGameMaxAge is how long a game may sit unjoined before the
	// stale sweep cancels it
	WaitingGameMaxAge = 5 * time.Minute
)

// errNoop aborts a storage update without treating it as a failure. Used by
// the terminal operations so a second resign/forfeit/timeout on an already
// finished game is a harmless no-op instead of an error.
var errNoop = errors.New("no-op")

// Controller manages the match state machine from creation to terminal
// outcome. It never reads transient connection state; disconnect handling
// only reaches it as an explicit forfeit trigger.
type Controller struct {
	storage storage.GameStore
	rules   rules.Engine
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new match Controller
func NewController(
	storage storage.GameStore,
	rulesEngine rules.Engine,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: storage,
		rules:   rulesEngine,
		clock:   clock,
		random:  random,
		logger:  logger,
	}
}

// Create produces a new waiting game for the creator
func (c *Controller) Create(ctx context.Context, creatorID model.UserID, timeControl int) (*model.Game, error) {
	if !model.IsValidTimeControl(timeControl) {
		return nil, model.ErrInvalidTimeControl
	}

	// One active game per user, enforced before creation
	existing, err := c.storage.FindActiveGameByUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.ErrActiveGameExists
	}

	now := c.clock.Now()
	game := &model.Game{
		ID:          model.GameID(c.random.String(GameIDLength, GameIDAlphabet)),
		Status:      model.StatusWaiting,
		TimeControl: timeControl,
		CreatorID:   creatorID,
		MoveLog:     []string{},
		CreatedAt:   now,
	}

	if err := c.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	c.logger.Info("game created",
		slog.String("game_id", string(game.ID)),
		slog.String("creator_id", string(creatorID)),
		slog.Int("time_control", timeControl),
	)
	return game, nil
}

// Join fills the second seat and starts the game. Colors are assigned by an
// unbiased coin flip, independent per game.
func (c *Controller) Join(ctx context.Context, gameID model.GameID, joinerID model.UserID) (*model.Game, error) {
	now := c.clock.Now()

	game, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if g.Status != model.StatusWaiting {
			return model.ErrGameNotWaiting
		}
		if g.CreatorID == joinerID {
			return model.ErrSelfJoin
		}

		white, black := g.CreatorID, joinerID
		if c.random.Intn(2) == 1 {
			white, black = joinerID, g.CreatorID
		}

		g.Status = model.StatusInProgress
		g.WhitePlayerID = white
		g.BlackPlayerID = black
		g.TurnColor = model.ColorWhite
		g.StartedAt = now
		if g.Timed() {
			g.WhiteTimeRemaining = g.TimeControl
			g.BlackTimeRemaining = g.TimeControl
			g.LastMoveAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("game started",
		slog.String("game_id", string(gameID)),
		slog.String("white_player_id", string(game.WhitePlayerID)),
		slog.String("black_player_id", string(game.BlackPlayerID)),
	)
	return game, nil
}

// ApplyMove records a move, charges elapsed time to the mover, and detects
// outcomes decided by the board itself. The returned reason is empty while
// the game continues.
func (c *Controller) ApplyMove(ctx context.Context, gameID model.GameID, movingColor model.Color, newMoveLog []string) (*model.Game, model.EndReason, error) {
	if !movingColor.Valid() {
		return nil, "", model.ErrInvalidColor
	}

	now := c.clock.Now()
	var reason model.EndReason

	game, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if g.Status != model.StatusInProgress {
			return model.ErrGameNotInProgress
		}

		ev, err := c.rules.Evaluate(newMoveLog)
		if err != nil {
			return err
		}

		// Time is charged to the player who just used it; the
		// opponent's clock wasn't running
		g.WhiteTimeRemaining, g.BlackTimeRemaining = timer.Charge(g, movingColor, now)

		g.MoveLog = append([]string(nil), newMoveLog...)
		g.TurnColor = ev.TurnColor
		g.LastMoveAt = now

		if ev.Over {
			reason = ev.Reason
			g.Status = model.StatusCompleted
			g.Result = ev.Result
			g.EndedAt = now
			switch ev.Result {
			case model.ResultWhiteWin:
				g.WinnerID = g.WhitePlayerID
			case model.ResultBlackWin:
				g.WinnerID = g.BlackPlayerID
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if reason != "" {
		c.logger.Info("game ended on the board",
			slog.String("game_id", string(gameID)),
			slog.String("result", string(game.Result)),
			slog.String("reason", string(reason)),
		)
	}
	return game, reason, nil
}

// Resign ends the game in the opponent's favor. No-op when the game is
// missing or already out of play.
func (c *Controller) Resign(ctx context.Context, gameID model.GameID, resigningColor model.Color) (*model.Game, error) {
	return c.declareWinner(ctx, gameID, resigningColor.Opponent(), "resign")
}

// Forfeit ends the game against the disconnected side. Idempotent like Resign.
func (c *Controller) Forfeit(ctx context.Context, gameID model.GameID, disconnectedColor model.Color) (*model.Game, error) {
	return c.declareWinner(ctx, gameID, disconnectedColor.Opponent(), "forfeit")
}

// Timeout ends the game against the flagged side. Idempotent like Resign.
func (c *Controller) Timeout(ctx context.Context, gameID model.GameID, timedOutColor model.Color) (*model.Game, error) {
	return c.declareWinner(ctx, gameID, timedOutColor.Opponent(), "timeout")
}

// declareWinner is the single terminal transition shared by resign, forfeit
// and timeout; they differ only in the externally-reported reason. Returns
// (nil, nil) when the game is missing or not in progress so racing callers
// (two disconnect timers, a resign racing a timeout) are all safe.
func (c *Controller) declareWinner(ctx context.Context, gameID model.GameID, winner model.Color, cause string) (*model.Game, error) {
	if !winner.Valid() {
		return nil, model.ErrInvalidColor
	}

	now := c.clock.Now()
	game, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if g.Status != model.StatusInProgress {
			return errNoop
		}
		g.Status = model.StatusCompleted
		g.Result = model.ResultForWinner(winner)
		g.WinnerID = g.PlayerID(winner)
		g.EndedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoop) || errors.Is(err, model.ErrGameNotFound) {
			return nil, nil
		}
		return nil, err
	}

	c.logger.Info("game ended",
		slog.String("game_id", string(gameID)),
		slog.String("cause", cause),
		slog.String("result", string(game.Result)),
		slog.String("winner_id", string(game.WinnerID)),
	)
	return game, nil
}

// EndAsDraw completes the game with no winner. Same idempotent no-op guard
// as the winner-declaring operations.
func (c *Controller) EndAsDraw(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	now := c.clock.Now()
	game, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if g.Status != model.StatusInProgress {
			return errNoop
		}
		g.Status = model.StatusCompleted
		g.Result = model.ResultDraw
		g.EndedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoop) || errors.Is(err, model.ErrGameNotFound) {
			return nil, nil
		}
		return nil, err
	}

	c.logger.Info("game drawn", slog.String("game_id", string(gameID)))
	return game, nil
}

// Cancel withdraws a waiting game. Only the creator may cancel, and only
// before an opponent joins.
func (c *Controller) Cancel(ctx context.Context, gameID model.GameID, requesterID model.UserID) (*model.Game, error) {
	now := c.clock.Now()
	game, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if g.CreatorID != requesterID {
			return model.ErrNotCreator
		}
		if g.Status != model.StatusWaiting {
			return model.ErrGameNotWaiting
		}
		g.Status = model.StatusCancelled
		g.EndedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("game cancelled",
		slog.String("game_id", string(gameID)),
		slog.String("requester_id", string(requesterID)),
	)
	return game, nil
}

// Get retrieves a game record
func (c *Controller) Get(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	return c.storage.GetGame(ctx, gameID)
}

// ExpireStaleWaiting cancels every waiting game older than WaitingGameMaxAge
// and returns the affected games for notification fan-out
func (c *Controller) ExpireStaleWaiting(ctx context.Context, now time.Time) ([]*model.Game, error) {
	waiting, err := c.storage.ListWaitingGames(ctx)
	if err != nil {
		return nil, err
	}

	var expired []*model.Game
	for _, g := range waiting {
		if now.Sub(g.CreatedAt) <= WaitingGameMaxAge {
			continue
		}

		updated, err := c.storage.UpdateGame(ctx, g.ID, func(g *model.Game) error {
			// Re-check under the atomic update; a join may have won
			if g.Status != model.StatusWaiting {
				return errNoop
			}
			g.Status = model.StatusCancelled
			g.EndedAt = now
			return nil
		})
		if err != nil {
			if errors.Is(err, errNoop) || errors.Is(err, model.ErrGameNotFound) {
				continue
			}
			return expired, err
		}

		c.logger.Info("stale waiting game expired", slog.String("game_id", string(updated.ID)))
		expired = append(expired, updated)
	}
	return expired, nil
}
