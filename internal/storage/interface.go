package storage

import (
	"context"

	"chessmatch/internal/model"
)

// GameStore defines the interface for the durable game record store
type GameStore interface {
	// SaveGame persists a new or updated game record
	SaveGame(ctx context.Context, game *model.Game) error

	// GetGame retrieves a game by id, or model.ErrGameNotFound
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)

	// DeleteGame removes a game record
	DeleteGame(ctx context.Context, id model.GameID) error

	// FindActiveGameByUser returns the user's game in a non-terminal state,
	// or (nil, nil) if the user has none
	FindActiveGameByUser(ctx context.Context, userID model.UserID) (*model.Game, error)

	// ListWaitingGames returns all games waiting for an opponent
	ListWaitingGames(ctx context.Context) ([]*model.Game, error)

	// UpdateGame applies mutate to the current record and persists the
	// result atomically: concurrent updates to the same id never interleave
	// partial field writes. If mutate returns an error, nothing is written
	// and the error is returned unchanged.
	UpdateGame(ctx context.Context, id model.GameID, mutate func(*model.Game) error) (*model.Game, error)
}
