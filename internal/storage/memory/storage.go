package memory

import (
	"context"
	"sync"

	"chessmatch/internal/model"
	"chessmatch/internal/storage"
)

// Storage is an in-memory implementation of the game store
type Storage struct {
	mu    sync.RWMutex
	games map[model.GameID]*model.Game
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		games: make(map[model.GameID]*model.Game),
	}
}

// Ensure Storage implements the interface
var _ storage.GameStore = (*Storage)(nil)

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = cloneGame(game)
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return cloneGame(game), nil
}

func (s *Storage) DeleteGame(ctx context.Context, id model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}

func (s *Storage) FindActiveGameByUser(ctx context.Context, userID model.UserID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, game := range s.games {
		if game.IsTerminal() {
			continue
		}
		if game.CreatorID == userID || game.IsParticipant(userID) {
			return cloneGame(game), nil
		}
	}
	return nil, nil
}

func (s *Storage) ListWaitingGames(ctx context.Context) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var waiting []*model.Game
	for _, game := range s.games {
		if game.Status == model.StatusWaiting {
			waiting = append(waiting, cloneGame(game))
		}
	}
	return waiting, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate func(*model.Game) error) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	updated := cloneGame(current)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.games[id] = updated
	return cloneGame(updated), nil
}

// cloneGame copies a record so callers never alias stored state
func cloneGame(g *model.Game) *model.Game {
	copied := *g
	copied.MoveLog = append([]string(nil), g.MoveLog...)
	return &copied
}
