package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"chessmatch/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.GameTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func waitingGame(id, creator string) *model.Game {
	return &model.Game{
		ID:        model.GameID(id),
		Status:    model.StatusWaiting,
		CreatorID: model.UserID(creator),
		MoveLog:   []string{},
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *StorageSuite) TestSaveAndGetGame() {
	game := waitingGame("g1", "alice")
	game.MoveLog = []string{"e4", "e5"}
	s.Require().NoError(s.storage.SaveGame(s.ctx, game))

	retrieved, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(game.ID, retrieved.ID)
	s.Equal(game.CreatorID, retrieved.CreatorID)
	s.Equal([]string{"e4", "e5"}, retrieved.MoveLog)
}

func (s *StorageSuite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestDeleteGameClearsIndexes() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))
	s.Require().NoError(s.storage.DeleteGame(s.ctx, "g1"))

	_, err := s.storage.GetGame(s.ctx, "g1")
	s.ErrorIs(err, model.ErrGameNotFound)

	waiting, err := s.storage.ListWaitingGames(s.ctx)
	s.Require().NoError(err)
	s.Empty(waiting)

	found, err := s.storage.FindActiveGameByUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *StorageSuite) TestDeleteMissingGameIsNoop() {
	s.Require().NoError(s.storage.DeleteGame(s.ctx, "nonexistent"))
}

func (s *StorageSuite) TestListWaitingGames() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g2", "bob")))

	waiting, err := s.storage.ListWaitingGames(s.ctx)
	s.Require().NoError(err)
	s.Len(waiting, 2)
}

func (s *StorageSuite) TestStartedGameLeavesWaitingIndex() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Status = model.StatusInProgress
		g.WhitePlayerID = "alice"
		g.BlackPlayerID = "bob"
		return nil
	})
	s.Require().NoError(err)

	waiting, err := s.storage.ListWaitingGames(s.ctx)
	s.Require().NoError(err)
	s.Empty(waiting)
}

func (s *StorageSuite) TestFindActiveGameByUser() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	found, err := s.storage.FindActiveGameByUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(model.GameID("g1"), found.ID)

	none, err := s.storage.FindActiveGameByUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *StorageSuite) TestFindActiveGameTracksJoiner() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Status = model.StatusInProgress
		g.WhitePlayerID = "alice"
		g.BlackPlayerID = "bob"
		return nil
	})
	s.Require().NoError(err)

	found, err := s.storage.FindActiveGameByUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(model.GameID("g1"), found.ID)
}

func (s *StorageSuite) TestTerminalGameClearsActivePointers() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Status = model.StatusCancelled
		return nil
	})
	s.Require().NoError(err)

	found, err := s.storage.FindActiveGameByUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *StorageSuite) TestUpdateGameAppliesMutation() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	updated, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.MoveLog = append(g.MoveLog, "e4")
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"e4"}, updated.MoveLog)

	stored, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal([]string{"e4"}, stored.MoveLog)
}

func (s *StorageSuite) TestUpdateGameMutationErrorAborts() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	boom := errors.New("boom")
	_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Status = model.StatusCancelled
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(model.StatusWaiting, stored.Status)

	// The waiting index is untouched as well
	waiting, err := s.storage.ListWaitingGames(s.ctx)
	s.Require().NoError(err)
	s.Len(waiting, 1)
}

func (s *StorageSuite) TestUpdateGameNotFound() {
	_, err := s.storage.UpdateGame(s.ctx, "nonexistent", func(g *model.Game) error {
		return nil
	})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestStaleWaitingIndexEntryIsHealed() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))

	// Simulate record expiry with the index entry left behind
	s.mini.Del(gameKey("g1"))

	waiting, err := s.storage.ListWaitingGames(s.ctx)
	s.Require().NoError(err)
	s.Empty(waiting)

	s.False(s.mini.Exists(waitingSetKey()))
}

func (s *StorageSuite) TestStaleActivePointerIsHealed() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, waitingGame("g1", "alice")))
	s.mini.Del(gameKey("g1"))

	found, err := s.storage.FindActiveGameByUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(found)

	s.False(s.mini.Exists(userActiveKey("alice")))
}
