package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"chessmatch/internal/model"
	"chessmatch/internal/storage"
)

// Storage is a Redis-backed implementation of the game store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.GameStore = (*Storage)(nil)

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	// Record write and index maintenance share one pipeline
	pipe := s.client.Pipeline()
	pipe.Set(ctx, gameKey(game.ID), data, s.cfg.GameTTL)
	s.indexGame(ctx, pipe, nil, game)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) DeleteGame(ctx context.Context, id model.GameID) error {
	game, err := s.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrGameNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, gameKey(id))
	pipe.SRem(ctx, waitingSetKey(), string(id))
	for _, userID := range participants(game) {
		pipe.Del(ctx, userActiveKey(userID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) FindActiveGameByUser(ctx context.Context, userID model.UserID) (*model.Game, error) {
	idStr, err := s.client.Get(ctx, userActiveKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	game, err := s.GetGame(ctx, model.GameID(idStr))
	if err != nil {
		if errors.Is(err, model.ErrGameNotFound) {
			// Stale index entry; drop it
			_ = s.client.Del(ctx, userActiveKey(userID)).Err()
			return nil, nil
		}
		return nil, err
	}
	if game.IsTerminal() {
		_ = s.client.Del(ctx, userActiveKey(userID)).Err()
		return nil, nil
	}
	return game, nil
}

func (s *Storage) ListWaitingGames(ctx context.Context) ([]*model.Game, error) {
	ids, err := s.client.SMembers(ctx, waitingSetKey()).Result()
	if err != nil {
		return nil, err
	}

	var waiting []*model.Game
	for _, id := range ids {
		game, err := s.GetGame(ctx, model.GameID(id))
		if err != nil {
			if errors.Is(err, model.ErrGameNotFound) {
				// Expired record left behind in the index
				_ = s.client.SRem(ctx, waitingSetKey(), id).Err()
				continue
			}
			return nil, err
		}
		if game.Status == model.StatusWaiting {
			waiting = append(waiting, game)
		}
	}
	return waiting, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate func(*model.Game) error) (*model.Game, error) {
	key := gameKey(id)

	var updated *model.Game
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return err
		}

		var pre model.Game
		if err := json.Unmarshal(data, &pre); err != nil {
			return err
		}

		post := pre
		post.MoveLog = append([]string(nil), pre.MoveLog...)
		if err := mutate(&post); err != nil {
			return err
		}

		newData, err := json.Marshal(&post)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, s.cfg.GameTTL)
			s.indexGame(ctx, pipe, &pre, &post)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &post
		return nil
	}

	// Retried only when a concurrent writer invalidates the watched key;
	// mutate errors propagate immediately without a write.
	for i := 0; ; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) && i < s.cfg.TxRetries {
			continue
		}
		return nil, err
	}
}

// indexGame keeps the waiting set and per-user active pointers consistent
// with a record transition from pre (nil on create) to post
func (s *Storage) indexGame(ctx context.Context, pipe redis.Pipeliner, pre, post *model.Game) {
	if post.Status == model.StatusWaiting {
		pipe.SAdd(ctx, waitingSetKey(), string(post.ID))
	} else if pre == nil || pre.Status == model.StatusWaiting {
		pipe.SRem(ctx, waitingSetKey(), string(post.ID))
	}

	for _, userID := range participants(post) {
		if post.IsTerminal() {
			pipe.Del(ctx, userActiveKey(userID))
		} else {
			pipe.Set(ctx, userActiveKey(userID), string(post.ID), s.cfg.GameTTL)
		}
	}
}

// participants returns the distinct user ids referenced by a game
func participants(g *model.Game) []model.UserID {
	seen := make(map[model.UserID]bool, 3)
	var users []model.UserID
	for _, id := range []model.UserID{g.CreatorID, g.WhitePlayerID, g.BlackPlayerID} {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		users = append(users, id)
	}
	return users
}
