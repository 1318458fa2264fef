package redis

import (
	"fmt"

	"chessmatch/internal/model"
)

// Key prefix for all match coordination data
const keyPrefix = "chessmatch"

// gameKey returns the Redis key for a Game record
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// waitingSetKey returns the Redis key for the SET of waiting game ids
func waitingSetKey() string {
	return fmt.Sprintf("%s:idx:waiting", keyPrefix)
}

// userActiveKey returns the Redis key for the user -> active game id index
func userActiveKey(userID model.UserID) string {
	return fmt.Sprintf("%s:idx:active_user:%s", keyPrefix, userID)
}
