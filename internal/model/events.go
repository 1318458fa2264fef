package model

// EventType identifies the type of event
type EventType string

const (
	// Lobby events
	EventGameCreated       EventType = "lobby:gameCreated"       // creator confirmation
	EventGameAdded         EventType = "lobby:gameAdded"         // lobby broadcast
	EventGameRemoved       EventType = "lobby:gameRemoved"       // lobby broadcast
	EventGameJoined        EventType = "lobby:gameJoined"        // joiner confirmation
	EventGameCancelled     EventType = "lobby:gameCancelled"     // creator confirmation
	EventGameAutoCancelled EventType = "lobby:gameAutoCancelled" // stale sweep
	EventGameList          EventType = "lobby:gameList"

	// Game events
	EventGameStarted          EventType = "game:started"
	EventSessionJoined        EventType = "game:joined" // joining connection confirmation
	EventOpponentConnected    EventType = "game:opponentConnected"
	EventOpponentDisconnected EventType = "game:opponentDisconnected"
	EventOpponentReconnected  EventType = "game:opponentReconnected"
	EventMovePlayed           EventType = "game:move"
	EventTimerSync            EventType = "game:timerSync"
	EventDrawOffered          EventType = "game:drawOffered"
	EventDrawDeclined         EventType = "game:drawDeclined"
	EventDrawOfferCancelled   EventType = "game:drawOfferCancelled"
	EventGameEnded            EventType = "game:ended"

	// Errors, delivered to the requesting connection only
	EventError EventType = "error"
)

// Event is the envelope pushed to clients over the real-time channel
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// GameSummaryPayload describes an open game in the lobby view
type GameSummaryPayload struct {
	GameID      GameID `json:"game_id"`
	CreatorID   UserID `json:"creator_id"`
	TimeControl int    `json:"time_control"`
	CreatedAt   int64  `json:"created_at"`
}

// GameListPayload carries the full open-games view
type GameListPayload struct {
	Games []GameSummaryPayload `json:"games"`
}

// GameRemovedPayload identifies a game leaving the open pool
type GameRemovedPayload struct {
	GameID GameID `json:"game_id"`
}

// GameJoinedPayload confirms a join with the assigned color
type GameJoinedPayload struct {
	GameID GameID `json:"game_id"`
	Color  Color  `json:"color"`
}

// GameStartedPayload notifies both participants that play has begun
type GameStartedPayload struct {
	GameID             GameID `json:"game_id"`
	WhitePlayerID      UserID `json:"white_player_id"`
	BlackPlayerID      UserID `json:"black_player_id"`
	TimeControl        int    `json:"time_control"`
	WhiteTimeRemaining int    `json:"white_time_remaining"`
	BlackTimeRemaining int    `json:"black_time_remaining"`
}

// SessionJoinedPayload carries the state a reconnecting client needs
type SessionJoinedPayload struct {
	GameID             GameID   `json:"game_id"`
	Color              Color    `json:"color"`
	MoveLog            []string `json:"move_log"`
	TurnColor          Color    `json:"turn_color"`
	WhiteTimeRemaining int      `json:"white_time_remaining"`
	BlackTimeRemaining int      `json:"black_time_remaining"`
}

// ConnectionPayload reports a seat's connection change to the opponent
type ConnectionPayload struct {
	Color              Color `json:"color"`
	ReconnectTimeoutMs int64 `json:"reconnect_timeout_ms,omitempty"`
}

// MovePayload relays a move to the opponent along with updated clocks
type MovePayload struct {
	From               string   `json:"from,omitempty"`
	To                 string   `json:"to,omitempty"`
	Promotion          string   `json:"promotion,omitempty"`
	MoveLog            []string `json:"move_log"`
	TurnColor          Color    `json:"turn_color"`
	WhiteTimeRemaining int      `json:"white_time_remaining"`
	BlackTimeRemaining int      `json:"black_time_remaining"`
}

// TimerSyncPayload echoes authoritative clocks back to the mover
type TimerSyncPayload struct {
	WhiteTimeRemaining int `json:"white_time_remaining"`
	BlackTimeRemaining int `json:"black_time_remaining"`
}

// DrawOfferPayload identifies the side a draw action came from
type DrawOfferPayload struct {
	Color Color `json:"color"`
}

// GameEndedPayload is the single terminal broadcast for a game
type GameEndedPayload struct {
	GameID   GameID    `json:"game_id"`
	Result   Result    `json:"result"`
	Reason   EndReason `json:"reason"`
	WinnerID UserID    `json:"winner_id,omitempty"`
}

// ErrorPayload is the structured error surfaced to the requesting party
type ErrorPayload struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
}

// NewErrorEvent builds an error event from a domain error
func NewErrorEvent(err error) Event {
	return Event{
		Type: EventError,
		Payload: ErrorPayload{
			Code:    Classify(err),
			Message: err.Error(),
		},
	}
}

// SummarizeGame projects a waiting game into its lobby view
func SummarizeGame(g *Game) GameSummaryPayload {
	return GameSummaryPayload{
		GameID:      g.ID,
		CreatorID:   g.CreatorID,
		TimeControl: g.TimeControl,
		CreatedAt:   g.CreatedAt.Unix(),
	}
}
