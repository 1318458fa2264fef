package model

import "time"

// GameID uniquely identifies a game
type GameID string

// UserID identifies a participant; identity itself is managed externally
type UserID string

// Color identifies one of the two seats in a game
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Opponent returns the other seat's color
func (c Color) Opponent() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// Valid reports whether the color is one of the two seats
func (c Color) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

// Status represents the lifecycle state of a game
type Status string

const (
	StatusWaiting    Status = "waiting"     // Created, no opponent yet
	StatusInProgress Status = "in_progress" // Both seats filled, clock running
	StatusCompleted  Status = "completed"   // Terminal: has a result
	StatusCancelled  Status = "cancelled"   // Terminal: never started
)

// Result is the outcome of a completed game
type Result string

const (
	ResultWhiteWin Result = "white_win"
	ResultBlackWin Result = "black_win"
	ResultDraw     Result = "draw"
)

// EndReason explains why a game reached its terminal state
type EndReason string

const (
	ReasonCheckmate            EndReason = "checkmate"
	ReasonStalemate            EndReason = "stalemate"
	ReasonResignation          EndReason = "resignation"
	ReasonAgreement            EndReason = "agreement"
	ReasonTimeout              EndReason = "timeout"
	ReasonOpponentDisconnected EndReason = "opponent_disconnected"
)

// ValidTimeControls is the enumerated set of per-turn allotments in seconds.
// 0 means untimed.
var ValidTimeControls = []int{0, 60, 180, 300}

// IsValidTimeControl reports whether tc is an allowed time control value
func IsValidTimeControl(tc int) bool {
	for _, v := range ValidTimeControls {
		if tc == v {
			return true
		}
	}
	return false
}

// Game is the authoritative match record
type Game struct {
	ID     GameID `json:"id"`
	Status Status `json:"status"`

	// TimeControl is the fixed per-turn allotment in seconds; 0 = untimed
	TimeControl int `json:"time_control"`

	CreatorID     UserID `json:"creator_id"`
	WhitePlayerID UserID `json:"white_player_id,omitempty"`
	BlackPlayerID UserID `json:"black_player_id,omitempty"`
	WinnerID      UserID `json:"winner_id,omitempty"`
	Result        Result `json:"result,omitempty"`

	// Remaining clock time in whole seconds; meaningful only when TimeControl > 0
	WhiteTimeRemaining int `json:"white_time_remaining"`
	BlackTimeRemaining int `json:"black_time_remaining"`

	// TurnColor is the authoritative side-to-move, updated atomically with
	// every move. Parity derivation from MoveLog exists only as a fallback
	// for records written before this field.
	TurnColor Color `json:"turn_color,omitempty"`

	// MoveLog is the append-only move notation used to reconstruct the
	// position and whose-turn on reconnect
	MoveLog []string `json:"move_log"`

	// LastMoveAt anchors elapsed-time computation; reset on every move and
	// at game start. Zero while waiting.
	LastMoveAt time.Time `json:"last_move_at"`

	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// IsTerminal reports whether the record is immutable
func (g *Game) IsTerminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusCancelled
}

// Timed reports whether the game runs chess clocks
func (g *Game) Timed() bool {
	return g.TimeControl > 0
}

// PlayerColor returns the seat held by the given user, if any
func (g *Game) PlayerColor(userID UserID) (Color, bool) {
	switch userID {
	case "":
		return "", false
	case g.WhitePlayerID:
		return ColorWhite, true
	case g.BlackPlayerID:
		return ColorBlack, true
	}
	return "", false
}

// PlayerID returns the user holding the given seat
func (g *Game) PlayerID(color Color) UserID {
	if color == ColorWhite {
		return g.WhitePlayerID
	}
	return g.BlackPlayerID
}

// IsParticipant reports whether the user holds a seat in this game
func (g *Game) IsParticipant(userID UserID) bool {
	_, ok := g.PlayerColor(userID)
	return ok
}

// ResultForWinner maps a winning seat to the game result
func ResultForWinner(winner Color) Result {
	if winner == ColorWhite {
		return ResultWhiteWin
	}
	return ResultBlackWin
}
