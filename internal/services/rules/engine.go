package rules

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"chessmatch/internal/model"
)

// Evaluation is what the core needs to know about a position: whose turn it
// is and whether the board itself has ended the game
type Evaluation struct {
	TurnColor model.Color
	Over      bool
	Result    model.Result
	Reason    model.EndReason
}

// Engine is the narrow interface to the external move-legality library.
// The core trusts it completely and never inspects positions itself.
type Engine interface {
	// Evaluate reconstructs the position described by the move log.
	// Returns model.ErrInvalidMoveLog if the log is not a legal game.
	Evaluate(moveLog []string) (Evaluation, error)
}

// ChessEngine implements Engine on top of the corentings chess library
type ChessEngine struct{}

// NewEngine creates a ChessEngine
func NewEngine() *ChessEngine {
	return &ChessEngine{}
}

var _ Engine = (*ChessEngine)(nil)

// Evaluate replays the move log from the start position in SAN notation
func (e *ChessEngine) Evaluate(moveLog []string) (Evaluation, error) {
	game := nchess.NewGame()
	for _, mv := range moveLog {
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			return Evaluation{}, fmt.Errorf("%w: %q", model.ErrInvalidMoveLog, mv)
		}
	}

	ev := Evaluation{TurnColor: colorFrom(game.Position().Turn())}

	switch game.Outcome() {
	case nchess.WhiteWon:
		ev.Over = true
		ev.Result = model.ResultWhiteWin
		ev.Reason = model.ReasonCheckmate
	case nchess.BlackWon:
		ev.Over = true
		ev.Result = model.ResultBlackWin
		ev.Reason = model.ReasonCheckmate
	case nchess.Draw:
		ev.Over = true
		ev.Result = model.ResultDraw
		if game.Method() == nchess.Stalemate {
			ev.Reason = model.ReasonStalemate
		} else {
			// Forced draws by rule (repetition, insufficient material)
			// share the agreement reason on the wire
			ev.Reason = model.ReasonAgreement
		}
	}

	return ev, nil
}

func colorFrom(c nchess.Color) model.Color {
	if c == nchess.White {
		return model.ColorWhite
	}
	return model.ColorBlack
}
