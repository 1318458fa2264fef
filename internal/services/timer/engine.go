// Package timer computes remaining clock time for each side. Everything here
// is a pure function of stored game state and the wall clock; persisting the
// adjusted values is the match lifecycle's job at move-application time.
package timer

import (
	"time"

	"chessmatch/internal/model"
)

// Elapsed returns whole seconds between anchor and now, floored, never negative
func Elapsed(anchor, now time.Time) int {
	if anchor.IsZero() || now.Before(anchor) {
		return 0
	}
	return int(now.Sub(anchor) / time.Second)
}

// Charge returns both clocks after charging the time since the last move to
// the side that just finished its turn. The opponent's clock is untouched
// because it wasn't running. Clamped at zero, never negative.
//
// Charging requires both a time control and a LastMoveAt anchor. The anchor
// is first stamped at game start, so pre-game setup latency is deliberately
// free: the creator is never billed for time spent waiting for an opponent.
func Charge(g *model.Game, mover model.Color, now time.Time) (white, black int) {
	white, black = g.WhiteTimeRemaining, g.BlackTimeRemaining
	if !g.Timed() || g.LastMoveAt.IsZero() {
		return white, black
	}

	elapsed := Elapsed(g.LastMoveAt, now)
	if mover == model.ColorWhite {
		white = clamp(white - elapsed)
	} else {
		black = clamp(black - elapsed)
	}
	return white, black
}

// Snapshot projects both clocks as of now, charging the side to move,
// without mutating stored state. Used for display on reconnect.
func Snapshot(g *model.Game, now time.Time) (white, black int) {
	return Charge(g, SideToMove(g), now)
}

// SideToMove returns the authoritative turn color, falling back to move-log
// parity for records written before TurnColor existed
func SideToMove(g *model.Game) model.Color {
	if g.TurnColor.Valid() {
		return g.TurnColor
	}
	return TurnFromHalfMoves(len(g.MoveLog))
}

// TurnFromHalfMoves derives side-to-move from the number of completed
// half-moves: after an even count, White is to move
func TurnFromHalfMoves(n int) model.Color {
	if n%2 == 0 {
		return model.ColorWhite
	}
	return model.ColorBlack
}

func clamp(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return seconds
}
