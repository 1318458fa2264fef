package draw

import (
	"context"
	"log/slog"
	"sync"

	"chessmatch/internal/model"
	"chessmatch/internal/services/match"
)

// OfferOutcome describes what an Offer call did
type OfferOutcome int

const (
	// Offered means the offer is now pending and the opponent should be told
	Offered OfferOutcome = iota
	// Collapsed means both sides had offered; the game was drawn immediately
	Collapsed
	// Duplicate means this side already had a pending offer; nothing changed
	Duplicate
)

// Negotiator tracks at most one pending draw offer per game. It is
// constructed once at process start and owns its table exclusively;
// offers live only in memory and die with the process.
type Negotiator struct {
	mu      sync.Mutex
	pending map[model.GameID]model.Color

	matches *match.Controller
	logger  *slog.Logger
}

// NewNegotiator creates a draw Negotiator
func NewNegotiator(matches *match.Controller, logger *slog.Logger) *Negotiator {
	return &Negotiator{
		pending: make(map[model.GameID]model.Color),
		matches: matches,
		logger:  logger,
	}
}

// Offer records a draw offer from the given side. If the other side already
// has one pending, the two collapse into an immediate draw, identical to an
// explicit accept. A repeated offer from the same side is a no-op.
func (n *Negotiator) Offer(ctx context.Context, gameID model.GameID, color model.Color) (OfferOutcome, *model.Game, error) {
	n.mu.Lock()
	existing, ok := n.pending[gameID]
	if !ok {
		n.pending[gameID] = color
		n.mu.Unlock()
		n.logger.Info("draw offered",
			slog.String("game_id", string(gameID)),
			slog.String("color", string(color)),
		)
		return Offered, nil, nil
	}
	if existing == color {
		n.mu.Unlock()
		return Duplicate, nil, nil
	}
	delete(n.pending, gameID)
	n.mu.Unlock()

	game, err := n.matches.EndAsDraw(ctx, gameID)
	if err != nil {
		return Collapsed, nil, err
	}
	n.logger.Info("simultaneous draw offers collapsed", slog.String("game_id", string(gameID)))
	return Collapsed, game, nil
}

// Accept resolves a pending offer from the other side into a draw
func (n *Negotiator) Accept(ctx context.Context, gameID model.GameID, color model.Color) (*model.Game, error) {
	n.mu.Lock()
	existing, ok := n.pending[gameID]
	if !ok || existing == color {
		n.mu.Unlock()
		return nil, model.ErrNoDrawOffer
	}
	delete(n.pending, gameID)
	n.mu.Unlock()

	return n.matches.EndAsDraw(ctx, gameID)
}

// Decline clears a pending offer from the other side
func (n *Negotiator) Decline(gameID model.GameID, color model.Color) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	existing, ok := n.pending[gameID]
	if !ok || existing == color {
		return model.ErrNoDrawOffer
	}
	delete(n.pending, gameID)
	return nil
}

// Cancel rescinds this side's own pending offer
func (n *Negotiator) Cancel(gameID model.GameID, color model.Color) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	existing, ok := n.pending[gameID]
	if !ok {
		return model.ErrNoDrawOffer
	}
	if existing != color {
		return model.ErrDrawOfferNotYours
	}
	delete(n.pending, gameID)
	return nil
}

// Clear drops any dangling offer; called on every game termination
func (n *Negotiator) Clear(gameID model.GameID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, gameID)
}

// Pending returns the color with an outstanding offer, if any
func (n *Negotiator) Pending(gameID model.GameID) (model.Color, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	color, ok := n.pending[gameID]
	return color, ok
}
