package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chessmatch/internal/model"
	"chessmatch/internal/services/match"
)

// Session maps a live connection to its seat in a game
type Session struct {
	GameID model.GameID
	UserID model.UserID
	Color  model.Color
}

// Notifier delivers events to connections; implemented by the transport layer
type Notifier interface {
	// NotifyConn sends an event to a single connection
	NotifyConn(connID string, event model.Event)
	// NotifyGame broadcasts an event to every connection subscribed to a game
	NotifyGame(gameID model.GameID, event model.Event)
	// CloseGameTopic tears down the broadcast topic for a finished game
	CloseGameTopic(gameID model.GameID)
}

// OfferTable clears pending draw offers when a game terminates
type OfferTable interface {
	Clear(gameID model.GameID)
}

// Manager owns the in-memory connection bookkeeping: which connection is the
// authoritative holder of each seat, and the grace-period timers that turn a
// disconnect into a forfeit. It is constructed once at process start and
// handed to every request handler.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]Session
	seats    map[model.GameID]map[model.Color]string

	sched    *Scheduler
	matches  *match.Controller
	offers   OfferTable
	notifier Notifier
	grace    time.Duration
	logger   *slog.Logger
}

// NewManager creates a session Manager with the given reconnection grace period
func NewManager(
	matches *match.Controller,
	offers OfferTable,
	sched *Scheduler,
	notifier Notifier,
	grace time.Duration,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		sessions: make(map[string]Session),
		seats:    make(map[model.GameID]map[model.Color]string),
		sched:    sched,
		matches:  matches,
		offers:   offers,
		notifier: notifier,
		grace:    grace,
		logger:   logger,
	}
}

// GracePeriod returns the reconnection window reported to opponents
func (m *Manager) GracePeriod() time.Duration {
	return m.grace
}

// Attach records a connection as the authoritative holder of its seat.
// Any live disconnect timer for the seat is cancelled synchronously, before
// it can fire, which closes the forfeit-after-reconnect race.
func (m *Manager) Attach(ctx context.Context, connID string, gameID model.GameID, userID model.UserID) (*model.Game, model.Color, error) {
	game, err := m.matches.Get(ctx, gameID)
	if err != nil {
		return nil, "", err
	}
	if game.Status != model.StatusInProgress {
		return nil, "", model.ErrGameNotInProgress
	}
	color, ok := game.PlayerColor(userID)
	if !ok {
		return nil, "", model.ErrNotParticipant
	}

	m.mu.Lock()
	seats := m.seats[gameID]
	if seats == nil {
		seats = make(map[model.Color]string)
		m.seats[gameID] = seats
	}
	seats[color] = connID
	m.sessions[connID] = Session{GameID: gameID, UserID: userID, Color: color}
	oppConn := seats[color.Opponent()]
	m.mu.Unlock()

	reconnected := m.sched.Cancel(TimerKey{GameID: gameID, Color: color})

	m.logger.Info("seat attached",
		slog.String("game_id", string(gameID)),
		slog.String("color", string(color)),
		slog.String("conn_id", connID),
		slog.Bool("reconnected", reconnected),
	)

	if oppConn != "" {
		eventType := model.EventOpponentConnected
		if reconnected {
			eventType = model.EventOpponentReconnected
		}
		m.notifier.NotifyConn(oppConn, model.Event{
			Type:    eventType,
			Payload: model.ConnectionPayload{Color: color},
		})
	}
	return game, color, nil
}

// Detach handles an explicit leave: the seat is released immediately with no
// grace timer. A connection that has been superseded by a newer one for the
// same seat cannot clobber it.
func (m *Manager) Detach(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return
	}
	delete(m.sessions, connID)
	m.releaseSeatLocked(sess, connID)
}

// HandleDisconnect arms the grace-period timer for the dropped seat and
// tells the opponent. Stale connections are ignored via the same
// authoritative-holder check as Detach.
func (m *Manager) HandleDisconnect(connID string) {
	m.mu.Lock()
	sess, ok := m.sessions[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, connID)

	if !m.releaseSeatLocked(sess, connID) {
		m.mu.Unlock()
		return
	}
	oppConn := m.seats[sess.GameID][sess.Color.Opponent()]
	m.mu.Unlock()

	m.logger.Info("seat disconnected",
		slog.String("game_id", string(sess.GameID)),
		slog.String("color", string(sess.Color)),
	)

	if oppConn != "" {
		m.notifier.NotifyConn(oppConn, model.Event{
			Type: model.EventOpponentDisconnected,
			Payload: model.ConnectionPayload{
				Color:              sess.Color,
				ReconnectTimeoutMs: m.grace.Milliseconds(),
			},
		})
	}

	m.sched.Arm(TimerKey{GameID: sess.GameID, Color: sess.Color}, m.grace, func() {
		m.forfeitIfVacant(sess.GameID, sess.Color)
	})
}

// forfeitIfVacant runs at grace-timer expiry. The seat is re-checked at fire
// time: a reconnection cancels the timer synchronously, but a freshly armed
// replacement timer may still observe an occupied seat and must stand down.
func (m *Manager) forfeitIfVacant(gameID model.GameID, color model.Color) {
	m.mu.Lock()
	occupied := m.seats[gameID][color] != ""
	m.mu.Unlock()
	if occupied {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	game, err := m.matches.Forfeit(ctx, gameID, color)

	// Bookkeeping is released no matter how the forfeit went, so a failed
	// attempt can never deadlock future reconnections
	m.ReleaseGame(gameID)
	m.offers.Clear(gameID)

	if err != nil {
		m.logger.Error("forfeit after grace period failed",
			slog.String("game_id", string(gameID)),
			slog.String("color", string(color)),
			slog.String("error", err.Error()),
		)
		return
	}
	if game == nil {
		// Already terminal; someone else ended the game first
		return
	}

	m.notifier.NotifyGame(gameID, model.Event{
		Type: model.EventGameEnded,
		Payload: model.GameEndedPayload{
			GameID:   gameID,
			Result:   game.Result,
			Reason:   model.ReasonOpponentDisconnected,
			WinnerID: game.WinnerID,
		},
	})
	m.notifier.CloseGameTopic(gameID)
}

// ReleaseGame drops all in-memory tracking for a game: seat entries and any
// armed disconnect timers. Called on every termination path.
func (m *Manager) ReleaseGame(gameID model.GameID) {
	m.mu.Lock()
	delete(m.seats, gameID)
	m.mu.Unlock()

	m.sched.Cancel(TimerKey{GameID: gameID, Color: model.ColorWhite})
	m.sched.Cancel(TimerKey{GameID: gameID, Color: model.ColorBlack})
}

// Session returns the seat mapping for a connection, if attached
func (m *Manager) Session(connID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[connID]
	return sess, ok
}

// SeatConn returns the authoritative connection for a seat, if occupied
func (m *Manager) SeatConn(gameID model.GameID, color model.Color) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connID := m.seats[gameID][color]
	return connID, connID != ""
}

// releaseSeatLocked clears the seat if connID is still its authoritative
// holder. Caller holds m.mu. Reports whether the seat was released.
func (m *Manager) releaseSeatLocked(sess Session, connID string) bool {
	seats := m.seats[sess.GameID]
	if seats == nil || seats[sess.Color] != connID {
		return false
	}
	delete(seats, sess.Color)
	if len(seats) == 0 {
		delete(m.seats, sess.GameID)
	}
	return true
}
