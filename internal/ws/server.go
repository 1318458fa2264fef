package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"chessmatch/internal/dependencies/clock"
	"chessmatch/internal/model"
	"chessmatch/internal/services/draw"
	"chessmatch/internal/services/lobby"
	"chessmatch/internal/services/session"
	"chessmatch/internal/services/timer"
)

// Server accepts websocket connections and routes client messages to the
// lobby, match, draw and session services. All pushes back to clients go
// through the Notifier; errors go only to the connection that asked.
type Server struct {
	lobby    *lobby.Coordinator
	matches  matchOps
	draws    *draw.Negotiator
	sessions *session.Manager
	hubs     *HubManager
	registry *Registry
	notifier *Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

// matchOps is the slice of the match controller the transport layer calls
// directly; lobby-scoped operations go through the coordinator instead so
// availability notifications stay paired with their transitions.
type matchOps interface {
	ApplyMove(ctx context.Context, gameID model.GameID, movingColor model.Color, newMoveLog []string) (*model.Game, model.EndReason, error)
	Resign(ctx context.Context, gameID model.GameID, resigningColor model.Color) (*model.Game, error)
	Timeout(ctx context.Context, gameID model.GameID, timedOutColor model.Color) (*model.Game, error)
}

// NewServer creates a websocket Server
func NewServer(
	lobbyCoord *lobby.Coordinator,
	matches matchOps,
	draws *draw.Negotiator,
	sessions *session.Manager,
	hubs *HubManager,
	registry *Registry,
	notifier *Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) *Server {
	return &Server{
		lobby:    lobbyCoord,
		matches:  matches,
		draws:    draws,
		sessions: sessions,
		hubs:     hubs,
		registry: registry,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With(slog.String("component", "ws_server")),
	}
}

// HandleWS upgrades the request and runs the connection's read loop until the
// client goes away. An abrupt close is treated as a disconnect, which starts
// the grace-period machinery for any seat the connection held.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := model.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(uuid.NewString(), userID, conn)
	s.registry.Add(client)

	s.logger.Info("connection opened",
		slog.String("conn_id", client.ID),
		slog.String("user_id", string(userID)),
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump(ctx)

	defer func() {
		// Disconnect handling before teardown: the session manager needs the
		// seat record that UnregisterAll and Remove would otherwise orphan
		s.sessions.HandleDisconnect(client.ID)
		s.hubs.UnregisterAll(client)
		s.registry.Remove(client)
		conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Info("connection closed", slog.String("conn_id", client.ID))
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(client, model.ErrUnknownMessageType)
			continue
		}
		s.dispatch(ctx, client, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, client *Client, msg ClientMessage) {
	switch msg.Type {
	case MsgLobbyJoin:
		s.handleLobbyJoin(ctx, client)
	case MsgLobbyLeave:
		s.handleLobbyLeave(client)
	case MsgLobbyListGames:
		s.handleListGames(ctx, client)
	case MsgLobbyCreateGame:
		s.handleCreateGame(ctx, client, msg)
	case MsgLobbyJoinGame:
		s.handleJoinGame(ctx, client, msg)
	case MsgLobbyCancelGame:
		s.handleCancelGame(ctx, client, msg)
	case MsgGameJoin:
		s.handleGameJoin(ctx, client, msg)
	case MsgGameLeave:
		s.handleGameLeave(client)
	case MsgGameMove:
		s.handleMove(ctx, client, msg)
	case MsgGameResign:
		s.handleResign(ctx, client)
	case MsgGameOfferDraw:
		s.handleOfferDraw(ctx, client)
	case MsgGameAcceptDraw:
		s.handleAcceptDraw(ctx, client)
	case MsgGameDeclineDraw:
		s.handleDeclineDraw(client)
	case MsgGameCancelDrawOffer:
		s.handleCancelDrawOffer(client)
	case MsgGameTimeout:
		s.handleTimeout(ctx, client, msg)
	default:
		s.sendError(client, model.ErrUnknownMessageType)
	}
}

func (s *Server) handleLobbyJoin(ctx context.Context, client *Client) {
	s.hubs.GetOrCreateHub(TopicLobby).Register(client)
	s.handleListGames(ctx, client)
}

func (s *Server) handleLobbyLeave(client *Client) {
	if hub := s.hubs.GetHub(TopicLobby); hub != nil {
		hub.Unregister(client)
	}
}

func (s *Server) handleListGames(ctx context.Context, client *Client) {
	games, err := s.lobby.OpenGames(ctx)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendEvent(client, model.Event{
		Type:    model.EventGameList,
		Payload: model.GameListPayload{Games: games},
	})
}

func (s *Server) handleCreateGame(ctx context.Context, client *Client, msg ClientMessage) {
	timeControl := 0
	if msg.TimeControl != nil {
		timeControl = *msg.TimeControl
	}

	game, err := s.lobby.CreateGame(ctx, client.UserID, timeControl)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendEvent(client, model.Event{
		Type:    model.EventGameCreated,
		Payload: model.SummarizeGame(game),
	})
}

func (s *Server) handleJoinGame(ctx context.Context, client *Client, msg ClientMessage) {
	game, err := s.lobby.JoinGame(ctx, model.GameID(msg.GameID), client.UserID)
	if err != nil {
		s.sendError(client, err)
		return
	}

	color, _ := game.PlayerColor(client.UserID)
	s.sendEvent(client, model.Event{
		Type:    model.EventGameJoined,
		Payload: model.GameJoinedPayload{GameID: game.ID, Color: color},
	})

	// The creator hasn't attached a game session yet, so start notifications
	// go by user rather than by seat
	started := model.Event{
		Type: model.EventGameStarted,
		Payload: model.GameStartedPayload{
			GameID:             game.ID,
			WhitePlayerID:      game.WhitePlayerID,
			BlackPlayerID:      game.BlackPlayerID,
			TimeControl:        game.TimeControl,
			WhiteTimeRemaining: game.WhiteTimeRemaining,
			BlackTimeRemaining: game.BlackTimeRemaining,
		},
	}
	s.notifier.NotifyUser(game.WhitePlayerID, started)
	s.notifier.NotifyUser(game.BlackPlayerID, started)
}

func (s *Server) handleCancelGame(ctx context.Context, client *Client, msg ClientMessage) {
	game, err := s.lobby.CancelGame(ctx, model.GameID(msg.GameID), client.UserID)
	if err != nil {
		s.sendError(client, err)
		return
	}
	s.sendEvent(client, model.Event{
		Type:    model.EventGameCancelled,
		Payload: model.GameRemovedPayload{GameID: game.ID},
	})
}

func (s *Server) handleGameJoin(ctx context.Context, client *Client, msg ClientMessage) {
	game, color, err := s.sessions.Attach(ctx, client.ID, model.GameID(msg.GameID), client.UserID)
	if err != nil {
		s.sendError(client, err)
		return
	}

	s.hubs.GetOrCreateHub(GameTopic(game.ID)).Register(client)

	white, black := timer.Snapshot(game, s.clock.Now())
	s.sendEvent(client, model.Event{
		Type: model.EventSessionJoined,
		Payload: model.SessionJoinedPayload{
			GameID:             game.ID,
			Color:              color,
			MoveLog:            game.MoveLog,
			TurnColor:          game.TurnColor,
			WhiteTimeRemaining: white,
			BlackTimeRemaining: black,
		},
	})
}

func (s *Server) handleGameLeave(client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if ok {
		if hub := s.hubs.GetHub(GameTopic(sess.GameID)); hub != nil {
			hub.Unregister(client)
		}
	}
	s.sessions.Detach(client.ID)
}

func (s *Server) handleMove(ctx context.Context, client *Client, msg ClientMessage) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	game, reason, err := s.matches.ApplyMove(ctx, sess.GameID, sess.Color, msg.MoveLog)
	if err != nil {
		s.sendError(client, err)
		return
	}

	// Authoritative clocks back to the mover, full move relay to the opponent
	s.sendEvent(client, model.Event{
		Type: model.EventTimerSync,
		Payload: model.TimerSyncPayload{
			WhiteTimeRemaining: game.WhiteTimeRemaining,
			BlackTimeRemaining: game.BlackTimeRemaining,
		},
	})
	if oppConn, ok := s.sessions.SeatConn(sess.GameID, sess.Color.Opponent()); ok {
		s.notifier.NotifyConn(oppConn, model.Event{
			Type: model.EventMovePlayed,
			Payload: model.MovePayload{
				From:               msg.From,
				To:                 msg.To,
				Promotion:          msg.Promotion,
				MoveLog:            game.MoveLog,
				TurnColor:          game.TurnColor,
				WhiteTimeRemaining: game.WhiteTimeRemaining,
				BlackTimeRemaining: game.BlackTimeRemaining,
			},
		})
	}

	if reason != "" {
		s.finishGame(game, reason)
	}
}

func (s *Server) handleResign(ctx context.Context, client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	game, err := s.matches.Resign(ctx, sess.GameID, sess.Color)
	if err != nil {
		s.sendError(client, err)
		return
	}
	if game == nil {
		// Already terminal; nothing to announce
		return
	}
	s.finishGame(game, model.ReasonResignation)
}

func (s *Server) handleTimeout(ctx context.Context, client *Client, msg ClientMessage) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	timedOut := model.Color(msg.TimedOutColor)
	if !timedOut.Valid() {
		s.sendError(client, model.ErrInvalidColor)
		return
	}

	game, err := s.matches.Timeout(ctx, sess.GameID, timedOut)
	if err != nil {
		s.sendError(client, err)
		return
	}
	if game == nil {
		return
	}
	s.finishGame(game, model.ReasonTimeout)
}

func (s *Server) handleOfferDraw(ctx context.Context, client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	outcome, game, err := s.draws.Offer(ctx, sess.GameID, sess.Color)
	if err != nil {
		s.sendError(client, err)
		return
	}

	switch outcome {
	case draw.Offered:
		if oppConn, ok := s.sessions.SeatConn(sess.GameID, sess.Color.Opponent()); ok {
			s.notifier.NotifyConn(oppConn, model.Event{
				Type:    model.EventDrawOffered,
				Payload: model.DrawOfferPayload{Color: sess.Color},
			})
		}
	case draw.Collapsed:
		if game != nil {
			s.finishGame(game, model.ReasonAgreement)
		}
	case draw.Duplicate:
		// Re-offer from the same side changes nothing
	}
}

func (s *Server) handleAcceptDraw(ctx context.Context, client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	game, err := s.draws.Accept(ctx, sess.GameID, sess.Color)
	if err != nil {
		s.sendError(client, err)
		return
	}
	if game == nil {
		return
	}
	s.finishGame(game, model.ReasonAgreement)
}

func (s *Server) handleDeclineDraw(client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	if err := s.draws.Decline(sess.GameID, sess.Color); err != nil {
		s.sendError(client, err)
		return
	}
	if oppConn, ok := s.sessions.SeatConn(sess.GameID, sess.Color.Opponent()); ok {
		s.notifier.NotifyConn(oppConn, model.Event{
			Type:    model.EventDrawDeclined,
			Payload: model.DrawOfferPayload{Color: sess.Color},
		})
	}
}

func (s *Server) handleCancelDrawOffer(client *Client) {
	sess, ok := s.sessions.Session(client.ID)
	if !ok {
		s.sendError(client, model.ErrNotParticipant)
		return
	}

	if err := s.draws.Cancel(sess.GameID, sess.Color); err != nil {
		s.sendError(client, err)
		return
	}
	if oppConn, ok := s.sessions.SeatConn(sess.GameID, sess.Color.Opponent()); ok {
		s.notifier.NotifyConn(oppConn, model.Event{
			Type:    model.EventDrawOfferCancelled,
			Payload: model.DrawOfferPayload{Color: sess.Color},
		})
	}
}

// finishGame fans out the single terminal broadcast and releases every piece
// of per-game transient state. Safe to call from any termination path; the
// match controller has already made the terminal transition exactly once.
func (s *Server) finishGame(game *model.Game, reason model.EndReason) {
	s.notifier.NotifyGame(game.ID, model.Event{
		Type: model.EventGameEnded,
		Payload: model.GameEndedPayload{
			GameID:   game.ID,
			Result:   game.Result,
			Reason:   reason,
			WinnerID: game.WinnerID,
		},
	})
	s.draws.Clear(game.ID)
	s.sessions.ReleaseGame(game.ID)
	s.notifier.CloseGameTopic(game.ID)
}

func (s *Server) sendEvent(client *Client, event model.Event) {
	if !client.trySend(marshalEvent(event, s.logger)) {
		s.logger.Warn("event dropped - client buffer full",
			slog.String("conn_id", client.ID),
			slog.String("event", string(event.Type)))
	}
}

// sendError reports a failure to the requesting connection only. Unclassified
// errors are logged server-side and surfaced as an opaque internal error.
func (s *Server) sendError(client *Client, err error) {
	if model.Classify(err) == model.KindInternal {
		s.logger.Error("request failed",
			slog.String("conn_id", client.ID),
			slog.String("error", err.Error()),
		)
		s.sendEvent(client, model.Event{
			Type:    model.EventError,
			Payload: model.ErrorPayload{Code: model.KindInternal, Message: "internal error"},
		})
		return
	}
	s.sendEvent(client, model.NewErrorEvent(err))
}
