package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chessmatch/internal/dependencies/mocks"
	"chessmatch/internal/model"
	"chessmatch/internal/services/draw"
	"chessmatch/internal/services/match"
	"chessmatch/internal/services/rules"
	"chessmatch/internal/storage/memory"
	"chessmatch/internal/testutil"
)

const testGrace = 20 * time.Millisecond

// fakeNotifier records deliveries for assertion
type fakeNotifier struct {
	mu     sync.Mutex
	conns  map[string][]model.Event
	games  map[model.GameID][]model.Event
	closed []model.GameID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		conns: make(map[string][]model.Event),
		games: make(map[model.GameID][]model.Event),
	}
}

func (f *fakeNotifier) NotifyConn(connID string, event model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[connID] = append(f.conns[connID], event)
}

func (f *fakeNotifier) NotifyGame(gameID model.GameID, event model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[gameID] = append(f.games[gameID], event)
}

func (f *fakeNotifier) CloseGameTopic(gameID model.GameID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, gameID)
}

func (f *fakeNotifier) connEvents(connID string) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Event(nil), f.conns[connID]...)
}

func (f *fakeNotifier) gameEvents(gameID model.GameID) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Event(nil), f.games[gameID]...)
}

type ManagerSuite struct {
	suite.Suite
	matches    *match.Controller
	negotiator *draw.Negotiator
	notifier   *fakeNotifier
	manager    *Manager
	random     *mocks.MockRandom
	gameID     model.GameID
	ctx        context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	store := memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	logger := testutil.NopLogger()

	s.matches = match.NewController(store, rules.NewEngine(), clk, s.random, logger)
	s.negotiator = draw.NewNegotiator(s.matches, logger)
	s.notifier = newFakeNotifier()
	s.manager = NewManager(s.matches, s.negotiator, NewScheduler(), s.notifier, testGrace, logger)
	s.ctx = context.Background()

	// Game in progress: alice plays white, bob plays black
	s.random.QueueString("GAME00000001")
	_, err := s.matches.Create(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.random.QueueIntn(0)
	_, err = s.matches.Join(s.ctx, "GAME00000001", "bob")
	s.Require().NoError(err)
	s.gameID = "GAME00000001"
}

func (s *ManagerSuite) attachBoth() {
	_, _, err := s.manager.Attach(s.ctx, "conn-white", s.gameID, "alice")
	s.Require().NoError(err)
	_, _, err = s.manager.Attach(s.ctx, "conn-black", s.gameID, "bob")
	s.Require().NoError(err)
}

func (s *ManagerSuite) gameStatus() model.Status {
	game, err := s.matches.Get(s.ctx, s.gameID)
	s.Require().NoError(err)
	return game.Status
}

// Attach tests

func (s *ManagerSuite) TestAttachReturnsSeat() {
	game, color, err := s.manager.Attach(s.ctx, "conn-white", s.gameID, "alice")
	s.Require().NoError(err)

	s.Equal(model.ColorWhite, color)
	s.Equal(s.gameID, game.ID)

	sess, ok := s.manager.Session("conn-white")
	s.True(ok)
	s.Equal(model.ColorWhite, sess.Color)

	connID, ok := s.manager.SeatConn(s.gameID, model.ColorWhite)
	s.True(ok)
	s.Equal("conn-white", connID)
}

func (s *ManagerSuite) TestAttachRejectsOutsider() {
	_, _, err := s.manager.Attach(s.ctx, "conn-x", s.gameID, "carol")
	s.ErrorIs(err, model.ErrNotParticipant)
}

func (s *ManagerSuite) TestAttachRejectsWaitingGame() {
	s.random.QueueString("GAME00000002")
	_, err := s.matches.Create(s.ctx, "carol", 0)
	s.Require().NoError(err)

	_, _, err = s.manager.Attach(s.ctx, "conn-x", "GAME00000002", "carol")
	s.ErrorIs(err, model.ErrGameNotInProgress)
}

func (s *ManagerSuite) TestAttachMissingGame() {
	_, _, err := s.manager.Attach(s.ctx, "conn-x", "NOPE", "alice")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ManagerSuite) TestAttachNotifiesOpponent() {
	s.attachBoth()

	events := s.notifier.connEvents("conn-white")
	s.Require().Len(events, 1)
	s.Equal(model.EventOpponentConnected, events[0].Type)
	s.Equal(model.ColorBlack, events[0].Payload.(model.ConnectionPayload).Color)
}

// Disconnect tests

func (s *ManagerSuite) TestDisconnectNotifiesOpponentWithGraceWindow() {
	s.attachBoth()

	s.manager.HandleDisconnect("conn-black")

	events := s.notifier.connEvents("conn-white")
	s.Require().Len(events, 2)
	s.Equal(model.EventOpponentDisconnected, events[1].Type)

	payload := events[1].Payload.(model.ConnectionPayload)
	s.Equal(model.ColorBlack, payload.Color)
	s.Equal(testGrace.Milliseconds(), payload.ReconnectTimeoutMs)
}

func (s *ManagerSuite) TestDisconnectForfeitsAfterGrace() {
	s.attachBoth()

	s.manager.HandleDisconnect("conn-black")

	s.Eventually(func() bool {
		return s.gameStatus() == model.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	game, err := s.matches.Get(s.ctx, s.gameID)
	s.Require().NoError(err)
	s.Equal(model.ResultWhiteWin, game.Result)
	s.Equal(model.UserID("alice"), game.WinnerID)

	events := s.notifier.gameEvents(s.gameID)
	s.Require().Len(events, 1)
	s.Equal(model.EventGameEnded, events[0].Type)

	payload := events[0].Payload.(model.GameEndedPayload)
	s.Equal(model.ReasonOpponentDisconnected, payload.Reason)
	s.Equal(model.UserID("alice"), payload.WinnerID)
}

func (s *ManagerSuite) TestReconnectWithinGraceCancelsForfeit() {
	s.attachBoth()

	s.manager.HandleDisconnect("conn-black")
	_, _, err := s.manager.Attach(s.ctx, "conn-black-2", s.gameID, "bob")
	s.Require().NoError(err)

	time.Sleep(3 * testGrace)
	s.Equal(model.StatusInProgress, s.gameStatus())

	events := s.notifier.connEvents("conn-white")
	s.Require().Len(events, 3)
	s.Equal(model.EventOpponentReconnected, events[2].Type)
}

func (s *ManagerSuite) TestExplicitDetachDoesNotForfeit() {
	s.attachBoth()

	s.manager.Detach("conn-black")

	time.Sleep(3 * testGrace)
	s.Equal(model.StatusInProgress, s.gameStatus())

	_, ok := s.manager.Session("conn-black")
	s.False(ok)
	_, ok = s.manager.SeatConn(s.gameID, model.ColorBlack)
	s.False(ok)
}

func (s *ManagerSuite) TestStaleConnectionCannotReleaseSeat() {
	s.attachBoth()

	// A newer connection takes over the black seat
	_, _, err := s.manager.Attach(s.ctx, "conn-black-2", s.gameID, "bob")
	s.Require().NoError(err)

	// The old connection dropping must not start a forfeit
	s.manager.HandleDisconnect("conn-black")

	time.Sleep(3 * testGrace)
	s.Equal(model.StatusInProgress, s.gameStatus())

	connID, ok := s.manager.SeatConn(s.gameID, model.ColorBlack)
	s.True(ok)
	s.Equal("conn-black-2", connID)
}

func (s *ManagerSuite) TestForfeitClearsPendingDrawOffer() {
	s.attachBoth()

	_, _, err := s.negotiator.Offer(s.ctx, s.gameID, model.ColorBlack)
	s.Require().NoError(err)

	s.manager.HandleDisconnect("conn-black")

	s.Eventually(func() bool {
		return s.gameStatus() == model.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	_, pending := s.negotiator.Pending(s.gameID)
	s.False(pending)
}

func (s *ManagerSuite) TestReleaseGameCancelsArmedTimers() {
	s.attachBoth()

	s.manager.HandleDisconnect("conn-black")
	s.manager.ReleaseGame(s.gameID)

	time.Sleep(3 * testGrace)
	s.Equal(model.StatusInProgress, s.gameStatus())
}

func (s *ManagerSuite) TestDisconnectUnknownConnectionIsNoop() {
	s.manager.HandleDisconnect("never-attached")
	s.Empty(s.notifier.connEvents("conn-white"))
}
