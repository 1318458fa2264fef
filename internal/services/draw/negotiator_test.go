package draw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chessmatch/internal/dependencies/mocks"
	"chessmatch/internal/model"
	"chessmatch/internal/services/match"
	"chessmatch/internal/services/rules"
	"chessmatch/internal/storage/memory"
	"chessmatch/internal/testutil"
)

type NegotiatorSuite struct {
	suite.Suite
	matches    *match.Controller
	negotiator *Negotiator
	random     *mocks.MockRandom
	ctx        context.Context
}

func TestNegotiatorSuite(t *testing.T) {
	suite.Run(t, new(NegotiatorSuite))
}

func (s *NegotiatorSuite) SetupTest() {
	store := memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	logger := testutil.NopLogger()
	s.matches = match.NewController(store, rules.NewEngine(), clk, s.random, logger)
	s.negotiator = NewNegotiator(s.matches, logger)
	s.ctx = context.Background()
}

func (s *NegotiatorSuite) startGame(id string) model.GameID {
	s.random.QueueString(id)
	_, err := s.matches.Create(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.random.QueueIntn(0)
	_, err = s.matches.Join(s.ctx, model.GameID(id), "bob")
	s.Require().NoError(err)
	return model.GameID(id)
}

func (s *NegotiatorSuite) TestOfferIsPending() {
	gameID := s.startGame("GAME00000001")

	outcome, game, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	s.Equal(Offered, outcome)
	s.Nil(game)

	color, ok := s.negotiator.Pending(gameID)
	s.True(ok)
	s.Equal(model.ColorWhite, color)
}

func (s *NegotiatorSuite) TestRepeatedOfferIsNoop() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	outcome, game, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)
	s.Equal(Duplicate, outcome)
	s.Nil(game)
}

func (s *NegotiatorSuite) TestCrossingOffersCollapseIntoDraw() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	outcome, game, err := s.negotiator.Offer(s.ctx, gameID, model.ColorBlack)
	s.Require().NoError(err)

	s.Equal(Collapsed, outcome)
	s.Require().NotNil(game)
	s.Equal(model.StatusCompleted, game.Status)
	s.Equal(model.ResultDraw, game.Result)

	_, ok := s.negotiator.Pending(gameID)
	s.False(ok)
}

func (s *NegotiatorSuite) TestAcceptEndsGameAsDraw() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	game, err := s.negotiator.Accept(s.ctx, gameID, model.ColorBlack)
	s.Require().NoError(err)

	s.Require().NotNil(game)
	s.Equal(model.ResultDraw, game.Result)
}

func (s *NegotiatorSuite) TestAcceptWithoutOfferFails() {
	gameID := s.startGame("GAME00000001")

	_, err := s.negotiator.Accept(s.ctx, gameID, model.ColorBlack)
	s.ErrorIs(err, model.ErrNoDrawOffer)
}

func (s *NegotiatorSuite) TestOffererCannotAcceptOwnOffer() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	_, err = s.negotiator.Accept(s.ctx, gameID, model.ColorWhite)
	s.ErrorIs(err, model.ErrNoDrawOffer)
}

func (s *NegotiatorSuite) TestDeclineClearsOffer() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	s.Require().NoError(s.negotiator.Decline(gameID, model.ColorBlack))

	_, ok := s.negotiator.Pending(gameID)
	s.False(ok)

	// Game continues
	game, err := s.matches.Get(s.ctx, gameID)
	s.Require().NoError(err)
	s.Equal(model.StatusInProgress, game.Status)
}

func (s *NegotiatorSuite) TestDeclineWithoutOfferFails() {
	gameID := s.startGame("GAME00000001")

	err := s.negotiator.Decline(gameID, model.ColorBlack)
	s.ErrorIs(err, model.ErrNoDrawOffer)
}

func (s *NegotiatorSuite) TestCancelOwnOffer() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	s.Require().NoError(s.negotiator.Cancel(gameID, model.ColorWhite))

	_, ok := s.negotiator.Pending(gameID)
	s.False(ok)
}

func (s *NegotiatorSuite) TestCancelRejectsOtherSide() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	err = s.negotiator.Cancel(gameID, model.ColorBlack)
	s.ErrorIs(err, model.ErrDrawOfferNotYours)
}

func (s *NegotiatorSuite) TestOfferSurvivesDeclineAndReoffer() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)
	s.Require().NoError(s.negotiator.Decline(gameID, model.ColorBlack))

	outcome, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)
	s.Equal(Offered, outcome)
}

func (s *NegotiatorSuite) TestClearDropsPendingOffer() {
	gameID := s.startGame("GAME00000001")

	_, _, err := s.negotiator.Offer(s.ctx, gameID, model.ColorWhite)
	s.Require().NoError(err)

	s.negotiator.Clear(gameID)

	_, ok := s.negotiator.Pending(gameID)
	s.False(ok)
}
