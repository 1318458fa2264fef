package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"chessmatch/internal/model"
)

type EngineSuite struct {
	suite.Suite
	engine *ChessEngine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine()
}

func (s *EngineSuite) TestEmptyLogIsWhiteToMove() {
	ev, err := s.engine.Evaluate(nil)
	s.Require().NoError(err)

	s.False(ev.Over)
	s.Equal(model.ColorWhite, ev.TurnColor)
}

func (s *EngineSuite) TestTurnAlternates() {
	ev, err := s.engine.Evaluate([]string{"e4"})
	s.Require().NoError(err)
	s.Equal(model.ColorBlack, ev.TurnColor)

	ev, err = s.engine.Evaluate([]string{"e4", "e5"})
	s.Require().NoError(err)
	s.Equal(model.ColorWhite, ev.TurnColor)
}

func (s *EngineSuite) TestOngoingGameIsNotOver() {
	ev, err := s.engine.Evaluate([]string{"e4", "e5", "Nf3", "Nc6"})
	s.Require().NoError(err)

	s.False(ev.Over)
	s.Empty(ev.Result)
	s.Empty(ev.Reason)
}

func (s *EngineSuite) TestIllegalMoveIsRejected() {
	_, err := s.engine.Evaluate([]string{"e4", "e4"})
	s.ErrorIs(err, model.ErrInvalidMoveLog)
}

func (s *EngineSuite) TestGarbageNotationIsRejected() {
	_, err := s.engine.Evaluate([]string{"not a move"})
	s.ErrorIs(err, model.ErrInvalidMoveLog)
}

func (s *EngineSuite) TestFoolsMateIsCheckmate() {
	ev, err := s.engine.Evaluate([]string{"f3", "e6", "g4", "Qh4#"})
	s.Require().NoError(err)

	s.True(ev.Over)
	s.Equal(model.ResultBlackWin, ev.Result)
	s.Equal(model.ReasonCheckmate, ev.Reason)
}

func (s *EngineSuite) TestScholarsMateIsCheckmate() {
	ev, err := s.engine.Evaluate([]string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"})
	s.Require().NoError(err)

	s.True(ev.Over)
	s.Equal(model.ResultWhiteWin, ev.Result)
	s.Equal(model.ReasonCheckmate, ev.Reason)
}

func (s *EngineSuite) TestStalemateIsDetected() {
	// Sam Loyd's ten-move stalemate
	ev, err := s.engine.Evaluate([]string{
		"e3", "a5",
		"Qh5", "Ra6",
		"Qxa5", "h5",
		"Qxc7", "Rah6",
		"h4", "f6",
		"Qxd7+", "Kf7",
		"Qxb7", "Qd3",
		"Qxb8", "Qh7",
		"Qxc8", "Kg6",
		"Qe6",
	})
	s.Require().NoError(err)

	s.True(ev.Over)
	s.Equal(model.ResultDraw, ev.Result)
	s.Equal(model.ReasonStalemate, ev.Reason)
}

func (s *EngineSuite) TestMoveAfterMateIsRejected() {
	_, err := s.engine.Evaluate([]string{"f3", "e6", "g4", "Qh4#", "a3"})
	s.ErrorIs(err, model.ErrInvalidMoveLog)
}
