package model

import "errors"

// Common errors used across the application
var (
	// Validation errors
	ErrInvalidTimeControl = errors.New("time control must be one of the allowed values")
	ErrInvalidColor       = errors.New("invalid color")
	ErrInvalidMoveLog     = errors.New("move log does not describe a legal game")
	ErrUnknownMessageType = errors.New("unknown message type")

	// Conflict errors
	ErrActiveGameExists = errors.New("user already has an active game")
	ErrSelfJoin         = errors.New("cannot join your own game")

	// Not found errors
	ErrGameNotFound = errors.New("game not found")

	// Invalid state errors
	ErrGameNotWaiting    = errors.New("game is not waiting for an opponent")
	ErrGameNotInProgress = errors.New("game is not in progress")

	// Authorization errors
	ErrNotCreator     = errors.New("only the creator may do this")
	ErrNotParticipant = errors.New("user is not a participant in this game")

	// Draw negotiation errors
	ErrNoDrawOffer       = errors.New("no draw offer to act on")
	ErrDrawOfferNotYours = errors.New("only the offering side can cancel the offer")
)

// ErrorKind is the coarse error family surfaced to the requesting client
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindConflict      ErrorKind = "CONFLICT"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindInvalidState  ErrorKind = "INVALID_STATE"
	KindAuthorization ErrorKind = "UNAUTHORIZED"
	KindInternal      ErrorKind = "INTERNAL_ERROR"
)

// Classify maps a domain error to its family
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidTimeControl),
		errors.Is(err, ErrInvalidColor),
		errors.Is(err, ErrInvalidMoveLog),
		errors.Is(err, ErrUnknownMessageType):
		return KindValidation
	case errors.Is(err, ErrActiveGameExists),
		errors.Is(err, ErrSelfJoin):
		return KindConflict
	case errors.Is(err, ErrGameNotFound):
		return KindNotFound
	case errors.Is(err, ErrGameNotWaiting),
		errors.Is(err, ErrGameNotInProgress),
		errors.Is(err, ErrNoDrawOffer):
		return KindInvalidState
	case errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrDrawOfferNotYours):
		return KindAuthorization
	default:
		return KindInternal
	}
}
