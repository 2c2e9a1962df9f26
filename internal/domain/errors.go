package domain

import "errors"

// Domain errors
var (
	ErrGameNotFound      = errors.New("game not found")
	ErrAlreadyCompleted  = errors.New("game already completed")
	ErrMaxRollsReached   = errors.New("maximum rolls (10) already reached")
	ErrGameIncomplete    = errors.New("game requires 10 rolls before finishing")
	ErrInvalidDice       = errors.New("dice values must be between 1 and 6")
	ErrInvalidPlayerName = errors.New("invalid player name: must be 1-50 characters of letters, spaces, hyphens, apostrophes, and periods")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternalError     = errors.New("internal server error")
)

// Stable machine-readable codes paired with the errors above.
const (
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeAlreadyCompleted  = "GAME_ALREADY_COMPLETED"
	CodeMaxRollsReached   = "MAX_ROLLS_REACHED"
	CodeGameIncomplete    = "GAME_INCOMPLETE"
	CodeInvalidDice       = "INVALID_DICE_VALUES"
	CodeInvalidPlayerName = "INVALID_PLAYER_NAME"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Code maps an error to its stable code. Unrecognized errors collapse to
// INTERNAL_ERROR so storage detail never reaches a caller.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return CodeGameNotFound
	case errors.Is(err, ErrAlreadyCompleted):
		return CodeAlreadyCompleted
	case errors.Is(err, ErrMaxRollsReached):
		return CodeMaxRollsReached
	case errors.Is(err, ErrGameIncomplete):
		return CodeGameIncomplete
	case errors.Is(err, ErrInvalidDice):
		return CodeInvalidDice
	case errors.Is(err, ErrInvalidPlayerName):
		return CodeInvalidPlayerName
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidInput
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternalError
	}
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrGameNotFound)
}

// IsValidationError checks if an error is caused by malformed caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDice) ||
		errors.Is(err, ErrInvalidPlayerName) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is a game-state rule violation.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrMaxRollsReached) ||
		errors.Is(err, ErrGameIncomplete)
}
