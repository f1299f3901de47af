// services/errors.go
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by every state-changing operation. Handlers map
// them to HTTP statuses through Kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidWinner     = errors.New("invalid winner")
	ErrValidation        = errors.New("validation failed")

	ErrNotTeamMember = fmt.Errorf("%w: not a member of this team", ErrForbidden)
	ErrAlreadyJoined = fmt.Errorf("%w: team already joined this campaign", ErrInvalidState)
	ErrPoolDepleted  = fmt.Errorf("%w: campaign prize pool depleted", ErrInvalidState)
	ErrRematchLimit  = fmt.Errorf("%w: these teams have reached the battle limit for this campaign", ErrInvalidState)
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindInvalidState      ErrorKind = "invalid_state"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInvalidWinner     ErrorKind = "invalid_winner"
	KindValidation        ErrorKind = "validation"
	KindInternal          ErrorKind = "internal"
)

// Kind classifies err. Unknown errors are internal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidWinner):
		return KindInvalidWinner
	case errors.Is(err, ErrValidation):
		return KindValidation
	}
	return KindInternal
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
