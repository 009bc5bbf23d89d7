package credits

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrAccountNotFound     = errors.New("account_not_found")
)

// InsufficientCreditsError carries the shortfall so callers can tell
// the user what a retry would cost.
type InsufficientCreditsError struct {
	Need int64
	Have int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: need %d, have %d", e.Need, e.Have)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
