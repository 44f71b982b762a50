package gate

import (
	"errors"
	"fmt"

	"github.com/0x5487/order-gate/protocol"
)

var (
	ErrValidation        = errors.New("the order request is invalid")
	ErrDuplicateOrder    = fmt.Errorf("%w: order id is already queued", ErrValidation)
	ErrNotFound          = errors.New("order not found in queue")
	ErrTradingInactive   = errors.New("trading is not active")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrShutdown          = errors.New("dispatcher is shutting down")
	ErrTimeout           = errors.New("timeout")
)

// TimeFormatError names a time-of-day value that is not HH:MM.
// It matches both ErrInvalidTimeFormat and ErrConfiguration.
type TimeFormatError struct {
	Value string
}

func (e *TimeFormatError) Error() string {
	return fmt.Sprintf("invalid time format %q: expected HH:MM (00-23:00-59)", e.Value)
}

func (e *TimeFormatError) Unwrap() []error {
	return []error{ErrInvalidTimeFormat, ErrConfiguration}
}

func reasonOf(err error) RejectReason {
	switch {
	case err == nil:
		return protocol.RejectReasonNone
	case errors.Is(err, ErrDuplicateOrder):
		return protocol.RejectReasonDuplicateID
	case errors.Is(err, ErrValidation):
		return protocol.RejectReasonInvalidPayload
	case errors.Is(err, ErrNotFound):
		return protocol.RejectReasonOrderNotFound
	case errors.Is(err, ErrTradingInactive):
		return protocol.RejectReasonTradingInactive
	case errors.Is(err, ErrShutdown):
		return protocol.RejectReasonShutdown
	case errors.Is(err, ErrTimeout):
		return protocol.RejectReasonTimeout
	default:
		return protocol.RejectReasonInvalidPayload
	}
}
