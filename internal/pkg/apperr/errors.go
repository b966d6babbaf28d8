// Package apperr defines the error taxonomy shared by the store, the
// services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map failures to responses.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindNotFound          Kind = "not_found"
	KindInvalidArgument   Kind = "invalid_argument"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindDrawUnavailable   Kind = "draw_unavailable"
	KindDrawFull          Kind = "draw_full"
	KindEntryLimit        Kind = "entry_limit_reached"
	KindNoParticipants    Kind = "no_participants"
	KindAlreadyCompleted  Kind = "already_completed"
	KindAlreadyCheckedIn  Kind = "already_checked_in"
	KindConflict          Kind = "conflict"
	KindUnavailable       Kind = "unavailable"
)

// Sentinel errors. Wrap them with fmt.Errorf("...: %w", err) to add context.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("user not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrDrawUnavailable   = errors.New("draw is not available")
	ErrDrawFull          = errors.New("draw is full")
	ErrEntryLimitReached = errors.New("entry limit reached for this draw")
	ErrNoParticipants    = errors.New("no participants in this draw")
	ErrAlreadyCompleted  = errors.New("draw already completed")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrUnavailable       = errors.New("store unavailable")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrForbidden, KindForbidden},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrDrawUnavailable, KindDrawUnavailable},
	{ErrDrawFull, KindDrawFull},
	{ErrEntryLimitReached, KindEntryLimit},
	{ErrNoParticipants, KindNoParticipants},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
	{ErrAlreadyCheckedIn, KindAlreadyCheckedIn},
	{ErrConflict, KindConflict},
	{ErrUnavailable, KindUnavailable},
}

// KindOf returns the kind of the first sentinel found in err's chain.
// Errors that wrap no sentinel are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// NotFound returns an ErrNotFound wrapped with the entity and id.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// Invalid returns an ErrInvalidArgument wrapped with a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Unavailable wraps an infrastructure failure so callers can treat it as retryable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindConflict:
		return true
	}
	return false
}
