package core

import "errors"

// Sentinel error kinds for the procurement domain. Operations wrap these with
// fmt.Errorf("...: %w", Err...) so callers can classify failures with
// errors.Is while still getting a specific message.
var (
	// ErrUnauthorized: the caller lacks the role the operation requires.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrNotFound: unknown tender, bid, or supplier reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the operation is not legal in the current lifecycle
	// state, e.g. bidding on a closed tender.
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrValidation: malformed input such as an empty title, a non-positive
	// amount, or a deadline in the past.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate: already registered, or already bid on this tender.
	ErrDuplicate = errors.New("duplicate")

	// ErrProtocol: a reveal callback that cannot be applied — wrong length,
	// odd parity, unmatched request id, or a tender not awaiting results.
	ErrProtocol = errors.New("reveal protocol violation")
)
