package models

import (
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy shared by the engine and the clients it drives. Keeping
// these here means the engine never imports a vendor-specific package to
// classify an error.
var (
	// transport to the bridge failed; transient, the engine backs off
	ErrBridgeUnreachable = errors.New("bridge unreachable")

	// a single light is off or out of range; siblings still get updated
	ErrLightUnreachable = errors.New("light unreachable")

	// the link button was not pressed within the pairing retry budget
	ErrPairingTimedOut = errors.New("pairing timed out")

	// the playback source failed or refused the request; transient
	ErrServiceUnavailable = errors.New("playback service unavailable")

	// the user declined authorization
	ErrAuthorizationDenied = errors.New("authorization denied")

	// tokens are no longer valid and cannot be refreshed
	ErrAuthorizationExpired = errors.New("authorization expired")

	// artwork bytes could not be decoded
	ErrImageDecode = errors.New("image decode error")
)

// RateLimitError is returned when the playback source asks us to slow down.
// The engine defers the next poll by RetryAfter instead of its own backoff.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrServiceUnavailable
}
