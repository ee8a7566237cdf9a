package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sign-in flow. Controller methods return these for
// requests that are rejected before any identity call is made.
var (
	// ErrBusy is returned when another sign-in method already has a call in flight.
	ErrBusy = errors.New("another sign-in method is in progress")

	// ErrCooldownActive is returned when a code send is attempted before the
	// resend cooldown has elapsed.
	ErrCooldownActive = errors.New("resend is not available yet")

	// ErrCodeEntryHidden is returned when a code is submitted before one was sent.
	ErrCodeEntryHidden = errors.New("no verification code has been sent")

	// ErrAttemptFinished is returned once a redirect has been dispatched or the
	// controller has been closed.
	ErrAttemptFinished = errors.New("sign-in attempt is finished")

	// ErrIdentityUnavailable is returned by the fallback identity service when
	// no backend is configured.
	ErrIdentityUnavailable = errors.New("identity service is not configured")

	// ErrUnknownProvider is returned for OAuth provider names we do not support.
	ErrUnknownProvider = errors.New("unknown sign-in provider")
)

// IdentityError is an error reported by the identity service. Message is the
// provider's own text and is what the classifier inspects.
type IdentityError struct {
	Op      string
	Status  int
	Message string
}

func (e *IdentityError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Message
}
