// Package flow holds the sign-in attempt state machine as a value type and a
// pure reducer over it. Nothing here performs I/O; the controller in package
// signin feeds events in and acts on the resulting state.
package flow

import (
	"github.com/nfrund/signin/internal/domain"
)

// Phase is the coarse position of an attempt in the state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSubmitting    Phase = "submitting"
	PhaseCodeAwaiting  Phase = "code_awaiting"
	PhaseVerifyingCode Phase = "verifying_code"
	PhaseRedirecting   Phase = "redirecting"
	PhaseFailed        Phase = "failed"
)

// Terminal reports whether no further transitions are accepted.
func (p Phase) Terminal() bool { return p == PhaseRedirecting }

// State is a snapshot of one attempt. It is a value: Reduce never mutates its
// input, and FieldErrors is never shared between two states.
type State struct {
	Phase             Phase               `json:"phase"`
	ActiveMethod      domain.Method       `json:"active_method"`
	Busy              bool                `json:"busy"`
	CooldownRemaining int                 `json:"cooldown_remaining"`
	CodeEntryVisible  bool                `json:"code_entry_visible"`
	LastUsedTab       domain.Tab          `json:"last_used_tab"`
	Email             string              `json:"email,omitempty"`
	RedirectTarget    string              `json:"redirect_target,omitempty"`
	FieldErrors       []domain.FieldError `json:"field_errors,omitempty"`
}

// Initial returns the state a fresh controller starts in.
func Initial(tab domain.Tab) State {
	return State{
		Phase:       PhaseIdle,
		LastUsedTab: domain.ParseTab(string(tab)),
	}
}

// FieldError returns the message attached to f, if any.
func (s State) FieldError(f domain.Field) (string, bool) {
	for _, fe := range s.FieldErrors {
		if fe.Field == f {
			return fe.Message, true
		}
	}
	return "", false
}

// CanStart reports whether a new identity call for m may begin.
func (s State) CanStart(m domain.Method) error {
	if s.Phase.Terminal() {
		return domain.ErrAttemptFinished
	}
	if s.Busy || s.ActiveMethod != domain.MethodNone {
		return domain.ErrBusy
	}
	if m == domain.MethodMagicLink && s.CooldownRemaining > 0 {
		return domain.ErrCooldownActive
	}
	return nil
}

// CanVerify reports whether a code may be submitted.
func (s State) CanVerify() error {
	if s.Phase.Terminal() {
		return domain.ErrAttemptFinished
	}
	if s.Busy || s.ActiveMethod != domain.MethodNone {
		return domain.ErrBusy
	}
	if !s.CodeEntryVisible {
		return domain.ErrCodeEntryHidden
	}
	return nil
}

// ResendAvailable reports whether the resend action should be enabled.
func (s State) ResendAvailable() bool {
	return s.CodeEntryVisible && s.CanStart(domain.MethodMagicLink) == nil
}

// resting is the phase an attempt falls back to once nothing is in flight.
func (s State) resting() Phase {
	if s.CodeEntryVisible {
		return PhaseCodeAwaiting
	}
	return PhaseIdle
}

func (s State) clone() State {
	if s.FieldErrors != nil {
		s.FieldErrors = append([]domain.FieldError(nil), s.FieldErrors...)
	}
	return s
}
