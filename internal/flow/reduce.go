package flow

import (
	"github.com/nfrund/signin/internal/domain"
)

// Event is an input to Reduce.
type Event interface {
	event()
}

// TabSelected switches the credential form tab.
type TabSelected struct{ Tab domain.Tab }

// SubmitStarted marks the start of an identity call for Method. Email is
// recorded for magic-link sends so a later verify or resend can reuse it.
type SubmitStarted struct {
	Method domain.Method
	Email  string
}

// CodeSent acknowledges a successful magic-link send.
type CodeSent struct{ Cooldown int }

// VerifyStarted marks the start of a one-time code verification.
type VerifyStarted struct{}

// RedirectDispatched records that a navigation away from the form was issued.
type RedirectDispatched struct{ Target string }

// AttemptFailed records a failed identity call. FieldErrors holds at most the
// single annotation derived from the classification.
type AttemptFailed struct{ FieldErrors []domain.FieldError }

// ValidationFailed attaches local validation errors without a phase change.
type ValidationFailed struct{ FieldErrors []domain.FieldError }

// FieldEdited clears the error on Field.
type FieldEdited struct{ Field domain.Field }

// CooldownTicked mirrors the resend timer.
type CooldownTicked struct{ Remaining int }

func (TabSelected) event()        {}
func (SubmitStarted) event()      {}
func (CodeSent) event()           {}
func (VerifyStarted) event()      {}
func (RedirectDispatched) event() {}
func (AttemptFailed) event()      {}
func (ValidationFailed) event()   {}
func (FieldEdited) event()        {}
func (CooldownTicked) event()     {}

// Reduce returns the state after applying e to s. Events that are not valid
// in the current phase leave the state unchanged; guards such as CanStart are
// the caller's job.
func Reduce(s State, e Event) State {
	next := s.clone()
	if s.Phase.Terminal() {
		return next
	}

	switch ev := e.(type) {
	case TabSelected:
		next.LastUsedTab = domain.ParseTab(string(ev.Tab))
		next.FieldErrors = nil
		if next.Phase == PhaseFailed {
			next.Phase = next.resting()
		}

	case SubmitStarted:
		if ev.Method == domain.MethodNone || s.Busy {
			return next
		}
		next.Phase = PhaseSubmitting
		next.ActiveMethod = ev.Method
		next.Busy = true
		next.FieldErrors = nil
		if ev.Method == domain.MethodMagicLink && ev.Email != "" {
			next.Email = ev.Email
		}

	case CodeSent:
		if s.Phase != PhaseSubmitting || s.ActiveMethod != domain.MethodMagicLink {
			return next
		}
		next.Phase = PhaseCodeAwaiting
		next.CodeEntryVisible = true
		next.CooldownRemaining = max(ev.Cooldown, 0)
		next.ActiveMethod = domain.MethodNone
		next.Busy = false

	case VerifyStarted:
		if s.Busy || !s.CodeEntryVisible {
			return next
		}
		next.Phase = PhaseVerifyingCode
		next.ActiveMethod = domain.MethodMagicLink
		next.Busy = true
		next.FieldErrors = nil

	case RedirectDispatched:
		next.Phase = PhaseRedirecting
		next.RedirectTarget = ev.Target
		next.ActiveMethod = domain.MethodNone
		next.Busy = false

	case AttemptFailed:
		next.Phase = PhaseFailed
		next.ActiveMethod = domain.MethodNone
		next.Busy = false
		next.FieldErrors = append([]domain.FieldError(nil), ev.FieldErrors...)

	case ValidationFailed:
		next.FieldErrors = append([]domain.FieldError(nil), ev.FieldErrors...)

	case FieldEdited:
		kept := next.FieldErrors[:0:0]
		for _, fe := range next.FieldErrors {
			if fe.Field != ev.Field {
				kept = append(kept, fe)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		next.FieldErrors = kept
		if next.Phase == PhaseFailed {
			next.Phase = next.resting()
		}

	case CooldownTicked:
		next.CooldownRemaining = max(ev.Remaining, 0)
	}

	return next
}
