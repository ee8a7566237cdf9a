// Package view turns controller state into the JSON the sign-in page renders.
package view

import (
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/mailclient"
	"github.com/nfrund/signin/internal/signin"
)

// Attempt is the view model returned by every sign-in endpoint.
type Attempt struct {
	ID                 string                  `json:"id"`
	Phase              flow.Phase              `json:"phase"`
	ActiveMethod       string                  `json:"active_method"`
	Busy               bool                    `json:"busy"`
	CooldownRemaining  int                     `json:"cooldown_remaining"`
	ResendAvailable    bool                    `json:"resend_available"`
	CodeEntryVisible   bool                    `json:"code_entry_visible"`
	Tab                domain.Tab              `json:"tab"`
	Email              string                  `json:"email,omitempty"`
	SubscriptionIntent bool                    `json:"subscription_intent"`
	Locale             string                  `json:"locale"`
	FieldErrors        map[domain.Field]string `json:"field_errors"`
	Notices            []domain.Notice         `json:"notices"`
	Navigate           string                  `json:"navigate,omitempty"`
	Open               []string                `json:"open,omitempty"`
	Mailbox            *mailclient.Action      `json:"mailbox,omitempty"`
	Flash              *FlashData              `json:"flash,omitempty"`
}

// NewAttempt builds the view for attempt id from a state snapshot and the
// effects drained since the previous response.
func NewAttempt(id string, ac domain.AttemptContext, st flow.State, eff signin.Effects) Attempt {
	v := Attempt{
		ID:                 id,
		Phase:              st.Phase,
		ActiveMethod:       st.ActiveMethod.String(),
		Busy:               st.Busy,
		CooldownRemaining:  st.CooldownRemaining,
		ResendAvailable:    st.ResendAvailable(),
		CodeEntryVisible:   st.CodeEntryVisible,
		Tab:                st.LastUsedTab,
		Email:              st.Email,
		SubscriptionIntent: ac.SubscriptionIntent,
		Locale:             ac.Locale,
		FieldErrors:        make(map[domain.Field]string, len(st.FieldErrors)),
		Notices:            eff.Notices,
		Navigate:           eff.Navigate,
		Open:               eff.Open,
	}
	for _, fe := range st.FieldErrors {
		v.FieldErrors[fe.Field] = fe.Message
	}
	if v.Notices == nil {
		v.Notices = []domain.Notice{}
	}
	if st.CodeEntryVisible && st.Email != "" {
		action := mailclient.Resolve(st.Email)
		v.Mailbox = &action
	}
	return v
}

// WithFlash attaches flash messages when there are any.
func (a Attempt) WithFlash(f FlashData) Attempt {
	if !f.Empty() {
		a.Flash = &f
	}
	return a
}

// StreamFrame is one message on the attempt websocket.
type StreamFrame struct {
	Kind   signin.EventKind `json:"kind"`
	Notice *domain.Notice   `json:"notice,omitempty"`
	Code   string           `json:"code,omitempty"`
	State  Attempt          `json:"state"`
}

// NewStreamFrame renders a published attempt event. Notices travel in Notice
// only; the embedded state never carries effects.
func NewStreamFrame(ev signin.AttemptEvent, ac domain.AttemptContext) StreamFrame {
	f := StreamFrame{
		Kind:   ev.Kind,
		Notice: ev.Notice,
		State:  NewAttempt(ev.AttemptID, ac, ev.State, signin.Effects{}),
	}
	if ev.Classification != nil {
		f.Code = ev.Classification.Code
	}
	return f
}
