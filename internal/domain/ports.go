package domain

import "context"

// IdentityService is the external authentication backend. The controller only
// calls it; email dispatch, code issuance and OAuth handling live behind it.
// An empty redirectTarget means "no explicit target".
type IdentityService interface {
	// SendSignInEmail mails a one-time code / magic link to email.
	SendSignInEmail(ctx context.Context, email, redirectTarget, locale string) error
	// SignInWithPassword authenticates with an email and password.
	SignInWithPassword(ctx context.Context, email, password string) error
	// VerifyOneTimeCode completes a magic-link sign-in with the mailed code.
	VerifyOneTimeCode(ctx context.Context, email, code string) error
	// StartOAuthSignIn prepares a provider redirect and returns the URL the
	// browser must be sent to. An error means the redirect never happened.
	StartOAuthSignIn(ctx context.Context, provider Provider, redirectTarget, locale string) (string, error)
}

// PreferenceStore is a small persisted key-value store. It outlives a single
// sign-in attempt and is read when the next one starts.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Preference keys shared by every PreferenceStore implementation.
const (
	PrefLastAuthTab  = "auth.last_tab"
	PrefReferralCode = "referral.code"
)

// NoticeLevel is the severity of a global, toast-style notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a global message shown to the user independent of any field.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// Notifier displays global notices.
type Notifier interface {
	Notify(n Notice)
}

// Navigator performs navigations on behalf of the controller.
type Navigator interface {
	// Navigate replaces the current location, refreshing session state.
	Navigate(target string)
	// Open shows target in a new window without leaving the current page.
	Open(target string)
}
