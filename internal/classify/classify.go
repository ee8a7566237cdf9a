// Package classify maps raw identity-service error text onto a user-facing
// message and, where it makes sense, the form field the message belongs to.
//
// Rules are evaluated in order and the first match wins. Several rules overlap
// ("password requirements" also reads like a credential failure), so the order
// of Rules is part of the contract.
package classify

import (
	"errors"
	"strings"

	"github.com/nfrund/signin/internal/domain"
	"golang.org/x/text/cases"
)

// Kind separates hard failures from informational outcomes that arrive on
// the error path.
type Kind string

const (
	KindError  Kind = "error"
	KindNotice Kind = "notice"
)

// Result is a single classification. Callers must derive both the field
// annotation and the global notice from the same Result.
type Result struct {
	Code    string       `json:"code"`
	Key     string       `json:"key"`
	Message string       `json:"message"`
	Field   domain.Field `json:"field,omitempty"`
	Kind    Kind         `json:"kind"`
}

// HasField reports whether the result targets a specific form field.
func (r Result) HasField() bool { return r.Field != domain.FieldNone }

// Rule is one entry of the ordered classification table.
type Rule struct {
	Code     string
	Key      string
	Message  string
	Field    domain.Field
	Kind     Kind
	Patterns []string
}

// Matches reports whether any pattern occurs in the folded message text.
func (r Rule) Matches(folded string) bool {
	for _, p := range r.Patterns {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

// Classification codes.
const (
	CodePasswordTooWeak     = "password_too_weak"
	CodePasswordMinLength   = "password_min_length"
	CodeInvalidOrNoPassword = "invalid_credentials_or_no_password"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeEmailNotConfirmed   = "email_not_confirmed"
	CodeUserNotFound        = "user_not_found"
	CodeAccountExists       = "account_exists"
	CodeNoPasswordResetSent = "account_exists_no_password_reset_sent"
	CodeUnclassified        = "unclassified"
	CodeSignInFailed        = "sign_in_failed"
)

// Fallback is returned for values that carry no usable message.
var Fallback = Result{
	Code:    CodeSignInFailed,
	Key:     "auth.errors.signInFailed",
	Message: "Sign in failed. Please try again.",
	Kind:    KindError,
}

// Rules is the ordered rule table. Patterns are lower case.
var Rules = []Rule{
	{
		Code:     CodePasswordTooWeak,
		Key:      "auth.errors.passwordTooWeak",
		Message:  "Password is too weak. Use a mix of letters, numbers and symbols.",
		Field:    domain.FieldPassword,
		Kind:     KindError,
		Patterns: []string{"password should contain", "password must contain", "password requirements"},
	},
	{
		Code:     CodePasswordMinLength,
		Key:      "auth.errors.passwordMinLength",
		Message:  "Password must be at least 6 characters.",
		Field:    domain.FieldPassword,
		Kind:     KindError,
		Patterns: []string{"password must be at least", "password is too short"},
	},
	{
		Code:     CodeInvalidOrNoPassword,
		Key:      "auth.errors.invalidCredentialsOrNoPassword",
		Message:  "Incorrect password, or this account has no password yet. Try the email code instead.",
		Field:    domain.FieldPassword,
		Kind:     KindError,
		Patterns: []string{"invalid_credentials_or_no_password", "password is incorrect, or this account doesn't have a password set"},
	},
	{
		Code:     CodeInvalidCredentials,
		Key:      "auth.errors.invalidCredentials",
		Message:  "Invalid email or password.",
		Field:    domain.FieldPassword,
		Kind:     KindError,
		Patterns: []string{"invalid login credentials", "invalid_credentials", "invalid email or password"},
	},
	{
		Code:     CodeEmailNotConfirmed,
		Key:      "auth.errors.emailNotConfirmed",
		Message:  "Please confirm your email address before signing in.",
		Field:    domain.FieldEmail,
		Kind:     KindError,
		Patterns: []string{"email not confirmed", "email_not_confirmed"},
	},
	{
		Code:     CodeUserNotFound,
		Key:      "auth.errors.userNotFound",
		Message:  "No account found with this email.",
		Field:    domain.FieldEmail,
		Kind:     KindError,
		Patterns: []string{"user not found", "no user found"},
	},
	{
		Code:     CodeAccountExists,
		Key:      "auth.errors.accountExists",
		Message:  "An account with this email already exists.",
		Field:    domain.FieldEmail,
		Kind:     KindError,
		Patterns: []string{"already registered", "user already registered"},
	},
	{
		Code:     CodeNoPasswordResetSent,
		Key:      "auth.errors.accountExistsNoPasswordResetSent",
		Message:  "This account has no password yet. We sent you an email to set one.",
		Field:    domain.FieldEmail,
		Kind:     KindNotice,
		Patterns: []string{"account_exists_no_password", "doesn't have a password set", "password reset email has been sent"},
	},
}

// fold lower-cases s for matching. A Caser is not safe for concurrent use,
// so each call builds its own.
func fold(s string) string { return cases.Fold().String(s) }

// Classify maps v to a Result. Errors are matched on their message; an
// *domain.IdentityError contributes only its provider message so that
// wrapping does not change the outcome. Any other value, including nil,
// yields Fallback.
func Classify(v any) Result {
	err, ok := v.(error)
	if !ok || err == nil {
		return Fallback
	}

	text := err.Error()
	var ierr *domain.IdentityError
	if errors.As(err, &ierr) {
		text = ierr.Message
	}
	if strings.TrimSpace(text) == "" {
		return Fallback
	}

	folded := fold(text)
	for _, r := range Rules {
		if r.Matches(folded) {
			return Result{Code: r.Code, Key: r.Key, Message: r.Message, Field: r.Field, Kind: r.Kind}
		}
	}

	return Result{
		Code:    CodeUnclassified,
		Key:     Fallback.Key,
		Message: text,
		Kind:    KindError,
	}
}
