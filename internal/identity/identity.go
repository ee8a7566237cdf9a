// Package identity holds the adapters for the external identity service: a
// logging development backend, a GoTrue HTTP client and a fallback used when
// nothing is configured.
package identity

import (
	"context"
	"net/url"
	"strings"

	"github.com/nfrund/signin/internal/domain"
)

// Unavailable rejects every call. It keeps the sign-in page usable (every
// method fails with a notice) when no backend is configured.
type Unavailable struct{}

var _ domain.IdentityService = Unavailable{}

func (Unavailable) SendSignInEmail(context.Context, string, string, string) error {
	return domain.ErrIdentityUnavailable
}

func (Unavailable) SignInWithPassword(context.Context, string, string) error {
	return domain.ErrIdentityUnavailable
}

func (Unavailable) VerifyOneTimeCode(context.Context, string, string) error {
	return domain.ErrIdentityUnavailable
}

func (Unavailable) StartOAuthSignIn(context.Context, domain.Provider, string, string) (string, error) {
	return "", domain.ErrIdentityUnavailable
}

// ResolveTarget turns a redirect target into an absolute URL under baseURL.
// Absolute targets are returned unchanged and an empty target yields baseURL.
func ResolveTarget(baseURL, target string) string {
	if target == "" {
		return baseURL
	}
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(target, "/")
}
