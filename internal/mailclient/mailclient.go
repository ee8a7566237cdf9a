// Package mailclient picks the best place to read a just-sent sign-in code:
// the provider's webmail for well known domains, or a mailto link.
package mailclient

import (
	"strings"
)

// Kind tells the caller how to dispatch an Action.
type Kind string

const (
	// KindWebmail opens URL in a new window.
	KindWebmail Kind = "webmail"
	// KindMailto hands URL to the system mail handler in place.
	KindMailto Kind = "mailto"
)

// Action is the resolved target for an email address.
type Action struct {
	Kind     Kind   `json:"kind"`
	URL      string `json:"url"`
	Provider string `json:"provider,omitempty"`
}

type webmail struct {
	provider string
	url      string
	domains  []string
}

// Providers are checked in order; a domain matches when it contains any of
// the listed fragments.
var providers = []webmail{
	{"gmail", "https://mail.google.com", []string{"gmail.com"}},
	{"outlook", "https://outlook.live.com", []string{"outlook.com", "hotmail.com", "live.com", "msn.com", "office365.com"}},
	{"proton", "https://mail.proton.me", []string{"proton.me", "protonmail.com", "pm.me"}},
	{"icloud", "https://www.icloud.com/mail", []string{"icloud.com", "me.com", "mac.com"}},
	{"yahoo", "https://mail.yahoo.com", []string{"yahoo.com"}},
	{"aol", "https://mail.aol.com", []string{"aol.com"}},
	{"zoho", "https://mail.zoho.com", []string{"zoho.com"}},
}

// Resolve maps email to an Action. It has no side effects.
func Resolve(email string) Action {
	email = strings.TrimSpace(email)
	if _, domain, ok := strings.Cut(email, "@"); ok {
		domain = strings.ToLower(domain)
		for _, p := range providers {
			for _, d := range p.domains {
				if strings.Contains(domain, d) {
					return Action{Kind: KindWebmail, URL: p.url, Provider: p.provider}
				}
			}
		}
	}
	return Action{Kind: KindMailto, URL: "mailto:" + email}
}
