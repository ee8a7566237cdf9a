// Package launch captures the one-time parameters a sign-in page is opened
// with and derives the redirect targets handed to the identity service.
package launch

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nfrund/signin/internal/domain"
	"golang.org/x/text/language"
)

// Query parameter names read from the entry URL.
const (
	ParamSubscription = "subscription"
	ParamLookupKey    = "lookup_key"
	ParamReferral     = "referral"
	ParamPromoCode    = "promo_code"
	ParamNext         = "next"
)

const (
	DefaultCheckoutPath = "api/stripe/create-checkout-session"
	DefaultLanding      = "/dashboard"
	DefaultLocale       = "en"
)

// Capture builds an AttemptContext from query. A referral in the URL wins and
// is written back to prefs; otherwise the persisted referral is used. prefs
// may be nil. Missing parameters are simply left empty.
func Capture(query url.Values, prefs domain.PreferenceStore, locale string) domain.AttemptContext {
	ac := domain.AttemptContext{
		SubscriptionIntent: query.Get(ParamSubscription) == "true",
		PriceLookupKey:     query.Get(ParamLookupKey),
		PromoCode:          query.Get(ParamPromoCode),
		PostLoginRedirect:  query.Get(ParamNext),
		Locale:             NormalizeLocale(locale),
	}

	if ref := strings.TrimSpace(query.Get(ParamReferral)); ref != "" {
		ac.ReferralCode = ref
		if prefs != nil {
			if err := prefs.Set(domain.PrefReferralCode, ref); err != nil {
				slog.Default().Warn("failed to persist referral code", "error", err)
			}
		}
	} else if prefs != nil {
		if stored, ok := prefs.Get(domain.PrefReferralCode); ok {
			ac.ReferralCode = stored
		}
	}

	return ac
}

// CaptureURL is Capture for a full entry URL or a bare query string.
func CaptureURL(raw string, prefs domain.PreferenceStore, locale string) (domain.AttemptContext, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Capture(nil, prefs, locale), nil
	}

	rawQuery := raw
	switch {
	case strings.HasPrefix(raw, "?"):
		rawQuery = raw[1:]
	case strings.Contains(raw, "?") || !strings.Contains(raw, "="):
		u, err := url.Parse(raw)
		if err != nil {
			return domain.AttemptContext{}, fmt.Errorf("parse entry url: %w", err)
		}
		rawQuery = u.RawQuery
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return domain.AttemptContext{}, fmt.Errorf("parse entry query: %w", err)
	}

	return Capture(query, prefs, locale), nil
}

// NormalizeLocale returns the canonical BCP 47 form of tag, or DefaultLocale
// when tag is empty or malformed.
func NormalizeLocale(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return DefaultLocale
	}
	t, err := language.Parse(tag)
	if err != nil || t == language.Und {
		return DefaultLocale
	}
	return t.String()
}

// Redirects derives destinations from an AttemptContext.
type Redirects struct {
	CheckoutPath   string
	DefaultLanding string
}

// DefaultRedirects uses the stock checkout path and landing page.
func DefaultRedirects() Redirects {
	return Redirects{CheckoutPath: DefaultCheckoutPath, DefaultLanding: DefaultLanding}
}

// Target is the redirect target passed to email and OAuth sign-in. With a
// subscription intent it points at checkout creation, carrying the lookup key,
// referral and promo code; otherwise it is the post-login redirect verbatim.
// An empty result means no explicit target.
func (r Redirects) Target(ac domain.AttemptContext) string {
	if !ac.SubscriptionIntent {
		return ac.PostLoginRedirect
	}

	path := r.CheckoutPath
	if path == "" {
		path = DefaultCheckoutPath
	}

	var params []string
	add := func(k, v string) {
		if v != "" {
			params = append(params, k+"="+url.QueryEscape(v))
		}
	}
	add(ParamLookupKey, ac.PriceLookupKey)
	add(ParamReferral, ac.ReferralCode)
	add(ParamPromoCode, ac.PromoCode)

	if len(params) == 0 {
		return path
	}
	return path + "?" + strings.Join(params, "&")
}

// Landing is where a completed sign-in navigates to.
func (r Redirects) Landing(ac domain.AttemptContext) string {
	if ac.PostLoginRedirect != "" {
		return ac.PostLoginRedirect
	}
	if r.DefaultLanding != "" {
		return r.DefaultLanding
	}
	return DefaultLanding
}
