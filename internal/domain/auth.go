package domain

// Method identifies the sign-in strategy that currently owns the attempt.
// At most one method other than MethodNone is active at any time.
type Method string

const (
	MethodNone      Method = ""
	MethodMagicLink Method = "magic_link"
	MethodPassword  Method = "password"
	MethodDiscord   Method = "discord"
	MethodGoogle    Method = "google"
)

// String returns a printable name; MethodNone renders as "none".
func (m Method) String() string {
	if m == MethodNone {
		return "none"
	}
	return string(m)
}

// Tab is the credential form tab the user last worked with. It is the only
// UI preference that survives between attempts.
type Tab string

const (
	TabMagicLink Tab = "magic"
	TabPassword  Tab = "password"
)

// ParseTab converts a stored or submitted value into a Tab.
// Unknown values fall back to the magic-link tab.
func ParseTab(v string) Tab {
	if Tab(v) == TabPassword {
		return TabPassword
	}
	return TabMagicLink
}

// Provider names an OAuth-style redirect provider.
type Provider string

const (
	ProviderDiscord Provider = "discord"
	ProviderGoogle  Provider = "google"
)

// Method returns the sign-in method that a provider redirect occupies.
func (p Provider) Method() Method {
	switch p {
	case ProviderDiscord:
		return MethodDiscord
	case ProviderGoogle:
		return MethodGoogle
	default:
		return MethodNone
	}
}

// ParseProvider returns the provider for name or ErrUnknownProvider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderDiscord, ProviderGoogle:
		return Provider(name), nil
	default:
		return "", ErrUnknownProvider
	}
}

// Field addresses a credential form input that an error can be attached to.
type Field string

const (
	FieldNone     Field = ""
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldCode     Field = "code"
)

// CredentialForm is the email + optional password form shared by the
// magic-link and password tabs.
type CredentialForm struct {
	Email    string `json:"email" validate:"required,address"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

// CodeForm holds the six digit one-time code typed back by the user.
type CodeForm struct {
	Code string `json:"code" validate:"required,otp"`
}

// FieldError is an inline annotation on a single form field. It lives until
// the user edits that field or submits again.
type FieldError struct {
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// AttemptContext carries the launch parameters captured from the entry URL.
// It is populated once per controller and treated as read-only afterwards.
type AttemptContext struct {
	SubscriptionIntent bool   `json:"subscription_intent"`
	PriceLookupKey     string `json:"price_lookup_key,omitempty"`
	ReferralCode       string `json:"referral_code,omitempty"`
	PromoCode          string `json:"promo_code,omitempty"`
	PostLoginRedirect  string `json:"post_login_redirect,omitempty"`
	Locale             string `json:"locale"`
}
