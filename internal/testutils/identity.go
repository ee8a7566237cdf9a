package testutils

import (
	"context"
	"sync"

	"github.com/nfrund/signin/internal/domain"
)

// Identity operation names used by ScriptedIdentity.
const (
	OpSendSignInEmail    = "send_sign_in_email"
	OpSignInWithPassword = "sign_in_with_password"
	OpVerifyOneTimeCode  = "verify_one_time_code"
	OpStartOAuthSignIn   = "start_oauth_sign_in"
)

// IdentityCall records a single call made against ScriptedIdentity.
type IdentityCall struct {
	Op             string
	Email          string
	Password       string
	Code           string
	Provider       domain.Provider
	RedirectTarget string
	Locale         string
}

// ScriptedIdentity is a domain.IdentityService whose outcome per operation is
// set up by the test: succeed, fail with an error, panic, or block until the
// test releases it.
type ScriptedIdentity struct {
	mu      sync.Mutex
	calls   []IdentityCall
	errs    map[string]error
	panics  map[string]any
	gates   map[string]chan struct{}
	started chan string

	// OAuthURL is returned by a successful StartOAuthSignIn.
	OAuthURL string
}

// NewScriptedIdentity returns an identity service where every call succeeds.
func NewScriptedIdentity() *ScriptedIdentity {
	return &ScriptedIdentity{
		errs:     make(map[string]error),
		panics:   make(map[string]any),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 64),
		OAuthURL: "https://identity.test/authorize",
	}
}

// FailWith makes op return err until reset with FailWith(op, nil).
func (s *ScriptedIdentity) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// PanicWith makes op panic with v.
func (s *ScriptedIdentity) PanicWith(op string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[op] = v
}

// Hold blocks every call to op until the returned release func is called.
func (s *ScriptedIdentity) Hold(op string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, op)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Started yields the op name each time a call enters the service.
func (s *ScriptedIdentity) Started() <-chan string { return s.started }

// Calls returns a copy of the recorded calls.
func (s *ScriptedIdentity) Calls() []IdentityCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]IdentityCall(nil), s.calls...)
}

// CallCount returns how many times op was called.
func (s *ScriptedIdentity) CallCount(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *ScriptedIdentity) SendSignInEmail(ctx context.Context, email, redirectTarget, locale string) error {
	return s.run(ctx, IdentityCall{Op: OpSendSignInEmail, Email: email, RedirectTarget: redirectTarget, Locale: locale})
}

func (s *ScriptedIdentity) SignInWithPassword(ctx context.Context, email, password string) error {
	return s.run(ctx, IdentityCall{Op: OpSignInWithPassword, Email: email, Password: password})
}

func (s *ScriptedIdentity) VerifyOneTimeCode(ctx context.Context, email, code string) error {
	return s.run(ctx, IdentityCall{Op: OpVerifyOneTimeCode, Email: email, Code: code})
}

func (s *ScriptedIdentity) StartOAuthSignIn(ctx context.Context, provider domain.Provider, redirectTarget, locale string) (string, error) {
	if err := s.run(ctx, IdentityCall{Op: OpStartOAuthSignIn, Provider: provider, RedirectTarget: redirectTarget, Locale: locale}); err != nil {
		return "", err
	}
	return s.OAuthURL + "?provider=" + string(provider), nil
}

func (s *ScriptedIdentity) run(ctx context.Context, call IdentityCall) error {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	gate := s.gates[call.Op]
	err := s.errs[call.Op]
	p, shouldPanic := s.panics[call.Op]
	s.mu.Unlock()

	select {
	case s.started <- call.Op:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if shouldPanic {
		panic(p)
	}
	return err
}
