package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/signin/internal/domain"
)

// DefaultCodeTTL is how long a logged one-time code stays valid.
const DefaultCodeTTL = 10 * time.Minute

type issuedCode struct {
	code      string
	expiresAt time.Time
}

// LogService is a development backend. Codes are written to the log instead
// of being mailed, passwords are checked against an in-memory account list and
// OAuth redirects point straight back at the application.
type LogService struct {
	mu       sync.RWMutex
	baseURL  string
	accounts map[string]string
	codes    map[string]issuedCode
	ttl      time.Duration
	nowF     func() time.Time
	logger   *slog.Logger
}

var _ domain.IdentityService = (*LogService)(nil)

// NewLogService returns a LogService whose OAuth redirects are built on baseURL.
func NewLogService(baseURL string) *LogService {
	return &LogService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		accounts: make(map[string]string),
		codes:    make(map[string]issuedCode),
		ttl:      DefaultCodeTTL,
		nowF:     time.Now,
		logger:   slog.Default().With("component", "identity", "provider", "log"),
	}
}

// AddAccount registers an email and password for SignInWithPassword.
func (s *LogService) AddAccount(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = password
}

func (s *LogService) SendSignInEmail(_ context.Context, email, redirectTarget, locale string) error {
	code, err := randomCode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.codes[strings.ToLower(email)] = issuedCode{code: code, expiresAt: s.nowF().Add(s.ttl)}
	s.mu.Unlock()

	s.logger.Info("--- Sign-in Code (Logged) ---",
		"to", email,
		"code", code,
		"redirect_to", ResolveTarget(s.baseURL, redirectTarget),
		"locale", locale,
	)
	return nil
}

func (s *LogService) SignInWithPassword(_ context.Context, email, password string) error {
	s.mu.RLock()
	stored, ok := s.accounts[strings.ToLower(email)]
	s.mu.RUnlock()

	if !ok || stored != password {
		return &domain.IdentityError{Op: "token", Status: 400, Message: "Invalid login credentials"}
	}
	s.logger.Info("password sign-in accepted", "email", email)
	return nil
}

func (s *LogService) VerifyOneTimeCode(_ context.Context, email, code string) error {
	key := strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.codes[key]
	if !ok || issued.code != code || s.nowF().After(issued.expiresAt) {
		return &domain.IdentityError{Op: "verify", Status: 403, Message: "Token has expired or is invalid"}
	}
	delete(s.codes, key)
	return nil
}

func (s *LogService) StartOAuthSignIn(_ context.Context, provider domain.Provider, redirectTarget, locale string) (string, error) {
	q := url.Values{}
	q.Set("provider", string(provider))
	q.Set("redirect_to", ResolveTarget(s.baseURL, redirectTarget))
	if locale != "" {
		q.Set("locale", locale)
	}
	u := s.baseURL + "/auth/dev/oauth?" + q.Encode()
	s.logger.Info("oauth redirect issued", "provider", provider, "url", u)
	return u, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// LastCode returns the unexpired code issued for email, if any.
func (s *LogService) LastCode(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issued, ok := s.codes[strings.ToLower(email)]
	if !ok || s.nowF().After(issued.expiresAt) {
		return "", false
	}
	return issued.code, true
}
