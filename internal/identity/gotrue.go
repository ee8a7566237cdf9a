package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nfrund/signin/internal/domain"
)

// GoTrueService talks to a GoTrue (Supabase Auth) compatible endpoint.
type GoTrueService struct {
	endpoint string
	apiKey   string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

var _ domain.IdentityService = (*GoTrueService)(nil)

// GoTrueOption is a function that configures a GoTrueService.
type GoTrueOption func(*GoTrueService)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) GoTrueOption {
	return func(s *GoTrueService) {
		if c != nil {
			s.client = c
		}
	}
}

// NewGoTrueService creates a client for endpoint (e.g. https://x.supabase.co/auth/v1).
// baseURL is the application's public origin used to absolutize redirect targets.
func NewGoTrueService(endpoint, apiKey, baseURL string, opts ...GoTrueOption) *GoTrueService {
	s := &GoTrueService{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default().With("component", "identity", "provider", "gotrue"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type otpRequest struct {
	Email      string            `json:"email"`
	CreateUser bool              `json:"create_user"`
	Data       map[string]string `json:"data,omitempty"`
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// errorBody covers the error shapes GoTrue has used across versions.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

func (b errorBody) text() string {
	for _, v := range []string{b.ErrorDescription, b.Msg, b.Message, b.ErrorCode, b.Error} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *GoTrueService) SendSignInEmail(ctx context.Context, email, redirectTarget, locale string) error {
	q := url.Values{}
	q.Set("redirect_to", ResolveTarget(s.baseURL, redirectTarget))
	body := otpRequest{Email: email, CreateUser: true}
	if locale != "" {
		body.Data = map[string]string{"locale": locale}
	}
	return s.post(ctx, "otp", "/otp?"+q.Encode(), body)
}

func (s *GoTrueService) SignInWithPassword(ctx context.Context, email, password string) error {
	return s.post(ctx, "token", "/token?grant_type=password", passwordRequest{Email: email, Password: password})
}

func (s *GoTrueService) VerifyOneTimeCode(ctx context.Context, email, code string) error {
	return s.post(ctx, "verify", "/verify", verifyRequest{Type: "email", Email: email, Token: code})
}

// StartOAuthSignIn builds the authorize URL. GoTrue performs the provider
// handshake itself, so no request is made here.
func (s *GoTrueService) StartOAuthSignIn(_ context.Context, provider domain.Provider, redirectTarget, locale string) (string, error) {
	if s.endpoint == "" {
		return "", domain.ErrIdentityUnavailable
	}
	q := url.Values{}
	q.Set("provider", string(provider))
	q.Set("redirect_to", ResolveTarget(s.baseURL, redirectTarget))
	if locale != "" {
		q.Set("locale", locale)
	}
	return s.endpoint + "/authorize?" + q.Encode(), nil
}

func (s *GoTrueService) post(ctx context.Context, op, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	msg := ""
	if json.Unmarshal(raw, &eb) == nil {
		msg = eb.text()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	s.logger.Debug("identity request failed", "op", op, "status", resp.StatusCode)
	return &domain.IdentityError{Op: op, Status: resp.StatusCode, Message: msg}
}
