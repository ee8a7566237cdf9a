package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, "https://app.test", ResolveTarget("https://app.test", ""))
	assert.Equal(t, "https://app.test/dashboard", ResolveTarget("https://app.test/", "/dashboard"))
	assert.Equal(t, "https://app.test/api/x?a=1", ResolveTarget("https://app.test", "api/x?a=1"))
	assert.Equal(t, "https://other.test/y", ResolveTarget("https://app.test", "https://other.test/y"))
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var svc domain.IdentityService = Unavailable{}

	assert.ErrorIs(t, svc.SendSignInEmail(ctx, "a@b.co", "", "en"), domain.ErrIdentityUnavailable)
	assert.ErrorIs(t, svc.SignInWithPassword(ctx, "a@b.co", "secret"), domain.ErrIdentityUnavailable)
	assert.ErrorIs(t, svc.VerifyOneTimeCode(ctx, "a@b.co", "123456"), domain.ErrIdentityUnavailable)
	u, err := svc.StartOAuthSignIn(ctx, domain.ProviderGoogle, "", "en")
	assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
	assert.Empty(t, u)
}

func TestLogService_CodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewLogService("http://localhost:8080")

	require.NoError(t, svc.SendSignInEmail(ctx, "User@Example.com", "/dashboard", "en"))
	code, ok := svc.LastCode("user@example.com")
	require.True(t, ok)
	assert.Len(t, code, 6)

	err := svc.VerifyOneTimeCode(ctx, "user@example.com", "000000x")
	var ie *domain.IdentityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "Token has expired or is invalid", ie.Message)

	require.NoError(t, svc.VerifyOneTimeCode(ctx, "user@example.com", code))

	// Codes are single use.
	assert.Error(t, svc.VerifyOneTimeCode(ctx, "user@example.com", code))
}

func TestLogService_CodeExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewLogService("http://localhost:8080")
	svc.nowF = func() time.Time { return now }

	require.NoError(t, svc.SendSignInEmail(ctx, "a@b.co", "", ""))
	code, ok := svc.LastCode("a@b.co")
	require.True(t, ok)

	now = now.Add(DefaultCodeTTL + time.Second)
	_, ok = svc.LastCode("a@b.co")
	assert.False(t, ok)
	assert.Error(t, svc.VerifyOneTimeCode(ctx, "a@b.co", code))
}

func TestLogService_Password(t *testing.T) {
	ctx := context.Background()
	svc := NewLogService("http://localhost:8080")
	svc.AddAccount("a@b.co", "hunter22")

	require.NoError(t, svc.SignInWithPassword(ctx, "A@B.co", "hunter22"))

	err := svc.SignInWithPassword(ctx, "a@b.co", "wrong!")
	var ie *domain.IdentityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "Invalid login credentials", ie.Message)

	assert.Error(t, svc.SignInWithPassword(ctx, "nobody@b.co", "hunter22"))
}

func TestLogService_OAuth(t *testing.T) {
	svc := NewLogService("http://localhost:8080/")
	raw, err := svc.StartOAuthSignIn(context.Background(), domain.ProviderDiscord, "/dashboard", "de")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/dev/oauth", u.Path)
	assert.Equal(t, "discord", u.Query().Get("provider"))
	assert.Equal(t, "http://localhost:8080/dashboard", u.Query().Get("redirect_to"))
	assert.Equal(t, "de", u.Query().Get("locale"))
}

type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   map[string]any
}

func newGoTrueServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), header: r.Header.Clone()}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGoTrueService_SendSignInEmail(t *testing.T) {
	srv, calls := newGoTrueServer(t, http.StatusOK, `{}`)
	svc := NewGoTrueService(srv.URL+"/", "anon-key", "https://app.test")

	require.NoError(t, svc.SendSignInEmail(context.Background(), "a@b.co", "/dashboard", "fr"))
	require.Len(t, *calls, 1)

	c := (*calls)[0]
	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "/otp", c.path)
	assert.Equal(t, "https://app.test/dashboard", c.query.Get("redirect_to"))
	assert.Equal(t, "anon-key", c.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", c.header.Get("Authorization"))
	assert.Equal(t, "a@b.co", c.body["email"])
	assert.Equal(t, true, c.body["create_user"])
	assert.Equal(t, map[string]any{"locale": "fr"}, c.body["data"])
}

func TestGoTrueService_PasswordAndVerify(t *testing.T) {
	srv, calls := newGoTrueServer(t, http.StatusOK, `{"access_token":"x"}`)
	svc := NewGoTrueService(srv.URL, "", "https://app.test")
	ctx := context.Background()

	require.NoError(t, svc.SignInWithPassword(ctx, "a@b.co", "hunter22"))
	require.NoError(t, svc.VerifyOneTimeCode(ctx, "a@b.co", "123456"))
	require.Len(t, *calls, 2)

	assert.Equal(t, "/token", (*calls)[0].path)
	assert.Equal(t, "password", (*calls)[0].query.Get("grant_type"))
	assert.Equal(t, "hunter22", (*calls)[0].body["password"])
	assert.Empty(t, (*calls)[0].header.Get("apikey"))

	assert.Equal(t, "/verify", (*calls)[1].path)
	assert.Equal(t, "email", (*calls)[1].body["type"])
	assert.Equal(t, "123456", (*calls)[1].body["token"])
}

func TestGoTrueService_ErrorShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{"error_description", 400, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "Invalid login credentials"},
		{"msg", 422, `{"code":422,"msg":"Email not confirmed"}`, "Email not confirmed"},
		{"message", 400, `{"message":"User already registered"}`, "User already registered"},
		{"error_code only", 403, `{"error_code":"otp_expired"}`, "otp_expired"},
		{"plain text", 500, "upstream exploded\n", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGoTrueServer(t, tt.status, tt.reply)
			svc := NewGoTrueService(srv.URL, "k", "https://app.test")

			err := svc.SignInWithPassword(context.Background(), "a@b.co", "hunter22")
			var ie *domain.IdentityError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.status, ie.Status)
			assert.Equal(t, "token", ie.Op)
			assert.Equal(t, tt.want, ie.Message)
		})
	}
}

func TestGoTrueService_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	svc := NewGoTrueService(endpoint, "", "https://app.test")
	err := svc.VerifyOneTimeCode(context.Background(), "a@b.co", "123456")
	require.Error(t, err)
	var ie *domain.IdentityError
	assert.False(t, errors.As(err, &ie))
}

func TestGoTrueService_StartOAuthSignIn(t *testing.T) {
	svc := NewGoTrueService("https://id.test/auth/v1", "k", "https://app.test")
	raw, err := svc.StartOAuthSignIn(context.Background(), domain.ProviderGoogle, "/dashboard", "en")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "id.test", u.Host)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	assert.Equal(t, "google", u.Query().Get("provider"))
	assert.Equal(t, "https://app.test/dashboard", u.Query().Get("redirect_to"))

	_, err = NewGoTrueService("", "", "").StartOAuthSignIn(context.Background(), domain.ProviderGoogle, "", "")
	assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
}

func TestNewIdentityService(t *testing.T) {
	base := func(provider, u string) *config.Config {
		return &config.Config{AppBaseURL: "https://app.test", IdentityProvider: provider, IdentityURL: u}
	}

	svc, err := NewIdentityService(base(config.IdentityLog, ""))
	require.NoError(t, err)
	assert.IsType(t, &LogService{}, svc)

	svc, err = NewIdentityService(base(config.IdentityGoTrue, "https://id.test"))
	require.NoError(t, err)
	assert.IsType(t, &GoTrueService{}, svc)

	_, err = NewIdentityService(base(config.IdentityGoTrue, ""))
	assert.Error(t, err)

	svc, err = NewIdentityService(base(config.IdentityNone, ""))
	require.NoError(t, err)
	assert.Equal(t, Unavailable{}, svc)

	_, err = NewIdentityService(base("carrier-pigeon", ""))
	assert.Error(t, err)
}
