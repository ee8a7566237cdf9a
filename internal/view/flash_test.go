package view_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "a-very-secret-key-for-testing-!!"

func setupTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	store := sessions.NewCookieStore([]byte(testSessionSecret))
	sessionMiddleware := session.Middleware(store)

	// Run a dummy handler through the middleware so the context carries the store.
	var c echo.Context
	handler := func(ctx echo.Context) error { c = ctx; return nil }
	_ = sessionMiddleware(handler)(e.NewContext(req, rec))

	return c, rec
}

func TestFlashMessages(t *testing.T) {
	t.Run("Set and Get Success Flash", func(t *testing.T) {
		c, _ := setupTestContext()

		require.NoError(t, view.SetFlashNotice(c, domain.Notice{Level: domain.NoticeSuccess, Title: "Success", Message: "Signed in"}))

		flashes := view.GetFlashData(c)
		assert.Equal(t, []string{"Signed in"}, flashes.Success)
		assert.Empty(t, flashes.Error)
		assert.Empty(t, flashes.Info)

		flashesAfterRead := view.GetFlashData(c)
		assert.True(t, flashesAfterRead.Empty(), "Flashes should be cleared after being read")
	})

	t.Run("Levels are kept apart", func(t *testing.T) {
		c, _ := setupTestContext()

		require.NoError(t, view.SetFlashNotice(c, domain.Notice{Level: domain.NoticeError, Message: "It failed!"}))
		require.NoError(t, view.SetFlashNotice(c, domain.Notice{Level: domain.NoticeInfo, Message: "Check your email"}))

		flashes := view.GetFlashData(c)
		assert.Equal(t, []string{"It failed!"}, flashes.Error)
		assert.Equal(t, []string{"Check your email"}, flashes.Info)
		assert.Empty(t, flashes.Success)
	})

	t.Run("GetFlashData with no flashes set", func(t *testing.T) {
		c, _ := setupTestContext()
		assert.True(t, view.GetFlashData(c).Empty())
	})
}
