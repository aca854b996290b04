package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session/sessiontest"
)

func newGuard() *Guard {
	return &Guard{Sessions: &session.Manager{
		Store:  sessiontest.NewMemStore(),
		Secret: []byte("test-session-secret"),
	}}
}

func newContext(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/request-eval", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func TestRequireLoginRedirectsAnonymous(t *testing.T) {
	e := echo.New()
	g := newGuard()
	c, rec := newContext(e)

	var called bool
	require.NoError(t, g.RequireLogin(okHandler(&called))(c))
	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireLoginPassesAuthenticated(t *testing.T) {
	e := echo.New()
	g := newGuard()
	c, _ := newContext(e)

	require.NoError(t, g.Sessions.StartSession(c, &models.User{ID: 1, Email: "u@example.com", Role: "user"}))

	var called bool
	require.NoError(t, g.RequireLogin(okHandler(&called))(c))
	assert.True(t, called)
}

func TestRequireAdminRejectsUserRole(t *testing.T) {
	e := echo.New()
	g := newGuard()
	c, rec := newContext(e)

	require.NoError(t, g.Sessions.StartSession(c, &models.User{ID: 1, Email: "u@example.com", Role: "user"}))

	var called bool
	require.NoError(t, g.RequireAdmin(okHandler(&called))(c))
	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRequireAdminPassesAdmin(t *testing.T) {
	e := echo.New()
	g := newGuard()
	c, _ := newContext(e)

	require.NoError(t, g.Sessions.StartSession(c, &models.User{ID: 1, Email: "a@example.com", Role: "admin"}))

	var called bool
	require.NoError(t, g.RequireAdmin(okHandler(&called))(c))
	assert.True(t, called)
}
