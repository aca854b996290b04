package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
)

// PageHandler serves the static pages.
type PageHandler struct {
	Sessions *session.Manager
}

func (h *PageHandler) Index(c echo.Context) error {
	return renderPage(c, h.Sessions, "index.html", nil)
}

// renderPage executes a template with the fields every page needs: the
// session's auth state, the drained flash queue, and the CSRF token for
// embedded forms.
func renderPage(c echo.Context, sessions *session.Manager, name string, extra map[string]interface{}) error {
	s, err := sessions.Current(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	flashes, err := sessions.TakeFlashes(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	token, err := sessions.CSRFToken(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	data := map[string]interface{}{
		"LoggedIn":  s.IsAuthenticated(),
		"IsAdmin":   s.HasRole("admin"),
		"Email":     s.Email,
		"Flashes":   flashes,
		"CSRFToken": token,
	}
	for k, v := range extra {
		data[k] = v
	}

	return c.Render(http.StatusOK, name, data)
}
