package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
)

// Guard gates routes on the session's authentication state and role.
type Guard struct {
	Sessions *session.Manager
}

func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := g.Sessions.Current(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "session error")
		}
		if !s.IsAuthenticated() {
			if err := g.Sessions.Flash(c, "warning", "Please log in first"); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session error")
			}
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return next(c)
	}
}

func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := g.Sessions.Current(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "session error")
		}
		if !s.HasRole("admin") {
			if err := g.Sessions.Flash(c, "danger", "Admin access only"); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session error")
			}
			return c.Redirect(http.StatusSeeOther, "/")
		}
		return next(c)
	}
}
