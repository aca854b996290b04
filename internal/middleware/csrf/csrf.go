package csrf

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
)

type Config struct {
	HeaderName string
	FormField  string

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		HeaderName: "X-CSRF-Token",
		FormField:  "csrf_token",
	}
}

// Middleware rejects mutating requests whose submitted token does not match
// the session's token. The rejection is a hard 403, the handler never runs.
// Safe methods pass straight through after the token is ensured, so GET pages
// can embed it in their forms.
func Middleware(m *session.Manager, cfg Config) echo.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.FormField == "" {
		cfg.FormField = def.FormField
	}

	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if _, ok := skip[req.URL.Path]; ok {
				return next(c)
			}

			token, err := m.CSRFToken(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve CSRF token")
			}

			method := strings.ToUpper(req.Method)
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return next(c)
			}

			provided := req.Header.Get(cfg.HeaderName)
			if provided == "" {
				// echo parses urlencoded and multipart bodies alike
				provided = c.FormValue(cfg.FormField)
			}
			if !secureCompare(token, provided) {
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}

			return next(c)
		}
	}
}

func secureCompare(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
