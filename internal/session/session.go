package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
)

const (
	CookieName = "session"
	TTL        = 7 * 24 * time.Hour

	contextKey = "app_session"
)

type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is the server-side record behind the session cookie. The cookie
// itself only carries the session ID, signed so it cannot be forged.
type Session struct {
	ID        string  `json:"id"`
	UserID    uint    `json:"user_id"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	CSRFToken string  `json:"csrf_token"`
	Flashes   []Flash `json:"flashes,omitempty"`
}

func (s *Session) IsAuthenticated() bool {
	return s.UserID != 0
}

func (s *Session) HasRole(role string) bool {
	return s.IsAuthenticated() && s.Role == role
}

// Store persists session records keyed by ID. Get returns nil without error
// for an unknown or expired ID.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Manager resolves the request's session, creating an anonymous one on
// demand, and owns the cookie signing.
type Manager struct {
	Store  Store
	Secret []byte
	Secure bool
}

// Current returns the request's session, creating and persisting an anonymous
// one when the cookie is missing, tampered with, or points at a session that
// no longer exists server-side.
func (m *Manager) Current(c echo.Context) (*Session, error) {
	if cached, ok := c.Get(contextKey).(*Session); ok && cached != nil {
		return cached, nil
	}

	ctx := c.Request().Context()
	if cookie, err := c.Cookie(CookieName); err == nil {
		if id, err := m.parseCookie(cookie.Value); err == nil {
			s, err := m.Store.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if s != nil {
				c.Set(contextKey, s)
				return s, nil
			}
		}
	}

	s := &Session{ID: uuid.NewString()}
	if err := m.Store.Save(ctx, s); err != nil {
		return nil, err
	}
	if err := m.setCookie(c, s.ID); err != nil {
		return nil, err
	}
	c.Set(contextKey, s)
	return s, nil
}

// CSRFToken returns the session's token, generating it on first use. The
// token stays stable until the session ends.
func (m *Manager) CSRFToken(c echo.Context) (string, error) {
	s, err := m.Current(c)
	if err != nil {
		return "", err
	}
	if s.CSRFToken != "" {
		return s.CSRFToken, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	s.CSRFToken = hex.EncodeToString(buf)
	if err := m.Store.Save(c.Request().Context(), s); err != nil {
		return "", err
	}
	return s.CSRFToken, nil
}

// StartSession attaches the user's identity to the current session. The CSRF
// token carries over unchanged.
func (m *Manager) StartSession(c echo.Context, user *models.User) error {
	s, err := m.Current(c)
	if err != nil {
		return err
	}
	s.UserID = user.ID
	s.Email = user.Email
	s.Role = user.Role
	return m.Store.Save(c.Request().Context(), s)
}

// EndSession deletes the server-side record and expires the cookie. The next
// call to Current issues a fresh anonymous session with a new CSRF token.
func (m *Manager) EndSession(c echo.Context) error {
	s, err := m.Current(c)
	if err != nil {
		return err
	}
	if err := m.Store.Delete(c.Request().Context(), s.ID); err != nil {
		return err
	}
	c.Set(contextKey, nil)
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Flash queues a message for the next rendered page.
func (m *Manager) Flash(c echo.Context, level, message string) error {
	s, err := m.Current(c)
	if err != nil {
		return err
	}
	s.Flashes = append(s.Flashes, Flash{Level: level, Message: message})
	return m.Store.Save(c.Request().Context(), s)
}

// TakeFlashes drains the queue.
func (m *Manager) TakeFlashes(c echo.Context) ([]Flash, error) {
	s, err := m.Current(c)
	if err != nil {
		return nil, err
	}
	if len(s.Flashes) == 0 {
		return nil, nil
	}
	flashes := s.Flashes
	s.Flashes = nil
	if err := m.Store.Save(c.Request().Context(), s); err != nil {
		return nil, err
	}
	return flashes, nil
}

func (m *Manager) setCookie(c echo.Context, id string) error {
	exp := time.Now().Add(TTL)
	claims := jwt.RegisteredClaims{
		ID:        id,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) parseCookie(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid session cookie")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.ID, nil
}
