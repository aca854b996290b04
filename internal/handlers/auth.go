package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/events"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/hash"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/lockout"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/mailer"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/password"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/resettoken"
	"github.com/LuSiTao8579/lovejoy-secure-app/internal/session"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Lockout  *lockout.Tracker
	Tokens   *resettoken.Store
	Mailer   *mailer.Mailer
	Producer *events.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// flashRedirect queues a message and sends the browser on; form failures
// come back as a flash on the form page instead of a re-render.
func (h *AuthHandler) flashRedirect(c echo.Context, level, message, target string) error {
	if err := h.Sessions.Flash(c, level, message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) RegisterPage(c echo.Context) error {
	return renderPage(c, h.Sessions, "register.html", nil)
}

func (h *AuthHandler) Register(c echo.Context) error {
	email := normalizeEmail(c.FormValue("email"))
	name := strings.TrimSpace(c.FormValue("name"))
	phone := strings.TrimSpace(c.FormValue("phone"))
	pass := c.FormValue("password")
	confirm := c.FormValue("confirm_password")

	if pass != confirm {
		return h.flashRedirect(c, "danger", "Passwords do not match", "/register")
	}

	if ok, reason := password.CheckStrength(pass); !ok {
		return h.flashRedirect(c, "danger", reason, "/register")
	}

	var existing models.User
	result := h.DB.Where("email = ?", email).First(&existing)
	if result.Error == nil {
		return h.flashRedirect(c, "danger", "This email is already registered", "/register")
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return h.flashRedirect(c, "danger", "An error occurred while creating your account", "/register")
	}

	pwHash, err := hash.HashPassword(pass)
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred while creating your account", "/register")
	}

	user := models.User{
		Email:        email,
		PasswordHash: pwHash,
		Name:         name,
		Phone:        phone,
		Role:         "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return h.flashRedirect(c, "danger", "An error occurred while creating your account", "/register")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_registered",
		"UserID": user.ID,
		"email":  user.Email,
	})

	return h.flashRedirect(c, "success", "Registration successful. Please log in", "/login")
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return renderPage(c, h.Sessions, "login.html", nil)
}

// Login deliberately answers unknown emails and wrong passwords with the
// same message. Only an active lock is disclosed, with the remaining wait.
func (h *AuthHandler) Login(c echo.Context) error {
	email := normalizeEmail(c.FormValue("email"))
	pass := c.FormValue("password")

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return h.flashRedirect(c, "danger", "Invalid email or password", "/login")
	}

	if err := h.Lockout.CheckLocked(&user); err != nil {
		var locked *lockout.LockedError
		if errors.As(err, &locked) {
			msg := fmt.Sprintf("Account locked. Try again in about %d minutes", locked.MinutesLeft())
			return h.flashRedirect(c, "danger", msg, "/login")
		}
		return h.flashRedirect(c, "danger", "Invalid email or password", "/login")
	}

	if !hash.CheckPassword(user.PasswordHash, pass) {
		if err := h.Lockout.RecordFailure(user.ID); err != nil {
			c.Logger().Errorf("record failure error: %v", err)
		}
		return h.flashRedirect(c, "danger", "Invalid email or password", "/login")
	}

	if err := h.Lockout.RecordSuccess(user.ID); err != nil {
		c.Logger().Errorf("record success error: %v", err)
	}
	if err := h.Sessions.StartSession(c, &user); err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/login")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_logged_in",
		"UserID": user.ID,
		"email":  user.Email,
	})

	return h.flashRedirect(c, "success", "Logged in successfully", "/")
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Sessions.EndSession(c); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	return h.flashRedirect(c, "info", "You have been logged out", "/")
}

func (h *AuthHandler) ForgotPasswordPage(c echo.Context) error {
	return renderPage(c, h.Sessions, "forgot_password.html", nil)
}

// ForgotPassword flashes the same message whether or not the email is
// registered, so the form cannot be used to enumerate accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	email := normalizeEmail(c.FormValue("email"))

	var user models.User
	err := h.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		token, err := h.Tokens.Issue(user.ID)
		if err != nil {
			c.Logger().Errorf("issue reset token error: %v", err)
		} else if err := h.Mailer.SendPasswordReset(email, token); err != nil {
			c.Logger().Errorf("send reset mail error: %v", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.Logger().Errorf("forgot password lookup error: %v", err)
	}

	return h.flashRedirect(c, "info", "If an account with that email exists, a reset link has been sent", "/login")
}

func (h *AuthHandler) ResetPasswordPage(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return h.flashRedirect(c, "danger", "Invalid password reset link", "/forgot-password")
	}

	record, err := h.Tokens.Lookup(token)
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/forgot-password")
	}
	if !h.Tokens.IsUsable(record) {
		return h.flashRedirect(c, "danger", "Invalid or expired password reset link", "/forgot-password")
	}

	return renderPage(c, h.Sessions, "reset_password.html", map[string]interface{}{"Token": token})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := c.FormValue("token")
	pass := c.FormValue("password")
	confirm := c.FormValue("confirm_password")

	record, err := h.Tokens.Lookup(token)
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/forgot-password")
	}
	if !h.Tokens.IsUsable(record) {
		return h.flashRedirect(c, "danger", "Invalid or expired password reset link", "/forgot-password")
	}

	if pass != confirm {
		return h.flashRedirect(c, "danger", "Passwords do not match", "/reset-password?token="+token)
	}
	if ok, reason := password.CheckStrength(pass); !ok {
		return h.flashRedirect(c, "danger", reason, "/reset-password?token="+token)
	}

	newHash, err := hash.HashPassword(pass)
	if err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/forgot-password")
	}

	if err := h.Tokens.ResetPassword(record.UserID, newHash); err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/forgot-password")
	}
	if err := h.Tokens.Consume(record); err != nil {
		return h.flashRedirect(c, "danger", "An error occurred, please try again", "/forgot-password")
	}

	h.publish(c, fmt.Sprint(record.UserID), map[string]interface{}{
		"type":   "password_reset",
		"UserID": record.UserID,
	})

	return h.flashRedirect(c, "success", "Your password has been reset. Please log in with your new password", "/login")
}
