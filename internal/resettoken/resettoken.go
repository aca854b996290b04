package resettoken

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
)

const TokenTTL = time.Hour

// Store issues and redeems single-use password reset tokens.
type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue creates a URL-safe token with 32 bytes of entropy for the user and
// persists it with a one hour expiry.
func (s *Store) Issue(userID uint) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	record := models.PasswordResetToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(TokenTTL),
		Used:      false,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		return "", fmt.Errorf("resettoken: create: %w", err)
	}

	return token, nil
}

// Lookup returns nil without error when the token is unknown.
func (s *Store) Lookup(token string) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	if err := s.DB.Where("token = ?", token).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resettoken: lookup: %w", err)
	}
	return &record, nil
}

// IsUsable holds only for an existing, unused token whose expiry is still in
// the future at the time of the check.
func (s *Store) IsUsable(record *models.PasswordResetToken) bool {
	if record == nil || record.Used {
		return false
	}
	return s.now().Before(record.ExpiresAt)
}

// Consume marks the token used. Call exactly once, after the replacement
// password has passed the strength check.
func (s *Store) Consume(record *models.PasswordResetToken) error {
	if err := s.DB.Model(&models.PasswordResetToken{}).
		Where("id = ?", record.ID).
		Update("used", true).Error; err != nil {
		return fmt.Errorf("resettoken: consume: %w", err)
	}
	record.Used = true
	return nil
}

// ResetPassword swaps in the new hash and clears the lockout state, same as a
// successful login does.
func (s *Store) ResetPassword(userID uint, newHash string) error {
	updates := map[string]interface{}{
		"password_hash": newHash,
		"failed_logins": 0,
		"locked_until":  nil,
	}
	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("resettoken: reset password: %w", err)
	}
	return nil
}
