package lockout

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
)

const (
	MaxFailedLogins = 3
	LockDuration    = 10 * time.Minute
)

// LockedError is returned when a login attempt hits a still-active lock.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in about %d minutes", e.MinutesLeft())
}

// MinutesLeft rounds the remaining wait up to the next whole minute.
func (e *LockedError) MinutesLeft() int {
	mins := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	return mins
}

// Tracker counts failed logins per user and drives the Active/Locked state.
// Now is overridable so tests can move the clock.
type Tracker struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// CheckLocked rejects the attempt while locked_until is in the future. An
// expired lock is treated as active again; the counters are only cleared by
// RecordSuccess.
func (t *Tracker) CheckLocked(user *models.User) error {
	if user.LockedUntil == nil {
		return nil
	}
	if remaining := user.LockedUntil.Sub(t.now()); remaining > 0 {
		return &LockedError{RetryAfter: remaining}
	}
	return nil
}

// RecordFailure increments failed_logins and, once the threshold is reached,
// stamps locked_until. The read-increment-write is not atomic across
// concurrent requests for the same user, so racing logins may under-count;
// tolerated here, a storage-side atomic increment would close it.
func (t *Tracker) RecordFailure(userID uint) error {
	var user models.User
	if err := t.DB.First(&user, userID).Error; err != nil {
		return fmt.Errorf("lockout: load user: %w", err)
	}

	newFailed := user.FailedLogins + 1
	updates := map[string]interface{}{"failed_logins": newFailed}
	if newFailed >= MaxFailedLogins {
		updates["locked_until"] = t.now().Add(LockDuration)
	}

	if err := t.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("lockout: record failure: %w", err)
	}
	return nil
}

// RecordSuccess clears the counter and any lock.
func (t *Tracker) RecordSuccess(userID uint) error {
	updates := map[string]interface{}{"failed_logins": 0, "locked_until": nil}
	if err := t.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("lockout: record success: %w", err)
	}
	return nil
}
