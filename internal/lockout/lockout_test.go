package lockout

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/LuSiTao8579/lovejoy-secure-app/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	user := models.User{Email: "lovejoy@example.com", PasswordHash: "x", Role: "user"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func reload(t *testing.T, db *gorm.DB, id uint) *models.User {
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return &user
}

func TestRecordFailureBelowThreshold(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db)
	tracker := &Tracker{DB: db}

	require.NoError(t, tracker.RecordFailure(user.ID))
	require.NoError(t, tracker.RecordFailure(user.ID))

	got := reload(t, db, user.ID)
	assert.Equal(t, 2, got.FailedLogins)
	assert.Nil(t, got.LockedUntil)
	assert.NoError(t, tracker.CheckLocked(got))
}

func TestThirdFailureLocksAccount(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := &Tracker{DB: db, Now: func() time.Time { return now }}

	for i := 0; i < MaxFailedLogins; i++ {
		require.NoError(t, tracker.RecordFailure(user.ID))
	}

	got := reload(t, db, user.ID)
	assert.Equal(t, MaxFailedLogins, got.FailedLogins)
	require.NotNil(t, got.LockedUntil)
	assert.WithinDuration(t, now.Add(LockDuration), *got.LockedUntil, time.Second)

	err := tracker.CheckLocked(got)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 10, locked.MinutesLeft())
}

func TestLockExpiresWithClock(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := &Tracker{DB: db, Now: func() time.Time { return now }}

	for i := 0; i < MaxFailedLogins; i++ {
		require.NoError(t, tracker.RecordFailure(user.ID))
	}
	require.Error(t, tracker.CheckLocked(reload(t, db, user.ID)))

	// advance past the lock; the account is usable but counters stay
	now = now.Add(LockDuration + time.Minute)
	got := reload(t, db, user.ID)
	require.NoError(t, tracker.CheckLocked(got))
	assert.Equal(t, MaxFailedLogins, got.FailedLogins)

	require.NoError(t, tracker.RecordSuccess(user.ID))
	got = reload(t, db, user.ID)
	assert.Equal(t, 0, got.FailedLogins)
	assert.Nil(t, got.LockedUntil)
}

func TestMinutesLeftRoundsUp(t *testing.T) {
	err := &LockedError{RetryAfter: 9*time.Minute + 1*time.Second}
	assert.Equal(t, 10, err.MinutesLeft())

	err = &LockedError{RetryAfter: 30 * time.Second}
	assert.Equal(t, 1, err.MinutesLeft())
}
