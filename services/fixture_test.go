package services

import (
	"fmt"
	"testing"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Monday of the week used throughout the tests.
var monday = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	db           *gorm.DB
	clock        *clockwork.FakeClock
	bus          *EventBus
	progression  *ProgressionService
	missions     *MissionService
	achievements *AchievementService
	streaks      *StreakService
	leagues      *LeagueService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(monday)
	log := utils.NopLogger()
	bus := NewEventBus()
	return &fixture{
		db:           db,
		clock:        clock,
		bus:          bus,
		progression:  NewProgressionService(db, clock, log, bus),
		missions:     NewMissionService(db, clock, log, bus),
		achievements: NewAchievementService(db, clock, log, bus),
		streaks:      NewStreakService(db, clock, log, bus),
		leagues:      NewLeagueService(db, clock, log, bus, nil),
	}
}

func (f *fixture) progress(t *testing.T, userID string) models.UserProgress {
	t.Helper()
	var p models.UserProgress
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&p).Error)
	return p
}

func (f *fixture) setTokens(t *testing.T, userID string, tokens int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.UserProgress{}).
		Where("user_id = ?", userID).Update("power_tokens", tokens).Error)
}

func (f *fixture) seedStreak(t *testing.T, userID string, streak int, last string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.StreakState{
		UserID: userID, CurrentStreak: streak, LongestStreak: streak, LastCheckInDate: last,
	}).Error)
}

func day(offset int) time.Time {
	return monday.AddDate(0, 0, offset)
}
