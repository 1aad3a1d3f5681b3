package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForXP_Bands(t *testing.T) {
	cases := map[int64]string{
		-10:   "explorer",
		0:     "explorer",
		499:   "explorer",
		500:   "seeker",
		1499:  "seeker",
		1500:  "pathfinder",
		3000:  "guardian",
		5999:  "guardian",
		6000:  "sage",
		9999:  "sage",
		10000: "luminary",
		1e9:   "luminary",
	}
	for xp, want := range cases {
		assert.Equal(t, want, LevelForXP(xp).Name, "xp=%d", xp)
	}
}

func TestLevelForXP_TotalAndMonotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 12000; xp += 7 {
		lvl := LevelForXP(xp)
		assert.GreaterOrEqual(t, lvl.Rank, prev, "xp=%d", xp)
		assert.True(t, xp >= lvl.MinXP && xp <= lvl.MaxXP, "xp=%d outside %s", xp, lvl.Name)
		prev = lvl.Rank
	}
}

func TestLevelDisplayAndXPToNext(t *testing.T) {
	lvl := LevelForXP(120)
	assert.Equal(t, "Explorer", lvl.DisplayName())
	assert.Equal(t, int64(380), lvl.XPToNext(120))
	assert.Equal(t, int64(0), LevelForXP(20000).XPToNext(20000))
}

func TestStreakMultiplier_InclusiveThresholds(t *testing.T) {
	cases := map[int]float64{0: 1.0, 2: 1.0, 3: 1.10, 6: 1.10, 7: 1.20, 20: 1.20, 21: 1.30, 100: 1.30}
	for streak, want := range cases {
		assert.InDelta(t, want, StreakMultiplier(streak), 1e-9, "streak=%d", streak)
	}
}

func TestXPForMission_Floors(t *testing.T) {
	assert.Equal(t, int64(24), XPForMission(20, 7))
	assert.Equal(t, int64(27), XPForMission(23, 7)) // 27.6, not 28
	assert.Equal(t, int64(30), XPForMission(25, 7))
	assert.Equal(t, int64(32), XPForMission(25, 21)) // 32.5
	assert.Equal(t, int64(11), XPForMission(10, 3))
	assert.Equal(t, int64(20), XPForMission(20, 0))
	assert.Equal(t, int64(0), XPForMission(0, 30))
}

func TestEnsureProgressRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.progression.EnsureProgressRecord(ctx, Identity{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	p, err := f.progression.EnsureProgressRecord(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.TotalXP)
	assert.Equal(t, "explorer", p.CurrentLevel)
	assert.Equal(t, FreeRescueAllowance, p.StreakRescuesAvailable)

	again, err := f.progression.EnsureProgressRecord(ctx, Identity{UserID: "u1", Premium: true, Timezone: "Europe/Paris"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.True(t, again.IsPremium)
	assert.Equal(t, "Europe/Paris", f.progress(t, "u1").Timezone)

	var n int64
	f.db.Table("user_progresses").Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestAwardXP_LevelsUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.progression.EnsureProgressRecord(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)

	events, cancel := f.bus.Subscribe("u1", 4)
	defer cancel()

	p, err := f.progression.AwardXP(ctx, "u1", 600, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(600), p.TotalXP)
	assert.Equal(t, "seeker", p.CurrentLevel)
	require.NotNil(t, p.LastLevelUpAt)

	e := <-events
	assert.Equal(t, EventXP, e.Kind)

	_, err = f.progression.AwardXP(ctx, "u1", 0, "noop")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.progression.AwardXP(ctx, "ghost", 10, "admin")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
