package services

import (
	"context"
	"testing"

	"daily-challenge-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteMission_PerfectDayEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := Identity{UserID: "u1"}

	// Monday requires calm(20), selfcare(20), hero(25).
	ids := RequiredIDs(monday.Weekday())
	require.Len(t, ids, 3)

	var bonuses int64
	var last *CompletionResult
	for _, id := range ids {
		res, err := f.missions.CompleteMission(ctx, u, id, monday, nil)
		require.NoError(t, err)
		bonuses += res.PerfectDayBonus
		last = res
	}

	assert.Equal(t, int64(PerfectDayBonusXP), bonuses)
	assert.Equal(t, int64(80), last.TotalXP)
	assert.Equal(t, "explorer", last.Level)

	p := f.progress(t, "u1")
	assert.Equal(t, int64(80), p.TotalXP)
	assert.Equal(t, "explorer", p.CurrentLevel)

	// re-submitting the last required mission is rejected and pays nothing
	_, err := f.missions.CompleteMission(ctx, u, ids[2], monday, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, int64(80), f.progress(t, "u1").TotalXP)

	var n int64
	f.db.Model(&models.DailyBonus{}).Where("user_id = ?", "u1").Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestCompleteMission_PerfectDayAnyOrder(t *testing.T) {
	f := newFixture(t)
	ids := RequiredIDs(monday.Weekday())
	order := []string{ids[2], ids[0], ids[1]}

	var bonuses []int64
	for _, id := range order {
		res, err := f.missions.CompleteMission(context.Background(), Identity{UserID: "u1"}, id, monday, nil)
		require.NoError(t, err)
		bonuses = append(bonuses, res.PerfectDayBonus)
	}
	assert.Equal(t, []int64{0, 0, PerfectDayBonusXP}, bonuses)
}

func TestCompleteMission_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := Identity{UserID: "u1"}

	first, err := f.missions.CompleteMission(ctx, u, "hero-small-win", monday, map[string]interface{}{"source": "app"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), first.XPEarned)
	assert.JSONEq(t, `{"source":"app"}`, string(first.Completion.Metadata))

	_, err = f.missions.CompleteMission(ctx, u, "hero-small-win", monday, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	var n int64
	f.db.Model(&models.MissionCompletion{}).Where("user_id = ?", "u1").Count(&n)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(25), f.progress(t, "u1").TotalXP)

	// same mission on another day is a new completion (hero-small-win is also on Saturday)
	_, err = f.missions.CompleteMission(ctx, u, "hero-small-win", day(5), nil)
	require.NoError(t, err)
}

func TestCompleteMission_UniqueIndexGuardsDoubleCredit(t *testing.T) {
	db := newTestDB(t)
	row := models.MissionCompletion{UserID: "u1", MissionID: "m", MissionDate: "2026-10-12", MissionType: models.MissionHero, BaseXP: 25, XPEarned: 25}
	require.NoError(t, db.Create(&row).Error)

	dup := row
	dup.ID = ""
	err := db.Create(&dup).Error
	assert.True(t, isDuplicateKey(err), "got %v", err)
}

func TestCompleteMission_AppliesStreakMultiplier(t *testing.T) {
	f := newFixture(t)
	f.seedStreak(t, "u1", 7, "2026-10-11")

	res, err := f.missions.CompleteMission(context.Background(), Identity{UserID: "u1"}, "hero-small-win", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(30), res.XPEarned)
	assert.InDelta(t, 1.2, res.Multiplier, 1e-9)
}

func TestCompleteMission_BrokenStreakEarnsBaseXP(t *testing.T) {
	f := newFixture(t)
	f.seedStreak(t, "u1", 21, "2026-10-08")

	res, err := f.missions.CompleteMission(context.Background(), Identity{UserID: "u1"}, "hero-small-win", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Streak)
	assert.Equal(t, int64(25), res.XPEarned)
}

func TestCompleteMission_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.missions.CompleteMission(ctx, Identity{}, "hero-small-win", monday, nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.missions.CompleteMission(ctx, Identity{UserID: "u1"}, "does-not-exist", monday, nil)
	assert.ErrorIs(t, err, ErrMissionNotFound)

	_, err = f.missions.CompleteMission(ctx, Identity{UserID: "u1"}, "scripts-say-no", monday, nil)
	assert.ErrorIs(t, err, ErrMissionNotScheduled)

	_, err = f.missions.CompleteMission(ctx, Identity{UserID: "u1"}, "roleplay-hard-talk", monday, nil)
	assert.ErrorIs(t, err, ErrPremiumRequired)

	res, err := f.missions.CompleteMission(ctx, Identity{UserID: "p1", Premium: true}, "roleplay-hard-talk", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.XPEarned)
	assert.Zero(t, res.PerfectDayBonus)
}

func TestCompleteMission_FeedsLeagueAndAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events, cancel := f.bus.Subscribe("u1", 8)
	defer cancel()

	res, err := f.missions.CompleteMission(ctx, Identity{UserID: "u1"}, "hero-small-win", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_hero"}, res.AchievementsGranted)
	assert.NotEmpty(t, res.LeagueID)
	assert.Equal(t, int64(TokensPerAchievement), f.progress(t, "u1").PowerTokens)

	var member models.LeagueMember
	require.NoError(t, f.db.Where("user_id = ? AND week_start = ?", "u1", "2026-10-12").First(&member).Error)
	assert.Equal(t, int64(25), member.XPEarnedThisWeek)

	var kinds []EventKind
	for i := 0; i < 2; i++ {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.ElementsMatch(t, []EventKind{EventXP, EventAchievement}, kinds)
}

func TestTodayBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := Identity{UserID: "u1"}

	_, err := f.missions.CompleteMission(ctx, u, "hero-small-win", monday, nil)
	require.NoError(t, err)

	board, err := f.missions.TodayBoard(ctx, u, monday)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", board.Date)
	assert.Equal(t, "Monday", board.Weekday)
	assert.Len(t, board.Required, 3)
	assert.Empty(t, board.Bonus)
	assert.Equal(t, 1, board.RequiredDone)
	assert.False(t, board.PerfectDay)
	assert.Equal(t, int64(25), board.XPEarnedToday)

	for _, m := range board.Required {
		assert.Equal(t, m.ID == "hero-small-win", m.Completed, m.ID)
	}

	premium, err := f.missions.TodayBoard(ctx, Identity{UserID: "p1", Premium: true}, monday)
	require.NoError(t, err)
	assert.Len(t, premium.Bonus, 2)
}
