package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"daily-challenge-service/middleware"
	"daily-challenge-service/models"
	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
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

	// Monday
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC))
	log := utils.NopLogger()
	bus := services.NewEventBus()

	progression := services.NewProgressionService(db, clock, log, bus)
	missions := services.NewMissionService(db, clock, log, bus)
	achievements := services.NewAchievementService(db, clock, log, bus)
	streaks := services.NewStreakService(db, clock, log, bus)
	leagues := services.NewLeagueService(db, clock, log, bus, nil)
	rollover := &services.WeeklyRollover{Leagues: leagues, Streaks: streaks, Clock: clock, Log: log}

	app := fiber.New()
	env := RouteEnv{Clock: clock, DefaultTimezone: "UTC", Log: log}
	secured := app.Group("/s", middleware.UserContextMiddleware(log))
	SetupMissionRoutes(secured, env, missions)
	SetupStreakRoutes(secured, env, streaks)
	SetupLeagueRoutes(secured, env, progression, leagues)
	SetupProgressionRoutes(secured, env, progression, achievements)
	SetupAdminRoutes(secured, env, progression, streaks, rollover)
	return &testApp{app: app, db: db}
}

func (a *testApp) do(t *testing.T, method, path, userID, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, http.MethodGet, "/s/missions/today", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-User-ID")
}

func TestCompleteMission_CreatedThenAlreadyCompleted(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodPost, "/s/missions/hero-small-win/complete", "u1", `{"metadata":{"note":"done"}}`)
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 25, body["xp_earned"])
	assert.EqualValues(t, 25, body["total_xp"])

	status, body = a.do(t, http.MethodPost, "/s/missions/hero-small-win/complete", "u1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["already_completed"])

	var n int64
	a.db.Model(&models.MissionCompletion{}).Where("user_id = ?", "u1").Count(&n)
	assert.Equal(t, int64(1), n)

	status, body = a.do(t, http.MethodGet, "/s/missions/today", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2026-10-12", body["date"])
	assert.EqualValues(t, 1, body["required_done"])
}

func TestCompleteMission_Errors(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(t, http.MethodPost, "/s/missions/nope/complete", "u1", "")
	assert.Equal(t, http.StatusNotFound, status)

	// on the catalog, but not on Monday
	status, _ = a.do(t, http.MethodPost, "/s/missions/scripts-say-no/complete", "u1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = a.do(t, http.MethodPost, "/s/missions/roleplay-hard-talk/complete", "u1", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(t, http.MethodPost, "/s/missions/roleplay-hard-talk/complete", "u2", "",
		"X-User-Premium", "true")
	assert.Equal(t, http.StatusCreated, status)
}

func TestStreakRoutes(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(t, http.MethodPost, "/s/streak/check-in", "u1", `{"mood":9}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := a.do(t, http.MethodPost, "/s/streak/check-in", "u1", `{"mood":4,"note":"ok"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "started", body["outcome"])

	status, _ = a.do(t, http.MethodPost, "/s/streak/wager", "u1", `{"seeds":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = a.do(t, http.MethodPost, "/s/streak/shield", "u1", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(t, http.MethodPost, "/s/streak/shield", "u1", "")
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.do(t, http.MethodGet, "/s/streak", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["effective_streak"])
}

func TestProgressAndLeague(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodGet, "/s/user/progress", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["xp"])
	assert.Equal(t, "explorer", body["level"])
	assert.Equal(t, "Explorer", body["level_name"])
	assert.EqualValues(t, 500, body["xp_to_next_level"])

	status, body = a.do(t, http.MethodGet, "/s/league/me", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["my_rank"])
	league := body["league"].(map[string]interface{})
	assert.Equal(t, "bronze", league["tier"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	a := newTestApp(t)
	a.do(t, http.MethodGet, "/s/user/progress", "u1", "")

	status, _ := a.do(t, http.MethodPost, "/s/admin/xp/grant", "ops", `{"user_id":"u1","xp":600}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := a.do(t, http.MethodPost, "/s/admin/xp/grant", "ops", `{"user_id":"u1","xp":600}`,
		"X-User-Roles", "support, admin")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 600, body["total_xp"])
	assert.Equal(t, "seeker", body["level"])

	status, _ = a.do(t, http.MethodPost, "/s/admin/xp/grant", "ops", `{"user_id":"ghost","xp":10}`,
		"X-User-Roles", "admin")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/s/admin/wager/resolve", "ops", `{"user_id":"u1","won":true}`,
		"X-User-Roles", "admin")
	assert.Equal(t, http.StatusConflict, status)
}
