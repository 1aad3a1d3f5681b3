package services

import (
	"context"
	"encoding/json"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PerfectDayBonusXP is paid once per user per day when every required mission is done.
const PerfectDayBonusXP = 15

type MissionService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Log   *utils.Logger
	Bus   *EventBus
}

func NewMissionService(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, bus *EventBus) *MissionService {
	return &MissionService{DB: db, Clock: clock, Log: log, Bus: bus}
}

type CompletionResult struct {
	Completion          models.MissionCompletion `json:"completion"`
	XPEarned            int64                    `json:"xp_earned"`
	Streak              int                      `json:"streak"`
	Multiplier          float64                  `json:"multiplier"`
	PerfectDayBonus     int64                    `json:"perfect_day_bonus"`
	TotalXP             int64                    `json:"total_xp"`
	Level               string                   `json:"level"`
	LeveledUp           bool                     `json:"leveled_up"`
	AchievementsGranted []string                 `json:"achievements_granted"`
	LeagueID            string                   `json:"league_id,omitempty"`
}

// resolveMission checks id against today's schedule and the caller's plan.
func resolveMission(day time.Weekday, id string, premium bool) (models.Mission, error) {
	m, ok := FindMission(day, id)
	if !ok {
		if KnownMission(id) {
			return models.Mission{}, ErrMissionNotScheduled
		}
		return models.Mission{}, ErrMissionNotFound
	}
	if m.IsPremium && !premium {
		return models.Mission{}, ErrPremiumRequired
	}
	return m, nil
}

// CompleteMission records a completion for `today` (already in the user's zone)
// and applies everything that follows from it in a single transaction: XP and
// level, the perfect-day bonus, weekly league XP, and achievements.
// A second completion of the same mission on the same day returns ErrAlreadyCompleted.
func (s *MissionService) CompleteMission(ctx context.Context, ident Identity, missionID string, today time.Time, metadata map[string]interface{}) (*CompletionResult, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	mission, err := resolveMission(today.Weekday(), missionID, ident.Premium)
	if err != nil {
		return nil, err
	}
	day := utils.DayKey(today)
	weekStart := utils.WeekStartKey(today)

	var meta datatypes.JSON
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		meta = datatypes.JSON(raw)
	}

	result := &CompletionResult{AchievementsGranted: []string{}}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProgressTx(tx, ident); err != nil {
			return err
		}
		prog, err := lockProgressTx(tx, ident.UserID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.MissionCompletion{}).
			Where("user_id = ? AND mission_id = ? AND mission_date = ?", ident.UserID, mission.ID, day).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyCompleted
		}

		var state models.StreakState
		if err := tx.Where("user_id = ?", ident.UserID).Limit(1).Find(&state).Error; err != nil {
			return err
		}
		streak := EffectiveStreak(state, day, prog.ShieldArmed)
		xp := XPForMission(mission.BaseXP, streak)

		completion := models.MissionCompletion{
			UserID:      ident.UserID,
			MissionID:   mission.ID,
			MissionDate: day,
			MissionType: mission.Type,
			BaseXP:      mission.BaseXP,
			XPEarned:    xp,
			Multiplier:  StreakMultiplier(streak),
			Metadata:    meta,
		}
		// the unique index is the real guard against a concurrent double submit
		if err := tx.Create(&completion).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyCompleted
			}
			return err
		}

		// league tier comes from the XP held before this completion
		league, _, err := ensureMembershipTx(tx, ident.UserID, prog.TotalXP, weekStart)
		if err != nil {
			return err
		}

		updated, err := awardXPTx(tx, s.Clock, ident.UserID, xp)
		if err != nil {
			return err
		}

		bonus, err := perfectDayTx(tx, ident.UserID, mission.ID, today)
		if err != nil {
			return err
		}
		if bonus > 0 {
			if updated, err = awardXPTx(tx, s.Clock, ident.UserID, bonus); err != nil {
				return err
			}
		}

		if _, err := addWeeklyXPTx(tx, ident.UserID, xp+bonus, weekStart); err != nil {
			return err
		}

		counts, err := countsByTypeTx(tx, ident.UserID)
		if err != nil {
			return err
		}
		granted, err := checkAndGrantTx(tx, ident.UserID, counts, streak)
		if err != nil {
			return err
		}

		result.Completion = completion
		result.XPEarned = xp
		result.Streak = streak
		result.Multiplier = completion.Multiplier
		result.PerfectDayBonus = bonus
		result.TotalXP = updated.TotalXP
		result.Level = updated.CurrentLevel
		result.LeveledUp = updated.CurrentLevel != prog.CurrentLevel
		result.LeagueID = league.ID
		if granted != nil {
			result.AchievementsGranted = granted
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("complete mission", err)
	}

	s.Log.Info("[MISSION] completed", "user_id", ident.UserID, "mission", mission.ID, "day", day,
		"xp", result.XPEarned, "bonus", result.PerfectDayBonus, "total_xp", result.TotalXP)
	s.Bus.Publish(Event{Kind: EventXP, UserID: ident.UserID, At: s.Clock.Now(), Data: map[string]interface{}{
		"mission_id":        mission.ID,
		"xp_earned":         result.XPEarned,
		"perfect_day_bonus": result.PerfectDayBonus,
		"total_xp":          result.TotalXP,
		"level":             result.Level,
		"leveled_up":        result.LeveledUp,
	}})
	announceAchievements(s.Log, s.Bus, s.Clock, ident.UserID, mission.Type, result.AchievementsGranted)
	return result, nil
}

// perfectDayTx pays the bonus if missionID was required and today's completions
// now cover every required mission. The DailyBonus row makes it once per day.
func perfectDayTx(tx *gorm.DB, userID, missionID string, today time.Time) (int64, error) {
	required := RequiredIDs(today.Weekday())
	if !contains(required, missionID) {
		return 0, nil
	}
	day := utils.DayKey(today)

	var done []string
	if err := tx.Model(&models.MissionCompletion{}).
		Where("user_id = ? AND mission_date = ?", userID, day).
		Pluck("mission_id", &done).Error; err != nil {
		return 0, err
	}
	for _, id := range required {
		if !contains(done, id) {
			return 0, nil
		}
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DailyBonus{UserID: userID, BonusDate: day, XPEarned: PerfectDayBonusXP})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return PerfectDayBonusXP, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type MissionStatus struct {
	models.Mission
	Completed bool  `json:"completed"`
	XPEarned  int64 `json:"xp_earned"`
	// XPIfCompletedNow is the payout at the current multiplier.
	XPIfCompletedNow int64 `json:"xp_if_completed_now"`
}

type TodayBoard struct {
	Date            string          `json:"date"`
	Weekday         string          `json:"weekday"`
	Required        []MissionStatus `json:"required_missions"`
	Bonus           []MissionStatus `json:"bonus_missions"`
	RequiredDone    int             `json:"required_done"`
	PerfectDay      bool            `json:"perfect_day"`
	PerfectDayBonus int64           `json:"perfect_day_bonus"`
	Streak          int             `json:"streak"`
	Multiplier      float64         `json:"multiplier"`
	XPEarnedToday   int64           `json:"xp_earned_today"`
}

// TodayBoard is the read side of the ledger for one day.
func (s *MissionService) TodayBoard(ctx context.Context, ident Identity, today time.Time) (*TodayBoard, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	day := utils.DayKey(today)

	var completions []models.MissionCompletion
	if err := db.Where("user_id = ? AND mission_date = ?", ident.UserID, day).Find(&completions).Error; err != nil {
		return nil, storageErr("list completions", err)
	}
	earned := make(map[string]int64, len(completions))
	for _, c := range completions {
		earned[c.MissionID] = c.XPEarned
	}

	var bonus models.DailyBonus
	if err := db.Where("user_id = ? AND bonus_date = ?", ident.UserID, day).Limit(1).Find(&bonus).Error; err != nil {
		return nil, storageErr("read daily bonus", err)
	}

	var prog models.UserProgress
	if err := db.Where("user_id = ?", ident.UserID).Limit(1).Find(&prog).Error; err != nil {
		return nil, storageErr("read progress", err)
	}
	var state models.StreakState
	if err := db.Where("user_id = ?", ident.UserID).Limit(1).Find(&state).Error; err != nil {
		return nil, storageErr("read streak", err)
	}
	streak := EffectiveStreak(state, day, prog.ShieldArmed)

	board := &TodayBoard{
		Date:            day,
		Weekday:         today.Weekday().String(),
		PerfectDay:      bonus.ID != "",
		PerfectDayBonus: bonus.XPEarned,
		Streak:          streak,
		Multiplier:      StreakMultiplier(streak),
		XPEarnedToday:   bonus.XPEarned,
	}
	status := func(list []models.Mission) []MissionStatus {
		out := make([]MissionStatus, len(list))
		for i, m := range list {
			xp, done := earned[m.ID]
			out[i] = MissionStatus{Mission: m, Completed: done, XPEarned: xp, XPIfCompletedNow: XPForMission(m.BaseXP, streak)}
		}
		return out
	}

	schedule := MissionsFor(today.Weekday(), ident.Premium)
	board.Required = status(schedule.Required)
	board.Bonus = status(schedule.Bonus)
	for _, m := range board.Required {
		if m.Completed {
			board.RequiredDone++
		}
	}
	for _, c := range completions {
		board.XPEarnedToday += c.XPEarned
	}
	return board, nil
}
