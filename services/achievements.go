package services

import (
	"context"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokensPerAchievement is paid once per granted achievement.
const TokensPerAchievement = 1

type AchievementService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Log   *utils.Logger
	Bus   *EventBus
}

func NewAchievementService(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, bus *EventBus) *AchievementService {
	return &AchievementService{DB: db, Clock: clock, Log: log, Bus: bus}
}

// AchievementStatus is an achievement plus whether (and when) the user unlocked it.
type AchievementStatus struct {
	models.Achievement
	Unlocked  bool       `json:"unlocked"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
	Progress  int64      `json:"progress"`
}

// CheckAndGrant evaluates every achievement for the user and grants the crossed ones.
// missionType is the mission that triggered the check ("" for check-ins); all
// achievements are evaluated regardless, since streak ones can cross on any activity.
func (s *AchievementService) CheckAndGrant(ctx context.Context, userID string, missionType models.MissionType, counts map[string]int64, streak int) ([]string, error) {
	var granted []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		granted, err = checkAndGrantTx(tx, userID, counts, streak)
		return err
	})
	if err != nil {
		return nil, storageErr("grant achievements", err)
	}
	announceAchievements(s.Log, s.Bus, s.Clock, userID, missionType, granted)
	return granted, nil
}

// announceAchievements runs after commit, never inside the transaction.
func announceAchievements(log *utils.Logger, bus *EventBus, clock clockwork.Clock, userID string, trigger models.MissionType, granted []string) {
	for _, id := range granted {
		log.Info("[ACHIEVEMENT] granted", "user_id", userID, "achievement", id, "trigger", string(trigger))
		bus.Publish(Event{Kind: EventAchievement, UserID: userID, At: clock.Now(),
			Data: map[string]interface{}{"achievement_id": id, "tokens_awarded": TokensPerAchievement}})
	}
}

// checkAndGrantTx must run inside the caller's transaction so it sees post-completion counts.
func checkAndGrantTx(tx *gorm.DB, userID string, counts map[string]int64, streak int) ([]string, error) {
	var owned []string
	if err := tx.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &owned).Error; err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(owned))
	for _, id := range owned {
		have[id] = true
	}

	var granted []string
	for _, a := range models.Achievements {
		if have[a.ID] || !meetsRequirement(a.Requirement, counts, streak) {
			continue
		}
		ua := models.UserAchievement{UserID: userID, AchievementID: a.ID, TokensAwarded: TokensPerAchievement}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ua)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue // granted concurrently
		}
		if err := tx.Model(&models.UserProgress{}).
			Where("user_id = ?", userID).
			Update("power_tokens", gorm.Expr("power_tokens + ?", TokensPerAchievement)).Error; err != nil {
			return nil, err
		}
		granted = append(granted, a.ID)
	}
	return granted, nil
}

func meetsRequirement(req models.Requirement, counts map[string]int64, streak int) bool {
	if req.Type == models.RequirementStreak {
		return int64(streak) >= req.Count
	}
	return counts[req.Type] >= req.Count
}

func requirementProgress(req models.Requirement, counts map[string]int64, streak int) int64 {
	if req.Type == models.RequirementStreak {
		return int64(streak)
	}
	return counts[req.Type]
}

// countsByTypeTx returns cumulative completions per mission type.
func countsByTypeTx(tx *gorm.DB, userID string) (map[string]int64, error) {
	var rows []struct {
		MissionType string
		Total       int64
	}
	if err := tx.Model(&models.MissionCompletion{}).
		Select("mission_type, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("mission_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.MissionType] = r.Total
	}
	return counts, nil
}

// CountsByType is the read-only variant used by handlers.
func (s *AchievementService) CountsByType(ctx context.Context, userID string) (map[string]int64, error) {
	counts, err := countsByTypeTx(s.DB.WithContext(ctx), userID)
	return counts, storageErr("count completions", err)
}

// ListForUser returns the full catalog with unlock state and progress. Streak
// progress is the streak still alive on `today`.
func (s *AchievementService) ListForUser(ctx context.Context, userID string, today time.Time) ([]AchievementStatus, error) {
	db := s.DB.WithContext(ctx)

	var owned []models.UserAchievement
	if err := db.Where("user_id = ?", userID).Find(&owned).Error; err != nil {
		return nil, storageErr("list achievements", err)
	}
	byID := make(map[string]models.UserAchievement, len(owned))
	for _, ua := range owned {
		byID[ua.AchievementID] = ua
	}

	counts, err := countsByTypeTx(db, userID)
	if err != nil {
		return nil, storageErr("count completions", err)
	}
	var state models.StreakState
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&state).Error; err != nil {
		return nil, storageErr("read streak", err)
	}
	var prog models.UserProgress
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&prog).Error; err != nil {
		return nil, storageErr("read progress", err)
	}
	streak := EffectiveStreak(state, utils.DayKey(today), prog.ShieldArmed)

	out := make([]AchievementStatus, 0, len(models.Achievements))
	for _, a := range models.Achievements {
		st := AchievementStatus{Achievement: a, Progress: requirementProgress(a.Requirement, counts, streak)}
		if ua, ok := byID[a.ID]; ok {
			st.Unlocked = true
			awarded := ua.AwardedAt
			st.AwardedAt = &awarded
		}
		out = append(out, st)
	}
	return out, nil
}
