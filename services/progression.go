package services

import (
	"context"
	"errors"
	"math"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Level is one XP band. MaxXP is inclusive; the last band is open-ended.
type Level struct {
	Name  string `json:"name"`
	Rank  int    `json:"rank"`
	MinXP int64  `json:"min_xp"`
	MaxXP int64  `json:"max_xp"`
}

// levelBands must stay ascending and contiguous.
var levelBands = []Level{
	{Name: "explorer", Rank: 1, MinXP: 0, MaxXP: 499},
	{Name: "seeker", Rank: 2, MinXP: 500, MaxXP: 1499},
	{Name: "pathfinder", Rank: 3, MinXP: 1500, MaxXP: 2999},
	{Name: "guardian", Rank: 4, MinXP: 3000, MaxXP: 5999},
	{Name: "sage", Rank: 5, MinXP: 6000, MaxXP: 9999},
	{Name: "luminary", Rank: 6, MinXP: 10000, MaxXP: math.MaxInt64},
}

// DefaultLevel is where every new user starts.
const DefaultLevel = "explorer"

// LevelForXP returns the highest band whose MinXP <= totalXP.
func LevelForXP(totalXP int64) Level {
	lvl := levelBands[0]
	for _, band := range levelBands {
		if band.MinXP <= totalXP {
			lvl = band
		}
	}
	return lvl
}

// Levels returns a copy of the band table.
func Levels() []Level {
	return append([]Level(nil), levelBands...)
}

var levelTitle = cases.Title(language.English)

// DisplayName is the capitalised level name shown to users.
func (l Level) DisplayName() string {
	return levelTitle.String(l.Name)
}

// XPToNext is how much XP is left before the next band (0 on the last band).
func (l Level) XPToNext(totalXP int64) int64 {
	if l.MaxXP == math.MaxInt64 {
		return 0
	}
	return l.MaxXP + 1 - totalXP
}

// multiplierPercent keeps the multiplier in integer percent so floor() is exact.
func multiplierPercent(streak int) int64 {
	switch {
	case streak >= 21:
		return 130
	case streak >= 7:
		return 120
	case streak >= 3:
		return 110
	default:
		return 100
	}
}

// StreakMultiplier: 1.30 at 21+, 1.20 at 7+, 1.10 at 3+, else 1.0.
func StreakMultiplier(streak int) float64 {
	return float64(multiplierPercent(streak)) / 100
}

// XPForMission is floor(baseXP * StreakMultiplier(streak)). Truncates, never rounds.
func XPForMission(baseXP, streak int) int64 {
	if baseXP <= 0 {
		return 0
	}
	return int64(baseXP) * multiplierPercent(streak) / 100
}

// Weekly streak-rescue allowance.
const (
	FreeRescueAllowance    = 1
	PremiumRescueAllowance = 3
)

func RescueAllowance(premium bool) int {
	if premium {
		return PremiumRescueAllowance
	}
	return FreeRescueAllowance
}

type ProgressionService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Log   *utils.Logger
	Bus   *EventBus
}

func NewProgressionService(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, bus *EventBus) *ProgressionService {
	return &ProgressionService{DB: db, Clock: clock, Log: log, Bus: bus}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent) and keeps
// the premium flag and timezone in step with the identity provider.
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, ident Identity) (*models.UserProgress, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		prog, err = ensureProgressTx(tx, ident)
		return err
	})
	if err != nil {
		return nil, storageErr("ensure progress", err)
	}
	return prog, nil
}

func ensureProgressTx(tx *gorm.DB, ident Identity) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Where("user_id = ?", ident.UserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgress{
			UserID:                 ident.UserID,
			TotalXP:                0,
			CurrentLevel:           DefaultLevel,
			StreakRescuesAvailable: RescueAllowance(ident.Premium),
			IsPremium:              ident.Premium,
			Timezone:               ident.Timezone,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&prog)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// created concurrently; read the winner
			if err := tx.Where("user_id = ?", ident.UserID).First(&prog).Error; err != nil {
				return nil, err
			}
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if prog.IsPremium != ident.Premium {
		updates["is_premium"] = ident.Premium
		prog.IsPremium = ident.Premium
	}
	if ident.Timezone != "" && prog.Timezone != ident.Timezone {
		updates["timezone"] = ident.Timezone
		prog.Timezone = ident.Timezone
	}
	if len(updates) > 0 {
		if err := tx.Model(&prog).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &prog, nil
}

// GetProgress reads the current row.
func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("get progress", err)
	}
	return &prog, nil
}

// AwardXP atomically adds XP and recomputes the level, returning the updated row.
func (s *ProgressionService) AwardXP(ctx context.Context, userID string, xp int64, reason string) (*models.UserProgress, error) {
	if xp <= 0 {
		return nil, ErrInvalidAmount
	}
	var updated *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = awardXPTx(tx, s.Clock, userID, xp)
		return err
	})
	if err != nil {
		return nil, storageErr("award xp", err)
	}

	s.Log.Info("[XP] awarded", "user_id", userID, "xp", xp, "total_xp", updated.TotalXP,
		"level", updated.CurrentLevel, "reason", reason)
	s.Bus.Publish(Event{Kind: EventXP, UserID: userID, At: s.Clock.Now(), Data: map[string]interface{}{
		"xp_earned": xp, "total_xp": updated.TotalXP, "level": updated.CurrentLevel, "reason": reason,
	}})
	return updated, nil
}

// awardXPTx increments total_xp in SQL (no lost updates) and then fixes up current_level.
func awardXPTx(tx *gorm.DB, clock clockwork.Clock, userID string, xp int64) (*models.UserProgress, error) {
	res := tx.Model(&models.UserProgress{}).
		Where("user_id = ?", userID).
		Update("total_xp", gorm.Expr("total_xp + ?", xp))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	var prog models.UserProgress
	if err := tx.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		return nil, err
	}

	level := LevelForXP(prog.TotalXP).Name
	if level != prog.CurrentLevel {
		now := clock.Now()
		prog.CurrentLevel = level
		prog.LastLevelUpAt = &now
		if err := tx.Model(&prog).Updates(map[string]interface{}{
			"current_level":    level,
			"last_level_up_at": now,
		}).Error; err != nil {
			return nil, err
		}
	}
	return &prog, nil
}
