package services

import (
	"context"
	"errors"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakOutcome string

const (
	StreakUnchanged     StreakOutcome = "unchanged"
	StreakStarted       StreakOutcome = "started"
	StreakIncremented   StreakOutcome = "incremented"
	StreakBridgedShield StreakOutcome = "bridged_shield"
	StreakBridgedRescue StreakOutcome = "bridged_rescue"
	StreakReset         StreakOutcome = "reset"
)

const (
	// StreakRescueCost is the power-token price of one extra rescue.
	StreakRescueCost = 5
	// WagerStreakDays is how many more consecutive days a wager asks for.
	WagerStreakDays = 7
)

// AdvanceOptions carries what the user has available to bridge a gap.
type AdvanceOptions struct {
	ShieldArmed      bool
	UseRescue        bool
	RescuesAvailable int
}

// AdvanceStreak applies one check-in on day `today` (a day key) to state.
//
//	same day        -> unchanged
//	next day        -> +1
//	one missed day  -> +1 if a shield is armed
//	any bigger gap  -> +1 if the user elects a rescue and has one
//	otherwise       -> reset to 1
//
// The shield is tried before a rescue. A check-in dated before the last one is ignored.
func AdvanceStreak(state models.StreakState, today string, opts AdvanceOptions) (models.StreakState, StreakOutcome) {
	next := state
	if state.LastCheckInDate == "" {
		next.CurrentStreak = 1
		next.LastCheckInDate = today
		bumpLongest(&next)
		return next, StreakStarted
	}

	gap, err := utils.DaysBetween(state.LastCheckInDate, today)
	if err != nil {
		next.CurrentStreak = 1
		next.LastCheckInDate = today
		bumpLongest(&next)
		return next, StreakReset
	}
	if gap <= 0 {
		return state, StreakUnchanged
	}

	outcome := StreakIncremented
	switch {
	case gap == 1:
	case gap == 2 && opts.ShieldArmed:
		outcome = StreakBridgedShield
	case opts.UseRescue && opts.RescuesAvailable > 0:
		outcome = StreakBridgedRescue
	default:
		outcome = StreakReset
	}

	if outcome == StreakReset {
		next.CurrentStreak = 1
	} else {
		next.CurrentStreak++
	}
	next.LastCheckInDate = today
	bumpLongest(&next)
	return next, outcome
}

func bumpLongest(s *models.StreakState) {
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

// EffectiveStreak is the streak that still counts on `today` before any check-in:
// alive if the last check-in was today or yesterday, or the day before with an
// armed shield; otherwise 0. Used for the XP multiplier.
func EffectiveStreak(state models.StreakState, today string, shieldArmed bool) int {
	if state.LastCheckInDate == "" {
		return 0
	}
	gap, err := utils.DaysBetween(state.LastCheckInDate, today)
	if err != nil {
		return 0
	}
	switch {
	case gap <= 1:
		return state.CurrentStreak
	case gap == 2 && shieldArmed:
		return state.CurrentStreak
	default:
		return 0
	}
}

// ShieldAvailableThisWeek: never used, or last used before the Monday of today's week.
func ShieldAvailableThisWeek(shieldUsedAt *string, today time.Time) bool {
	if shieldUsedAt == nil || *shieldUsedAt == "" {
		return true
	}
	return *shieldUsedAt < utils.WeekStartKey(today)
}

type StreakService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Log   *utils.Logger
	Bus   *EventBus
}

func NewStreakService(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, bus *EventBus) *StreakService {
	return &StreakService{DB: db, Clock: clock, Log: log, Bus: bus}
}

type CheckInRequest struct {
	Mood      int    `json:"mood" validate:"required,min=1,max=5"`
	Note      string `json:"note" validate:"max=2000"`
	UseRescue bool   `json:"use_rescue"`
}

// WagerResolution is what resolving a wager did to the balance.
type WagerResolution struct {
	Won         bool  `json:"won"`
	Amount      int64 `json:"amount"`
	TokensDelta int64 `json:"tokens_delta"`
	PowerTokens int64 `json:"power_tokens"`
}

type CheckInResult struct {
	CheckIn             models.CheckIn     `json:"check_in"`
	Streak              models.StreakState `json:"streak"`
	Outcome             StreakOutcome      `json:"outcome"`
	Multiplier          float64            `json:"multiplier"`
	Wager               *WagerResolution   `json:"wager,omitempty"`
	AchievementsGranted []string           `json:"achievements_granted"`
}

// RecordCheckIn stores a mood check-in and advances the streak in one transaction.
// Repeat check-ins on the same day are stored but leave the streak alone.
func (s *StreakService) RecordCheckIn(ctx context.Context, ident Identity, today time.Time, req CheckInRequest) (*CheckInResult, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	if req.Mood < 1 || req.Mood > 5 {
		return nil, ErrInvalidMood
	}
	day := utils.DayKey(today)
	result := &CheckInResult{AchievementsGranted: []string{}}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProgressTx(tx, ident); err != nil {
			return err
		}
		prog, err := lockProgressTx(tx, ident.UserID)
		if err != nil {
			return err
		}
		state, err := ensureStreakTx(tx, ident.UserID)
		if err != nil {
			return err
		}

		checkIn := models.CheckIn{UserID: ident.UserID, CheckInDate: day, Mood: req.Mood, Note: req.Note}
		if err := tx.Create(&checkIn).Error; err != nil {
			return err
		}
		result.CheckIn = checkIn

		next, outcome := AdvanceStreak(*state, day, AdvanceOptions{
			ShieldArmed:      prog.ShieldArmed,
			UseRescue:        req.UseRescue,
			RescuesAvailable: prog.StreakRescuesAvailable,
		})
		result.Streak = next
		result.Outcome = outcome
		result.Multiplier = StreakMultiplier(next.CurrentStreak)
		if outcome == StreakUnchanged {
			return nil
		}
		wagerStarts := prog.WagerActive && wagerPlacedOnLapsedStreak(*state, prog)

		if err := tx.Model(state).Updates(map[string]interface{}{
			"current_streak":     next.CurrentStreak,
			"longest_streak":     next.LongestStreak,
			"last_check_in_date": next.LastCheckInDate,
		}).Error; err != nil {
			return err
		}

		switch outcome {
		case StreakBridgedShield:
			if err := tx.Model(prog).Update("shield_armed", false).Error; err != nil {
				return err
			}
		case StreakBridgedRescue:
			if err := tx.Model(prog).
				Update("streak_rescues_available", gorm.Expr("streak_rescues_available - 1")).Error; err != nil {
				return err
			}
		}

		if prog.WagerActive {
			switch {
			case wagerStarts:
				// the run the wager is on begins with this check-in
				target := next.CurrentStreak - 1 + WagerStreakDays
				if err := tx.Model(prog).Update("wager_target_streak", target).Error; err != nil {
					return err
				}
			case outcome == StreakReset:
				res, err := resolveWagerTx(tx, prog, false)
				if err != nil {
					return err
				}
				result.Wager = res
			case next.CurrentStreak >= prog.WagerTargetStreak:
				res, err := resolveWagerTx(tx, prog, true)
				if err != nil {
					return err
				}
				result.Wager = res
			}
		}

		counts, err := countsByTypeTx(tx, ident.UserID)
		if err != nil {
			return err
		}
		granted, err := checkAndGrantTx(tx, ident.UserID, counts, next.CurrentStreak)
		if err != nil {
			return err
		}
		if granted != nil {
			result.AchievementsGranted = granted
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("record check-in", err)
	}

	s.Log.Info("[STREAK] check-in", "user_id", ident.UserID, "day", day,
		"outcome", string(result.Outcome), "streak", result.Streak.CurrentStreak)
	if result.Outcome != StreakUnchanged {
		data := map[string]interface{}{
			"current_streak": result.Streak.CurrentStreak,
			"longest_streak": result.Streak.LongestStreak,
			"outcome":        result.Outcome,
		}
		if result.Wager != nil {
			data["wager"] = result.Wager
		}
		s.Bus.Publish(Event{Kind: EventStreak, UserID: ident.UserID, At: s.Clock.Now(), Data: data})
	}
	announceAchievements(s.Log, s.Bus, s.Clock, ident.UserID, "", result.AchievementsGranted)
	return result, nil
}

// wagerPlacedOnLapsedStreak: no check-in since the wager was placed, and the
// streak was already broken on that day. The reset that follows is not a loss.
func wagerPlacedOnLapsedStreak(state models.StreakState, prog *models.UserProgress) bool {
	if prog.WagerPlacedAt == nil || state.LastCheckInDate == "" {
		return false
	}
	placed := *prog.WagerPlacedAt
	if state.LastCheckInDate >= placed {
		return false
	}
	return EffectiveStreak(state, placed, prog.ShieldArmed) == 0
}

// ActivateShield arms the weekly shield. It bridges the next single missed day.
func (s *StreakService) ActivateShield(ctx context.Context, ident Identity, today time.Time) (*models.UserProgress, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	day := utils.DayKey(today)

	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProgressTx(tx, ident); err != nil {
			return err
		}
		var err error
		if prog, err = lockProgressTx(tx, ident.UserID); err != nil {
			return err
		}
		if !ShieldAvailableThisWeek(prog.ShieldUsedAt, today) {
			return ErrShieldUnavailable
		}
		prog.ShieldUsedAt = &day
		prog.ShieldArmed = true
		return tx.Model(prog).Updates(map[string]interface{}{
			"shield_used_at": day,
			"shield_armed":   true,
		}).Error
	})
	if err != nil {
		return nil, storageErr("activate shield", err)
	}

	s.Log.Info("[STREAK] shield activated", "user_id", ident.UserID, "day", day)
	s.Bus.Publish(Event{Kind: EventStreak, UserID: ident.UserID, At: s.Clock.Now(),
		Data: map[string]interface{}{"shield_armed": true, "shield_used_at": day}})
	return prog, nil
}

// PlaceWager puts seeds (power tokens) on reaching the current streak + 7.
// Nothing is deducted until the wager resolves. On a lapsed streak the target
// is set again by the next check-in, which starts the run.
func (s *StreakService) PlaceWager(ctx context.Context, ident Identity, seeds int64, today time.Time) (*models.UserProgress, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	if seeds <= 0 {
		return nil, ErrInvalidAmount
	}
	day := utils.DayKey(today)

	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProgressTx(tx, ident); err != nil {
			return err
		}
		var err error
		if prog, err = lockProgressTx(tx, ident.UserID); err != nil {
			return err
		}
		if prog.WagerActive {
			return ErrWagerActive
		}
		if seeds > prog.PowerTokens {
			return ErrInsufficientSeeds
		}

		var state models.StreakState
		if err := tx.Where("user_id = ?", ident.UserID).Limit(1).Find(&state).Error; err != nil {
			return err
		}
		target := EffectiveStreak(state, day, prog.ShieldArmed) + WagerStreakDays

		prog.WagerActive = true
		prog.WagerAmount = seeds
		prog.WagerTargetStreak = target
		prog.WagerPlacedAt = &day
		return tx.Model(prog).Updates(map[string]interface{}{
			"wager_active":        true,
			"wager_amount":        seeds,
			"wager_target_streak": target,
			"wager_placed_at":     day,
		}).Error
	})
	if err != nil {
		return nil, storageErr("place wager", err)
	}

	s.Log.Info("[WAGER] placed", "user_id", ident.UserID, "seeds", seeds, "target_streak", prog.WagerTargetStreak)
	return prog, nil
}

// ResolveWager settles the active wager: a win pays floor(amount/2), a loss
// takes the amount (never below zero). The wager is cleared either way.
func (s *StreakService) ResolveWager(ctx context.Context, userID string, won bool) (*WagerResolution, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	var res *WagerResolution
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prog, err := lockProgressTx(tx, userID)
		if err != nil {
			return err
		}
		if !prog.WagerActive {
			return ErrNoActiveWager
		}
		res, err = resolveWagerTx(tx, prog, won)
		return err
	})
	if err != nil {
		return nil, storageErr("resolve wager", err)
	}

	s.Log.Info("[WAGER] resolved", "user_id", userID, "won", won, "delta", res.TokensDelta)
	s.Bus.Publish(Event{Kind: EventStreak, UserID: userID, At: s.Clock.Now(),
		Data: map[string]interface{}{"wager": res}})
	return res, nil
}

// resolveWagerTx needs prog to be locked by the caller.
func resolveWagerTx(tx *gorm.DB, prog *models.UserProgress, won bool) (*WagerResolution, error) {
	amount := prog.WagerAmount
	before := prog.PowerTokens
	balance := before
	if won {
		balance += amount / 2
	} else {
		balance -= amount
		if balance < 0 {
			balance = 0
		}
	}

	if err := tx.Model(prog).Updates(map[string]interface{}{
		"power_tokens":        balance,
		"wager_active":        false,
		"wager_amount":        0,
		"wager_target_streak": 0,
		"wager_placed_at":     nil,
	}).Error; err != nil {
		return nil, err
	}

	res := &WagerResolution{Won: won, Amount: amount, TokensDelta: balance - before, PowerTokens: balance}
	prog.PowerTokens = balance
	prog.WagerActive = false
	prog.WagerAmount = 0
	prog.WagerTargetStreak = 0
	prog.WagerPlacedAt = nil
	return res, nil
}

// PurchaseStreakRescue trades StreakRescueCost power tokens for one rescue.
func (s *StreakService) PurchaseStreakRescue(ctx context.Context, ident Identity) (*models.UserProgress, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProgressTx(tx, ident); err != nil {
			return err
		}
		var err error
		if prog, err = lockProgressTx(tx, ident.UserID); err != nil {
			return err
		}
		if prog.PowerTokens < StreakRescueCost {
			return ErrInsufficientTokens
		}
		prog.PowerTokens -= StreakRescueCost
		prog.StreakRescuesAvailable++
		return tx.Model(prog).Updates(map[string]interface{}{
			"power_tokens":             prog.PowerTokens,
			"streak_rescues_available": prog.StreakRescuesAvailable,
		}).Error
	})
	if err != nil {
		return nil, storageErr("purchase rescue", err)
	}
	s.Log.Info("[PERK] streak rescue purchased", "user_id", ident.UserID, "power_tokens", prog.PowerTokens)
	return prog, nil
}

// TopUpRescues raises every user to their weekly allowance. Purchased
// rescues above the allowance are kept.
func (s *StreakService) TopUpRescues(ctx context.Context) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, premium := range []bool{false, true} {
			allowance := RescueAllowance(premium)
			res := tx.Model(&models.UserProgress{}).
				Where("is_premium = ? AND streak_rescues_available < ?", premium, allowance).
				Update("streak_rescues_available", allowance)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("top up rescues", err)
	}
	return total, nil
}

// StreakSummary is the streak panel as of `today`.
type StreakSummary struct {
	State            models.StreakState `json:"state"`
	EffectiveStreak  int                `json:"effective_streak"`
	Multiplier       float64            `json:"multiplier"`
	ShieldAvailable  bool               `json:"shield_available"`
	ShieldArmed      bool               `json:"shield_armed"`
	RescuesAvailable int                `json:"rescues_available"`
	PowerTokens      int64              `json:"power_tokens"`
	WagerActive      bool               `json:"wager_active"`
	WagerAmount      int64              `json:"wager_amount"`
	WagerTarget      int                `json:"wager_target_streak"`
}

func (s *StreakService) GetStreak(ctx context.Context, ident Identity, today time.Time) (*StreakSummary, error) {
	if err := ident.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	prog, err := ensureProgressTx(db, ident)
	if err != nil {
		return nil, storageErr("read progress", err)
	}
	var state models.StreakState
	if err := db.Where("user_id = ?", ident.UserID).Limit(1).Find(&state).Error; err != nil {
		return nil, storageErr("read streak", err)
	}
	effective := EffectiveStreak(state, utils.DayKey(today), prog.ShieldArmed)
	return &StreakSummary{
		State:            state,
		EffectiveStreak:  effective,
		Multiplier:       StreakMultiplier(effective),
		ShieldAvailable:  ShieldAvailableThisWeek(prog.ShieldUsedAt, today),
		ShieldArmed:      prog.ShieldArmed,
		RescuesAvailable: prog.StreakRescuesAvailable,
		PowerTokens:      prog.PowerTokens,
		WagerActive:      prog.WagerActive,
		WagerAmount:      prog.WagerAmount,
		WagerTarget:      prog.WagerTargetStreak,
	}, nil
}

// lockProgressTx reads the progress row FOR UPDATE (a no-op on sqlite).
func lockProgressTx(tx *gorm.DB, userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

func ensureStreakTx(tx *gorm.DB, userID string) (*models.StreakState, error) {
	var state models.StreakState
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.StreakState{UserID: userID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&state)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("user_id = ?", userID).First(&state).Error; err != nil {
				return nil, err
			}
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}
