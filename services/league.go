package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TierForXP: bronze <500, silver <3000, gold <8000, diamond otherwise.
func TierForXP(totalXP int64) models.LeagueTier {
	switch {
	case totalXP < 500:
		return models.TierBronze
	case totalXP < 3000:
		return models.TierSilver
	case totalXP < 8000:
		return models.TierGold
	default:
		return models.TierDiamond
	}
}

// Archiver stores closed-week standings somewhere durable (R2 in production).
type Archiver interface {
	PutJSON(ctx context.Context, key string, v interface{}) error
}

type LeagueService struct {
	DB      *gorm.DB
	Clock   clockwork.Clock
	Log     *utils.Logger
	Bus     *EventBus
	Archive Archiver // optional
}

func NewLeagueService(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, bus *EventBus, archive Archiver) *LeagueService {
	return &LeagueService{DB: db, Clock: clock, Log: log, Bus: bus, Archive: archive}
}

// AssignToLeague returns the user's league for the week, joining one if needed.
// Idempotent per (user, week).
func (s *LeagueService) AssignToLeague(ctx context.Context, userID string, totalXP int64, weekStart string) (*models.League, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	var league *models.League
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		league, _, err = ensureMembershipTx(tx, userID, totalXP, weekStart)
		return err
	})
	if err != nil {
		return nil, storageErr("assign league", err)
	}
	return league, nil
}

// ensureMembershipTx finds or creates the (user, week) membership. The bool is
// true when the user joined just now.
func ensureMembershipTx(tx *gorm.DB, userID string, totalXP int64, weekStart string) (*models.League, bool, error) {
	if league, err := currentLeagueTx(tx, userID, weekStart); err != nil || league != nil {
		return league, false, err
	}

	tier := TierForXP(totalXP)
	league, err := openCohortTx(tx, tier, weekStart)
	if err != nil {
		return nil, false, err
	}

	member := models.LeagueMember{
		LeagueID:  league.ID,
		UserID:    userID,
		WeekStart: weekStart,
		Position:  league.MemberCount + 1,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// lost a race with another request for the same user
		l, err := currentLeagueTx(tx, userID, weekStart)
		return l, false, err
	}

	if err := tx.Model(league).Update("member_count", gorm.Expr("member_count + 1")).Error; err != nil {
		return nil, false, err
	}
	league.MemberCount++
	return league, true, nil
}

// openCohortTx returns the oldest cohort of the tier with room, locked, opening
// the next one when all are full. Concurrent openers meet on the
// (tier, week_start, sequence) unique index: the loser retries and joins the
// winner's cohort.
func openCohortTx(tx *gorm.DB, tier models.LeagueTier, weekStart string) (*models.League, error) {
	for attempt := 0; attempt < 5; attempt++ {
		var league models.League
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tier = ? AND week_start = ? AND member_count < ?", tier, weekStart, models.LeagueCapacity).
			Order("sequence ASC").
			First(&league).Error
		if err == nil {
			return &league, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var last int
		if err := tx.Model(&models.League{}).
			Where("tier = ? AND week_start = ?", tier, weekStart).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error; err != nil {
			return nil, err
		}
		seq := last + 1
		league = models.League{
			Tier:      tier,
			WeekStart: weekStart,
			Sequence:  seq,
			Name:      slug.Make(fmt.Sprintf("%s league %s %d", tier, weekStart, seq)),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&league)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &league, nil
		}
	}
	return nil, fmt.Errorf("no room in %s leagues for week %s", tier, weekStart)
}

func currentLeagueTx(tx *gorm.DB, userID, weekStart string) (*models.League, error) {
	var member models.LeagueMember
	err := tx.Where("user_id = ? AND week_start = ?", userID, weekStart).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var league models.League
	if err := tx.Where("id = ?", member.LeagueID).First(&league).Error; err != nil {
		return nil, err
	}
	return &league, nil
}

// AddWeeklyXP accumulates into the user's membership for weekStart only.
// Returns false when the user has no league that week.
func (s *LeagueService) AddWeeklyXP(ctx context.Context, userID string, xp int64, weekStart string) (bool, error) {
	ok, err := addWeeklyXPTx(s.DB.WithContext(ctx), userID, xp, weekStart)
	return ok, storageErr("add weekly xp", err)
}

func addWeeklyXPTx(tx *gorm.DB, userID string, xp int64, weekStart string) (bool, error) {
	if xp <= 0 {
		return false, nil
	}
	res := tx.Model(&models.LeagueMember{}).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Update("xp_earned_this_week", gorm.Expr("xp_earned_this_week + ?", xp))
	return res.RowsAffected > 0, res.Error
}

// RankMembers orders by weekly XP, highest first; ties keep join order.
func RankMembers(members []models.LeagueMember) []models.LeagueMember {
	out := append([]models.LeagueMember(nil), members...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	sort.SliceStable(out, func(i, j int) bool { return out[i].XPEarnedThisWeek > out[j].XPEarnedThisWeek })
	return out
}

// PromotionCount is ceil(0.3*n); integer maths avoids 0.3*10 = 3.0000000000000004.
func PromotionCount(n int) int {
	return (3*n + 9) / 10
}

// DemotionStart is floor(0.7*n): the first 0-based index inside the demotion zone.
func DemotionStart(n int) int {
	return 7 * n / 10
}

// ZoneFor classifies a 0-based ranked index. Promotion wins where the zones overlap.
func ZoneFor(index, n int) models.ZoneOutcome {
	switch {
	case index < PromotionCount(n):
		return models.ZonePromotion
	case index >= DemotionStart(n):
		return models.ZoneDemotion
	default:
		return models.ZoneStay
	}
}

// RankedMember is one row of a standings table.
type RankedMember struct {
	Rank             int                `json:"rank"`
	UserID           string             `json:"user_id"`
	XPEarnedThisWeek int64              `json:"xp_earned_this_week"`
	Zone             models.ZoneOutcome `json:"zone"`
	// PositionChange is last week's final rank minus this rank (positive = climbed).
	// Nil when the user has no closed week to compare against.
	PositionChange *int `json:"position_change"`
	IsMe           bool `json:"is_me,omitempty"`
}

type Standings struct {
	League         models.League  `json:"league"`
	Members        []RankedMember `json:"members"`
	PromotionCount int            `json:"promotion_count"`
	DemotionStart  int            `json:"demotion_start"`
	MyRank         int            `json:"my_rank"`
}

// Standings ranks the user's league for weekStart. Computed on read, never stored.
func (s *LeagueService) Standings(ctx context.Context, userID, weekStart string) (*Standings, error) {
	db := s.DB.WithContext(ctx)
	league, err := currentLeagueTx(db, userID, weekStart)
	if err != nil {
		return nil, storageErr("read league", err)
	}
	if league == nil {
		return nil, nil
	}

	var members []models.LeagueMember
	if err := db.Where("league_id = ?", league.ID).Find(&members).Error; err != nil {
		return nil, storageErr("read league members", err)
	}
	ranked := RankMembers(members)

	prev, err := previousRanks(db, ranked, weekStart)
	if err != nil {
		return nil, storageErr("read rank snapshots", err)
	}

	n := len(ranked)
	out := &Standings{
		League:         *league,
		Members:        make([]RankedMember, n),
		PromotionCount: PromotionCount(n),
		DemotionStart:  DemotionStart(n),
	}
	for i, m := range ranked {
		rm := RankedMember{
			Rank:             i + 1,
			UserID:           m.UserID,
			XPEarnedThisWeek: m.XPEarnedThisWeek,
			Zone:             ZoneFor(i, n),
			IsMe:             m.UserID == userID,
		}
		if before, ok := prev[m.UserID]; ok {
			delta := before - rm.Rank
			rm.PositionChange = &delta
		}
		if rm.IsMe {
			out.MyRank = rm.Rank
		}
		out.Members[i] = rm
	}
	return out, nil
}

// previousRanks loads the final ranks stored when the prior week closed.
func previousRanks(db *gorm.DB, members []models.LeagueMember, weekStart string) (map[string]int, error) {
	out := map[string]int{}
	if len(members) == 0 {
		return out, nil
	}
	ws, err := utils.ParseDay(weekStart, time.UTC)
	if err != nil {
		return nil, err
	}
	prevWeek := utils.DayKey(ws.AddDate(0, 0, -7))

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	var snaps []models.LeagueRankSnapshot
	if err := db.Where("week_start = ? AND user_id IN ?", prevWeek, ids).Find(&snaps).Error; err != nil {
		return nil, err
	}
	for _, sn := range snaps {
		out[sn.UserID] = sn.Rank
	}
	return out, nil
}

// ArchivedStanding is the JSON written to the archive per member.
type ArchivedStanding struct {
	Rank     int                `json:"rank"`
	UserID   string             `json:"user_id"`
	XPEarned int64              `json:"xp_earned"`
	Outcome  models.ZoneOutcome `json:"outcome"`
}

// CloseWeek snapshots final ranks for every still-open league of weekStart.
// Safe to run more than once. Returns how many leagues it closed.
func (s *LeagueService) CloseWeek(ctx context.Context, weekStart string) (int, error) {
	db := s.DB.WithContext(ctx)

	var leagues []models.League
	if err := db.Where("week_start = ? AND closed_at IS NULL", weekStart).
		Order("tier ASC, sequence ASC").
		Find(&leagues).Error; err != nil {
		return 0, storageErr("list leagues", err)
	}

	closed := 0
	for i := range leagues {
		league := leagues[i]
		var table []ArchivedStanding

		err := db.Transaction(func(tx *gorm.DB) error {
			var members []models.LeagueMember
			if err := tx.Where("league_id = ?", league.ID).Find(&members).Error; err != nil {
				return err
			}
			ranked := RankMembers(members)
			n := len(ranked)
			table = make([]ArchivedStanding, n)

			for idx, m := range ranked {
				outcome := ZoneFor(idx, n)
				table[idx] = ArchivedStanding{Rank: idx + 1, UserID: m.UserID, XPEarned: m.XPEarnedThisWeek, Outcome: outcome}
				details, err := json.Marshal(map[string]interface{}{"league_name": league.Name, "league_size": n})
				if err != nil {
					return err
				}
				snap := models.LeagueRankSnapshot{
					UserID:    m.UserID,
					WeekStart: weekStart,
					LeagueID:  league.ID,
					Tier:      league.Tier,
					Rank:      idx + 1,
					XPEarned:  m.XPEarnedThisWeek,
					Outcome:   outcome,
					Details:   datatypes.JSON(details),
				}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&snap).Error; err != nil {
					return err
				}
			}
			now := s.Clock.Now()
			return tx.Model(&league).Update("closed_at", now).Error
		})
		if err != nil {
			return closed, storageErr("close league", err)
		}
		closed++

		for _, row := range table {
			s.Bus.Publish(Event{Kind: EventLeague, UserID: row.UserID, At: s.Clock.Now(), Data: map[string]interface{}{
				"week_start": weekStart, "rank": row.Rank, "outcome": row.Outcome,
			}})
		}

		if s.Archive != nil {
			key := fmt.Sprintf("leagues/%s/%s.json", weekStart, league.Name)
			if err := s.Archive.PutJSON(ctx, key, map[string]interface{}{
				"league":    league,
				"standings": table,
			}); err != nil {
				// the snapshots are the source of truth; the archive is best effort
				s.Log.Warn("[LEAGUE] archive upload failed", "key", key, "error", err)
			}
		}
		s.Log.Info("[LEAGUE] closed", "league", league.Name, "members", len(table))
	}
	return closed, nil
}
