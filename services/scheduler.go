// services/scheduler.go
package services

import (
	"context"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Monday 12:05 UTC: by then it is Monday or later in every timezone, so every
// earlier week is finished for everyone.
const (
	rolloverHour   = 12
	rolloverMinute = 5
)

// WeeklyRollover closes last week's leagues and tops up streak rescues.
type WeeklyRollover struct {
	Leagues *LeagueService
	Streaks *StreakService
	Clock   clockwork.Clock
	Log     *utils.Logger
}

type RolloverReport struct {
	WeeksClosed     []string `json:"weeks_closed"`
	LeaguesClosed   int      `json:"leagues_closed"`
	RescuesToppedUp int64    `json:"rescues_topped_up"`
}

// Run closes every open league of a week before the current one, then tops up rescues.
// Safe to call repeatedly.
func (r *WeeklyRollover) Run(ctx context.Context) (*RolloverReport, error) {
	cutoff := utils.WeekStartKey(r.Clock.Now().UTC())

	var weeks []string
	if err := r.Leagues.DB.WithContext(ctx).
		Model(&models.League{}).
		Where("closed_at IS NULL AND week_start < ?", cutoff).
		Distinct("week_start").
		Order("week_start ASC").
		Pluck("week_start", &weeks).Error; err != nil {
		return nil, storageErr("list open weeks", err)
	}

	report := &RolloverReport{WeeksClosed: []string{}}
	for _, week := range weeks {
		n, err := r.Leagues.CloseWeek(ctx, week)
		report.LeaguesClosed += n
		if err != nil {
			return report, err
		}
		report.WeeksClosed = append(report.WeeksClosed, week)
	}

	topped, err := r.Streaks.TopUpRescues(ctx)
	if err != nil {
		return report, err
	}
	report.RescuesToppedUp = topped

	r.Log.Info("[SCHEDULER] weekly rollover done", "weeks", report.WeeksClosed,
		"leagues_closed", report.LeaguesClosed, "rescues_topped_up", topped)
	return report, nil
}

// StartWeeklyScheduler registers the rollover on gocron and starts it.
// The caller owns Shutdown.
func StartWeeklyScheduler(ctx context.Context, r *WeeklyRollover) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithClock(r.Clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.WeeklyJob(1,
			gocron.NewWeekdays(time.Monday),
			gocron.NewAtTimes(gocron.NewAtTime(rolloverHour, rolloverMinute, 0)),
		),
		gocron.NewTask(func() {
			if _, err := r.Run(ctx); err != nil {
				r.Log.Error("[SCHEDULER] weekly rollover failed", "error", err)
			}
		}),
		gocron.WithName("weekly-rollover"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
