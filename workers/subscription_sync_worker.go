// workers/subscription_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"daily-challenge-service/models"
	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteSubscription matches one entry of the sync service's response.
type RemoteSubscription struct {
	UserID    string     `json:"user_id"`
	IsPremium bool       `json:"is_premium"`
	Plan      string     `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GetSubscriptionChangesResponse is the top-level sync service response.
type GetSubscriptionChangesResponse struct {
	Subscriptions []RemoteSubscription `json:"subscriptions"`
}

// SubscriptionSyncWorker polls the identity provider for premium changes and
// mirrors them into subscription_mirrors and user_progresses.
type SubscriptionSyncWorker struct {
	db           *gorm.DB
	clock        clockwork.Clock
	log          *utils.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewSubscriptionSyncWorker(db *gorm.DB, clock clockwork.Clock, log *utils.Logger, syncServiceBaseURL, serviceToken string, interval time.Duration) *SubscriptionSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SubscriptionSyncWorker{
		db:           db,
		clock:        clock,
		log:          log,
		interval:     interval,
		baseURL:      syncServiceBaseURL,
		endpointPath: "/api/v1/public/subscriptions",
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *SubscriptionSyncWorker) Start(ctx context.Context) {
	w.log.Info("[SYNC] starting subscription sync worker", "interval", w.interval.String())
	go w.run(ctx)
}

func (w *SubscriptionSyncWorker) run(ctx context.Context) {
	// backfill from the beginning of time
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		w.log.Warn("[SYNC] initial sync failed", "error", err)
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := w.SyncOnce(ctx, w.lastSyncTime()); err != nil {
				w.log.Error("[SYNC] batch failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("[SYNC] subscription sync worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest mirrored UpdatedAt, or the epoch.
func (w *SubscriptionSyncWorker) lastSyncTime() time.Time {
	var latest models.SubscriptionMirror
	err := w.db.Order("updated_at DESC").Limit(1).Find(&latest).Error
	if err != nil || latest.UpdatedAt.IsZero() {
		return time.Unix(0, 0)
	}
	return latest.UpdatedAt
}

// SyncOnce fetches changes since `since` and applies them. Returns how many were applied.
func (w *SubscriptionSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	subs, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		w.log.Debug("[SYNC] no subscription changes", "since", since.UTC().Format(time.RFC3339))
		return 0, nil
	}

	applied, failed := 0, 0
	for _, remote := range subs {
		if remote.UserID == "" {
			continue
		}
		if err := w.apply(ctx, remote); err != nil {
			failed++
			w.log.Warn("[SYNC] failed to apply subscription", "user_id", remote.UserID, "error", err)
			continue
		}
		applied++
	}
	w.log.Info("[SYNC] subscriptions synced", "received", len(subs), "applied", applied, "failed", failed)
	return applied, nil
}

func (w *SubscriptionSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteSubscription, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}

	var out GetSubscriptionChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return out.Subscriptions, nil
}

// apply upserts the mirror and pushes the premium flag onto the progress row.
// A user turning premium is lifted to the premium rescue allowance right away.
func (w *SubscriptionSyncWorker) apply(ctx context.Context, remote RemoteSubscription) error {
	mirror := models.SubscriptionMirror{
		UserID:    remote.UserID,
		IsPremium: remote.IsPremium,
		Plan:      remote.Plan,
		ExpiresAt: remote.ExpiresAt,
		Timezone:  remote.Timezone,
		UpdatedAt: remote.UpdatedAt,
	}
	active := mirror.Active(w.clock.Now())

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_premium", "plan", "expires_at", "timezone", "updated_at"}),
		}).Create(&mirror).Error; err != nil {
			return err
		}

		if remote.Timezone != "" {
			if err := tx.Model(&models.UserProgress{}).
				Where("user_id = ?", remote.UserID).
				Update("timezone", remote.Timezone).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.UserProgress{}).
			Where("user_id = ? AND is_premium = ?", remote.UserID, !active).
			Update("is_premium", active)
		if res.Error != nil {
			return res.Error
		}
		if active && res.RowsAffected > 0 {
			allowance := services.RescueAllowance(true)
			return tx.Model(&models.UserProgress{}).
				Where("user_id = ? AND streak_rescues_available < ?", remote.UserID, allowance).
				Update("streak_rescues_available", allowance).Error
		}
		return nil
	})
}
