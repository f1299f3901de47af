// workers/user_sync_worker.go
package workers

import (
	"context"
	"sync"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/observability"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile is one entry of the profile service's change feed.
type RemoteProfile struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Roles     []string  `json:"roles"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p RemoteProfile) isAdmin() bool {
	for _, r := range p.Roles {
		if r == "admin" || r == "Admin" {
			return true
		}
	}
	return false
}

type profileChanges struct {
	Users []RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors profile fields from the profile service into users.
// Balances are owned by the ledger and never touched here.
type UserSyncWorker struct {
	db       *gorm.DB
	client   *syncClient
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cursor time.Time
}

func NewUserSyncWorker(db *gorm.DB, baseURL, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:       db,
		client:   newSyncClient(baseURL, "/api/v1/public/profiles", serviceToken),
		interval: 1 * time.Minute,
		log:      observability.NewLogger("user-sync"),
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("🔁 starting user sync worker")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn().Err(err).Msg("initial user sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("user sync batch failed")
			}
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ user sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls one batch and upserts it. The cursor only moves past a batch
// that was stored without errors.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changes profileChanges
	if err := w.client.fetch(ctx, w.cursor, &changes); err != nil {
		return 0, err
	}
	if len(changes.Users) == 0 {
		w.log.Debug().Time("since", w.cursor).Msg("no profile changes")
		return 0, nil
	}

	latest := w.cursor
	upserted, failed := 0, 0
	for _, remote := range changes.Users {
		if remote.ID == "" {
			failed++
			continue
		}
		user := models.User{
			ID:        remote.ID,
			Email:     remote.Email,
			FirstName: remote.FirstName,
			LastName:  remote.LastName,
			IsAdmin:   remote.isAdmin(),
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "is_admin", "updated_at"}),
		}).Create(&user).Error; err != nil {
			failed++
			w.log.Warn().Err(err).Str("user_id", remote.ID).Msg("failed to upsert user")
			continue
		}
		upserted++
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
	}

	if failed == 0 {
		w.cursor = latest
	}
	w.log.Info().
		Int("received", len(changes.Users)).
		Int("upserted", upserted).
		Int("failed", failed).
		Time("cursor", w.cursor).
		Msg("✅ users synced")
	return upserted, nil
}
