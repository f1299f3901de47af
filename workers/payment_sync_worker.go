// workers/payment_sync_worker.go
package workers

import (
	"context"
	"sync"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/services"

	"github.com/rs/zerolog"
)

const paymentSucceeded = "succeeded"

// RemotePayment is one entry of the payment service's change feed.
type RemotePayment struct {
	Reference       string    `json:"reference"`
	UserID          string    `json:"user_id"`
	PackageID       string    `json:"package_id"`
	Credits         int64     `json:"credits"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type paymentChanges struct {
	Payments []RemotePayment `json:"payments"`
}

// PurchaseAwarder credits a confirmed purchase exactly once per reference.
type PurchaseAwarder interface {
	AwardPurchasedCredits(ctx context.Context, in services.PurchaseInput) (*models.CreditPurchase, bool, error)
}

// PaymentSyncWorker polls confirmed payments and turns them into credits.
// Replaying a window is harmless because awards are keyed by reference.
type PaymentSyncWorker struct {
	awarder  PurchaseAwarder
	client   *syncClient
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cursor time.Time
}

func NewPaymentSyncWorker(awarder PurchaseAwarder, baseURL, serviceToken string) *PaymentSyncWorker {
	return &PaymentSyncWorker{
		awarder:  awarder,
		client:   newSyncClient(baseURL, "/api/v1/public/payments", serviceToken),
		interval: 30 * time.Second,
		log:      observability.NewLogger("payment-sync"),
		cursor:   time.Now().UTC().Add(-24 * time.Hour),
	}
}

func (w *PaymentSyncWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("🔁 starting payment sync worker")
	go w.run(ctx)
}

func (w *PaymentSyncWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ payment sync worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("payment sync failed")
			}
		}
	}
}

// SyncOnce awards every succeeded payment in the next window and returns how
// many were newly credited. Payments rejected as invalid are logged and
// skipped; any other failure holds the cursor so the window is retried.
func (w *PaymentSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changes paymentChanges
	if err := w.client.fetch(ctx, w.cursor, &changes); err != nil {
		return 0, err
	}

	latest := w.cursor
	awarded, retry := 0, false
	for _, p := range changes.Payments {
		if p.Status != paymentSucceeded {
			continue
		}
		_, created, err := w.awarder.AwardPurchasedCredits(ctx, services.PurchaseInput{
			UserID:          p.UserID,
			PackageID:       p.PackageID,
			Credits:         p.Credits,
			AmountPaidCents: p.AmountPaidCents,
			Reference:       p.Reference,
		})
		switch {
		case err == nil:
			if created {
				awarded++
			}
		case services.Kind(err) == services.KindValidation || services.Kind(err) == services.KindNotFound:
			w.log.Warn().Err(err).Str("reference", p.Reference).Msg("skipping unusable payment")
		default:
			retry = true
			w.log.Error().Err(err).Str("reference", p.Reference).Msg("failed to award payment")
			continue
		}
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}

	if !retry {
		w.cursor = latest
	}
	if len(changes.Payments) > 0 {
		w.log.Info().
			Int("received", len(changes.Payments)).
			Int("awarded", awarded).
			Bool("retry", retry).
			Msg("✅ payments synced")
	}
	return awarded, nil
}
