package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/services"
	"clan-wager-system/testutil"
)

// feed serves a fixed JSON body and records the since values it was asked for.
type feed struct {
	mu     sync.Mutex
	body   interface{}
	status int
	since  []string
	tokens []string
}

func (f *feed) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.since = append(f.since, r.URL.Query().Get("since"))
		f.tokens = append(f.tokens, r.Header.Get("X-Service-Token"))
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(f.body); err != nil {
			t.Errorf("encode: %v", err)
		}
	}
}

func strptr(s string) *string { return &s }

func TestUserSyncWorker_UpsertsProfilesOnly(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateUser(t, db, 700, 40)
	updated := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	f := &feed{body: profileChanges{Users: []RemoteProfile{
		{ID: existing.ID, Email: strptr("ada@example.com"), FirstName: strptr("Ada"), Roles: []string{"admin"}, UpdatedAt: updated},
		{ID: "new-user", Email: strptr("bo@example.com"), UpdatedAt: updated.Add(-time.Hour)},
	}}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	w := NewUserSyncWorker(db, srv.URL, "svc-token")
	n, err := w.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("upserted = %d, want 2", n)
	}

	got := testutil.ReloadUser(t, db, existing.ID)
	if got.Email == nil || *got.Email != "ada@example.com" || !got.IsAdmin {
		t.Errorf("profile not mirrored: %+v", got)
	}
	if got.Credits != 700 || got.WithdrawableCredits != 40 {
		t.Errorf("balances changed to %d/%d", got.Credits, got.WithdrawableCredits)
	}
	if fresh := testutil.ReloadUser(t, db, "new-user"); fresh.Credits != 0 {
		t.Errorf("new user credits = %d, want 0", fresh.Credits)
	}

	if _, err := w.SyncOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.since[0] != "0001-01-01T00:00:00Z" || f.since[1] != updated.Format(time.RFC3339) {
		t.Errorf("since values = %v", f.since)
	}
	if f.tokens[0] != "svc-token" {
		t.Errorf("service token = %q", f.tokens[0])
	}
}

func TestUserSyncWorker_ServiceErrorKeepsCursor(t *testing.T) {
	db := testutil.NewDB(t)
	f := &feed{status: http.StatusBadGateway}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	w := NewUserSyncWorker(db, srv.URL, "svc-token")
	if _, err := w.SyncOnce(context.Background()); err == nil {
		t.Fatal("expected an error for a 502")
	}
	if !w.cursor.IsZero() {
		t.Errorf("cursor moved to %v", w.cursor)
	}
}

type fakeAwarder struct {
	wallet *services.WalletService
	fail   map[string]error
}

func (a fakeAwarder) AwardPurchasedCredits(ctx context.Context, in services.PurchaseInput) (*models.CreditPurchase, bool, error) {
	if err, ok := a.fail[in.Reference]; ok {
		return nil, false, err
	}
	return a.wallet.AwardPurchasedCredits(ctx, in)
}

func TestPaymentSyncWorker_AwardsSucceededPaymentsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, 0, 0)
	wallet := services.NewWalletService(db, services.NewLedger(db), nil)
	paid := time.Now().UTC().Truncate(time.Second)

	f := &feed{body: paymentChanges{Payments: []RemotePayment{
		{Reference: "pay_1", UserID: user.ID, PackageID: "starter", Status: "succeeded", AmountPaidCents: 500, UpdatedAt: paid},
		{Reference: "pay_2", UserID: user.ID, Credits: 250, Status: "pending", UpdatedAt: paid},
		{Reference: "", UserID: user.ID, Credits: 10, Status: "succeeded", UpdatedAt: paid},
	}}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	w := NewPaymentSyncWorker(wallet, srv.URL, "svc-token")
	n, err := w.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if n != 1 {
		t.Errorf("awarded = %d, want 1", n)
	}
	if got := testutil.ReloadUser(t, db, user.ID).Credits; got != 500 {
		t.Errorf("credits = %d, want 500", got)
	}
	if !w.cursor.Equal(paid) {
		t.Errorf("cursor = %v, want %v", w.cursor, paid)
	}

	// Replaying the same feed credits nothing new.
	w.cursor = time.Time{}
	n, err = w.SyncOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("replay = %d, %v; want 0", n, err)
	}
	if got := testutil.ReloadUser(t, db, user.ID).Credits; got != 500 {
		t.Errorf("credits after replay = %d, want 500", got)
	}
}

func TestPaymentSyncWorker_TransientFailureHoldsCursor(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, 0, 0)
	wallet := services.NewWalletService(db, services.NewLedger(db), nil)
	paid := time.Now().UTC().Truncate(time.Second)

	f := &feed{body: paymentChanges{Payments: []RemotePayment{
		{Reference: "pay_ok", UserID: user.ID, Credits: 100, Status: "succeeded", UpdatedAt: paid},
		{Reference: "pay_down", UserID: user.ID, Credits: 100, Status: "succeeded", UpdatedAt: paid},
	}}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	awarder := fakeAwarder{wallet: wallet, fail: map[string]error{"pay_down": context.DeadlineExceeded}}
	w := NewPaymentSyncWorker(awarder, srv.URL, "svc-token")
	before := w.cursor

	n, err := w.SyncOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("SyncOnce() = %d, %v; want 1", n, err)
	}
	if !w.cursor.Equal(before) {
		t.Errorf("cursor advanced to %v despite a failed award", w.cursor)
	}
}
