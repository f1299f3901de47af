package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/testutil"

	"gorm.io/gorm"
)

func TestCalculateWagerSettlement(t *testing.T) {
	tests := []struct {
		wager, fee int64
		want       Settlement
	}{
		{100, 10, Settlement{TotalPot: 200, PlatformFee: 20, WinnerPayout: 180}},
		{5, 10, Settlement{TotalPot: 10, PlatformFee: 1, WinnerPayout: 9}},
		{3, 10, Settlement{TotalPot: 6, PlatformFee: 0, WinnerPayout: 6}},
		{7, 15, Settlement{TotalPot: 14, PlatformFee: 2, WinnerPayout: 12}},
		{250, 0, Settlement{TotalPot: 500, PlatformFee: 0, WinnerPayout: 500}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%d%%", tt.wager, tt.fee), func(t *testing.T) {
			got := CalculateWagerSettlement(tt.wager, tt.fee)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.PlatformFee+got.WinnerPayout != got.TotalPot {
				t.Errorf("fee + payout != pot: %+v", got)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{notFound("match", "x"), KindNotFound},
		{ErrNotTeamMember, KindForbidden},
		{ErrRematchLimit, KindInvalidState},
		{ErrPoolDepleted, KindInvalidState},
		{fmt.Errorf("lock: %w", ErrInsufficientFunds), KindInsufficientFunds},
		{ErrInvalidWinner, KindInvalidWinner},
		{invalid("bad %s", "input"), KindValidation},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLedger_DebitIsConditional(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, 50, 0)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Debit(tx, UserCredits(user.ID), 60, Entry{Type: models.TransactionTypeTeamContribution})
		return err
	})
	wantErr(t, err, ErrInsufficientFunds)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Debit(tx, UserCredits("ghost"), 1, Entry{Type: models.TransactionTypeTeamContribution})
		return err
	})
	wantErr(t, err, ErrNotFound)

	var entry *models.Transaction
	err = f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = f.ledger.Debit(tx, UserCredits(user.ID), 50, Entry{Type: models.TransactionTypeTeamContribution})
		return err
	})
	if err != nil {
		t.Fatalf("Debit() error = %v", err)
	}
	if entry.Credits != -50 || entry.CreditsAfter == nil || *entry.CreditsAfter != 0 {
		t.Errorf("entry = %+v, want -50 leaving 0", entry)
	}
	if entry.UserID == nil || *entry.UserID != user.ID || entry.TeamID != nil {
		t.Errorf("entry account = user %v team %v", entry.UserID, entry.TeamID)
	}
}

func TestLedger_EntriesAreImmutable(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, 0, 0)
	var entry *models.Transaction
	f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = f.ledger.Credit(tx, UserCredits(user.ID), 25, Entry{Type: models.TransactionTypeCreditPurchase})
		return err
	})
	if entry == nil {
		t.Fatal("Credit() returned no entry")
	}

	if err := f.db.Model(entry).Update("credits", 999).Error; !errors.Is(err, models.ErrLedgerImmutable) {
		t.Errorf("update error = %v, want ErrLedgerImmutable", err)
	}
	if err := f.db.Delete(entry).Error; !errors.Is(err, models.ErrLedgerImmutable) {
		t.Errorf("delete error = %v, want ErrLedgerImmutable", err)
	}
}

func TestLedger_RejectsUnknownEntryType(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, 50, 0)
	bogus := Entry{Type: models.TransactionType("bonus")}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Debit(tx, UserCredits(user.ID), 10, bogus)
		return err
	})
	wantErr(t, err, ErrValidation)
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.RecordUnattached(tx, 10, bogus)
		return err
	})
	wantErr(t, err, ErrValidation)

	if got := testutil.ReloadUser(t, f.db, user.ID).Credits; got != 50 {
		t.Errorf("credits = %d, want 50", got)
	}
}

func TestLedger_ReconcileFlagsUnbalancedMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.side(t, "Alpha", 500)
	b := f.side(t, "Bravo", 300)
	m := f.activeMatch(t, a, b, 100)
	f.matches.ConfirmWinner(ctx, a.caller(), m.ID, a.team.ID)
	f.matches.ConfirmWinner(ctx, b.caller(), m.ID, a.team.ID)

	imbalances, err := f.ledger.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(imbalances) != 0 {
		t.Fatalf("Reconcile() = %+v, want balanced", imbalances)
	}

	// A stray entry written outside settlement breaks conservation.
	matchID := m.ID
	f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.RecordUnattached(tx, 7, Entry{Type: models.TransactionTypePlatformFee, MatchID: &matchID})
		return err
	})
	imbalances, err = f.ledger.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if len(imbalances) != 1 || imbalances[0].MatchID != m.ID || imbalances[0].Net != 7 {
		t.Errorf("Reconcile() = %+v, want one imbalance of 7", imbalances)
	}
}

func TestLedger_Listings(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, 0, 0)
	start := time.Now().UTC().Add(-time.Second)
	for i := 1; i <= 5; i++ {
		amount := int64(i)
		f.db.Transaction(func(tx *gorm.DB) error {
			_, err := f.ledger.Credit(tx, UserCredits(user.ID), amount, Entry{Type: models.TransactionTypeCreditPurchase})
			return err
		})
	}

	page, total, err := f.ledger.UserEntries(user.ID, Page{Page: 1, Size: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("UserEntries() = %d of %d, want 2 of 5", len(page), total)
	}
	if page[0].Credits != 5 {
		t.Errorf("newest entry = %d, want 5", page[0].Credits)
	}

	since, err := f.ledger.UserEntriesSince(user.ID, start)
	if err != nil || len(since) != 5 {
		t.Errorf("UserEntriesSince() = %d, %v; want 5", len(since), err)
	}
	between, err := f.ledger.EntriesBetween(start, time.Now().UTC().Add(time.Second))
	if err != nil || len(between) != 5 {
		t.Errorf("EntriesBetween() = %d, %v; want 5", len(between), err)
	}
}
