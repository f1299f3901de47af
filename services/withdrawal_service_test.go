package services

import (
	"context"
	"encoding/json"
	"testing"

	"clan-wager-system/models"
	"clan-wager-system/testutil"
)

var testBank = models.BankDetails{
	BankName:      "First Bank",
	AccountNumber: "0123456789",
	AccountName:   "Ada Player",
}

func TestWithdrawal_RejectRefundsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, 0, 200)
	caller := Caller{UserID: user.ID}

	req, err := f.withdrawals.RequestWithdrawal(ctx, caller, 100, testBank)
	if err != nil {
		t.Fatalf("RequestWithdrawal() error = %v", err)
	}
	if req.Status != models.WithdrawalStatusPending || req.FeeCredits != 5 || req.AmountUSDCents != 200 {
		t.Errorf("request = %+v, want pending with fee 5 and 200 cents", req)
	}
	var bank models.BankDetails
	if err := json.Unmarshal([]byte(req.BankDetails), &bank); err != nil || bank != testBank {
		t.Errorf("bank details = %q, %v", req.BankDetails, err)
	}
	if got := testutil.ReloadUser(t, f.db, user.ID).WithdrawableCredits; got != 95 {
		t.Fatalf("withdrawable after request = %d, want 95", got)
	}

	_, err = f.withdrawals.RejectWithdrawal(ctx, caller, req.ID, nil)
	wantErr(t, err, ErrForbidden)

	notes := "account name mismatch"
	admin := f.admin(t)
	rejected, err := f.withdrawals.RejectWithdrawal(ctx, admin, req.ID, &notes)
	if err != nil {
		t.Fatalf("RejectWithdrawal() error = %v", err)
	}
	if rejected.Status != models.WithdrawalStatusRejected || rejected.AdminNotes == nil || *rejected.AdminNotes != notes {
		t.Errorf("rejected = %+v", rejected)
	}
	if rejected.ProcessedBy == nil || *rejected.ProcessedBy != admin.UserID || rejected.ProcessedAt == nil {
		t.Errorf("processed fields not set: %+v", rejected)
	}
	if got := testutil.ReloadUser(t, f.db, user.ID).WithdrawableCredits; got != 200 {
		t.Errorf("withdrawable after reject = %d, want 200", got)
	}

	var entries []models.Transaction
	f.db.Where("withdrawal_id = ?", req.ID).Order("created_at ASC").Find(&entries)
	if len(entries) != 2 || entries[0].Credits != -105 || entries[1].Credits != 105 {
		t.Errorf("withdrawal entries = %+v, want -105 then +105", entries)
	}

	_, err = f.withdrawals.ApproveWithdrawal(ctx, admin, req.ID, nil)
	wantErr(t, err, ErrInvalidState)
	_, err = f.withdrawals.RejectWithdrawal(ctx, admin, req.ID, nil)
	wantErr(t, err, ErrInvalidState)
}

func TestWithdrawal_ApproveKeepsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, 0, 300)
	caller := Caller{UserID: user.ID}

	req, err := f.withdrawals.RequestWithdrawal(ctx, caller, 250, testBank)
	if err != nil {
		t.Fatal(err)
	}
	approved, err := f.withdrawals.ApproveWithdrawal(ctx, f.admin(t), req.ID, nil)
	if err != nil {
		t.Fatalf("ApproveWithdrawal() error = %v", err)
	}
	if approved.Status != models.WithdrawalStatusApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if got := testutil.ReloadUser(t, f.db, user.ID).WithdrawableCredits; got != 45 {
		t.Errorf("withdrawable = %d, want 45", got)
	}

	mine, err := f.withdrawals.UserWithdrawals(user.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("UserWithdrawals() = %d, %v", len(mine), err)
	}
}

func TestWithdrawal_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, 1000, 150)
	caller := Caller{UserID: user.ID}

	tests := []struct {
		name    string
		credits int64
		bank    models.BankDetails
		want    error
	}{
		{"below minimum", 99, testBank, ErrValidation},
		{"missing bank fields", 100, models.BankDetails{BankName: "First Bank"}, ErrValidation},
		{"blank bank fields", 100, models.BankDetails{BankName: " ", AccountNumber: " ", AccountName: " "}, ErrValidation},
		// 150 + 5 fee exceeds the withdrawable balance; spendable credits do not count.
		{"fee pushes over balance", 150, testBank, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.withdrawals.RequestWithdrawal(ctx, caller, tt.credits, tt.bank)
			wantErr(t, err, tt.want)
		})
	}

	var count int64
	f.db.Model(&models.WithdrawalRequest{}).Count(&count)
	if count != 0 {
		t.Errorf("failed requests left %d rows", count)
	}
	if got := testutil.ReloadUser(t, f.db, user.ID).WithdrawableCredits; got != 150 {
		t.Errorf("withdrawable = %d, want 150", got)
	}
}

func TestWithdrawal_QuoteAndAdminListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.withdrawals.Quote(1000)
	if q.TotalDeducted != 1005 || q.AmountUSDCents != 2000 || q.AmountUSD != "20.00" {
		t.Errorf("Quote(1000) = %+v", q)
	}

	user := testutil.CreateUser(t, f.db, 0, 500)
	if _, err := f.withdrawals.RequestWithdrawal(ctx, Caller{UserID: user.ID}, 100, testBank); err != nil {
		t.Fatal(err)
	}

	_, err := f.withdrawals.ListWithdrawals(ctx, Caller{UserID: user.ID}, "")
	wantErr(t, err, ErrForbidden)

	admin := f.admin(t)
	pending, err := f.withdrawals.ListWithdrawals(ctx, admin, models.WithdrawalStatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListWithdrawals() = %d, %v; want 1", len(pending), err)
	}
	_, err = f.withdrawals.ListWithdrawals(ctx, admin, "paid")
	wantErr(t, err, ErrValidation)
}
