// services/withdrawal_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clan-wager-system/config"
	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalService reserves withdrawable credits on request and either lets
// them leave (approve) or puts them back (reject).
type WithdrawalService struct {
	DB     *gorm.DB
	Ledger *Ledger
	Policy config.Policy
	Events Publisher
	log    zerolog.Logger
}

func NewWithdrawalService(db *gorm.DB, ledger *Ledger, policy config.Policy, events Publisher) *WithdrawalService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &WithdrawalService{
		DB:     db,
		Ledger: ledger,
		Policy: policy,
		Events: events,
		log:    observability.NewLogger("withdrawals"),
	}
}

// Quote is what a withdrawal of a given size costs and pays.
type Quote struct {
	Credits        int64  `json:"credits"`
	FeeCredits     int64  `json:"fee_credits"`
	TotalDeducted  int64  `json:"total_deducted"`
	AmountUSDCents int64  `json:"amount_usd_cents"`
	AmountUSD      string `json:"amount_usd"`
}

func (s *WithdrawalService) Quote(credits int64) Quote {
	cents := utils.CreditsToUSDCents(credits, s.Policy.USDCentsPer100Credits)
	return Quote{
		Credits:        credits,
		FeeCredits:     s.Policy.WithdrawalFeeCredits,
		TotalDeducted:  credits + s.Policy.WithdrawalFeeCredits,
		AmountUSDCents: cents,
		AmountUSD:      utils.FormatUSD(cents),
	}
}

// RequestWithdrawal reserves credits plus the fee from the caller's
// withdrawable balance and files a pending request.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, caller Caller, credits int64, bank models.BankDetails) (*models.WithdrawalRequest, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if credits < s.Policy.MinWithdrawalCredits {
		return nil, invalid("minimum withdrawal is %s", utils.FormatCredits(s.Policy.MinWithdrawalCredits))
	}
	bank.BankName = strings.TrimSpace(bank.BankName)
	bank.AccountNumber = strings.TrimSpace(bank.AccountNumber)
	bank.AccountName = strings.TrimSpace(bank.AccountName)
	if !bank.Complete() {
		return nil, invalid("bank name, account number and account name are required")
	}
	details, err := json.Marshal(bank)
	if err != nil {
		return nil, fmt.Errorf("encode bank details: %w", err)
	}

	q := s.Quote(credits)
	req := &models.WithdrawalRequest{
		ID:               uuid.NewString(),
		UserID:           caller.UserID,
		CreditsRequested: credits,
		FeeCredits:       q.FeeCredits,
		NetCredits:       credits,
		AmountUSDCents:   q.AmountUSDCents,
		Status:           models.WithdrawalStatusPending,
		BankDetails:      string(details),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		_, err := s.Ledger.Debit(tx, UserWithdrawable(caller.UserID), q.TotalDeducted, Entry{
			Type:         models.TransactionTypeWithdrawalRequest,
			WithdrawalID: &req.ID,
			Description: fmt.Sprintf("Withdrawal requested: %s + %s fee ($%s)",
				utils.FormatCredits(credits), utils.FormatCredits(q.FeeCredits), q.AmountUSD),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.Withdrawals.WithLabelValues("requested").Inc()
	s.log.Info().
		Str("withdrawal_id", req.ID).
		Str("user_id", req.UserID).
		Int64("credits", credits).
		Int64("usd_cents", req.AmountUSDCents).
		Msg("withdrawal requested")
	s.Events.Publish(ctx, Event{Type: EventWithdrawalPending, UserID: req.UserID, Payload: req})
	return req, nil
}

// ApproveWithdrawal finalizes a pending request. The reserved credits were
// already removed at request time.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, caller Caller, id string, notes *string) (*models.WithdrawalRequest, error) {
	return s.process(ctx, caller, id, models.WithdrawalStatusApproved, notes)
}

// RejectWithdrawal refunds the reserved credits and fee.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, caller Caller, id string, notes *string) (*models.WithdrawalRequest, error) {
	return s.process(ctx, caller, id, models.WithdrawalStatusRejected, notes)
}

func (s *WithdrawalService) process(ctx context.Context, caller Caller, id string, to models.WithdrawalStatus, notes *string) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireAdmin(tx, caller); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("withdrawal", id)
			}
			return err
		}
		if req.Status != models.WithdrawalStatusPending {
			return invalidState("withdrawal is already %s", req.Status)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       to,
			"processed_by": caller.UserID,
			"processed_at": now,
		}
		if notes != nil {
			updates["admin_notes"] = *notes
		}
		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidState("withdrawal %s is no longer pending", id)
		}

		if to == models.WithdrawalStatusRejected {
			if _, err := s.Ledger.Credit(tx, UserWithdrawable(req.UserID), req.ReservedCredits(), Entry{
				Type:         models.TransactionTypeWithdrawalRefund,
				WithdrawalID: &req.ID,
				Description:  fmt.Sprintf("Withdrawal rejected, refunded %s", utils.FormatCredits(req.ReservedCredits())),
			}); err != nil {
				return err
			}
		}

		req.Status = to
		req.ProcessedBy = &caller.UserID
		req.ProcessedAt = &now
		if notes != nil {
			req.AdminNotes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.Withdrawals.WithLabelValues(string(to)).Inc()
	s.log.Info().
		Str("withdrawal_id", id).
		Str("status", string(to)).
		Str("admin", caller.UserID).
		Msg("withdrawal processed")
	evt := EventWithdrawalApproved
	if to == models.WithdrawalStatusRejected {
		evt = EventWithdrawalRejected
	}
	s.Events.Publish(ctx, Event{Type: evt, UserID: req.UserID, Payload: &req})
	return &req, nil
}

func (s *WithdrawalService) UserWithdrawals(userID string) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *WithdrawalService) ListWithdrawals(ctx context.Context, caller Caller, status models.WithdrawalStatus) ([]models.WithdrawalRequest, error) {
	db := s.DB.WithContext(ctx)
	if err := requireAdmin(db, caller); err != nil {
		return nil, err
	}
	q := db.Model(&models.WithdrawalRequest{})
	if status != "" {
		if !status.Valid() {
			return nil, invalid("unknown withdrawal status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var out []models.WithdrawalRequest
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}
