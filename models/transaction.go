// models/transaction.go
package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrLedgerImmutable is returned by the hooks that guard ledger rows.
var ErrLedgerImmutable = errors.New("ledger entries are append-only")

// TransactionType names the business reason for a credit movement.
type TransactionType string

const (
	TransactionTypeWagerLock         TransactionType = "wager_lock"
	TransactionTypeWagerRefund       TransactionType = "wager_refund"
	TransactionTypeWagerWin          TransactionType = "wager_win"
	TransactionTypePlatformFee       TransactionType = "platform_fee"
	TransactionTypeCampaignReward    TransactionType = "campaign_reward"
	TransactionTypeWithdrawalRequest TransactionType = "withdrawal_request"
	TransactionTypeWithdrawalRefund  TransactionType = "withdrawal_refund"
	TransactionTypeTeamContribution  TransactionType = "team_contribution"
	TransactionTypeTeamPayout        TransactionType = "team_payout"
	TransactionTypeCreditPurchase    TransactionType = "credit_purchase"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeWagerLock, TransactionTypeWagerRefund, TransactionTypeWagerWin,
		TransactionTypePlatformFee, TransactionTypeCampaignReward, TransactionTypeWithdrawalRequest,
		TransactionTypeWithdrawalRefund, TransactionTypeTeamContribution, TransactionTypeTeamPayout,
		TransactionTypeCreditPurchase:
		return true
	}
	return false
}

// Transaction is one append-only ledger entry. Credits is the signed delta
// applied to the referenced account; platform fee entries reference no account.
type Transaction struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID       *string         `gorm:"index" json:"user_id,omitempty"`
	TeamID       *string         `gorm:"index" json:"team_id,omitempty"`
	MatchID      *string         `gorm:"index" json:"match_id,omitempty"`
	WithdrawalID *string         `gorm:"index" json:"withdrawal_id,omitempty"`
	Type         TransactionType `gorm:"type:varchar(30);not null;index" json:"type"`
	Credits      int64           `gorm:"not null" json:"credits"`
	CreditsAfter *int64          `json:"credits_after,omitempty"`
	Description  string          `gorm:"type:text" json:"description"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// BeforeUpdate rejects any attempt to rewrite history.
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

// BeforeDelete rejects deletes of ledger rows.
func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}
