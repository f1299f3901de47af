// models/withdrawal.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected:
		return true
	}
	return false
}

// WithdrawalRequest reserves withdrawable credits until an admin approves
// (funds leave the system) or rejects (funds come back).
type WithdrawalRequest struct {
	ID               string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID           string           `gorm:"index;not null" json:"user_id"`
	CreditsRequested int64            `gorm:"not null;check:credits_requested > 0" json:"credits_requested"`
	FeeCredits       int64            `gorm:"not null;default:0" json:"fee_credits"`
	NetCredits       int64            `gorm:"not null" json:"net_credits"`
	AmountUSDCents   int64            `gorm:"column:amount_usd_cents;not null" json:"amount_usd_cents"`
	Status           WithdrawalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	BankDetails      string           `gorm:"type:text;not null" json:"bank_details"`
	AdminNotes       *string          `gorm:"type:text" json:"admin_notes,omitempty"`
	ProcessedBy      *string          `json:"processed_by,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`

	Timestamps
}

func (w *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// ReservedCredits is what was taken from withdrawable credits at request time.
func (w *WithdrawalRequest) ReservedCredits() int64 {
	return w.CreditsRequested + w.FeeCredits
}

// BankDetails is the payout destination captured at request time. The core
// stores it verbatim as JSON.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

func (b BankDetails) Complete() bool {
	return b.BankName != "" && b.AccountNumber != "" && b.AccountName != ""
}

// CreditPurchase records a confirmed external payment. Reference is the
// payment provider's id and makes crediting idempotent.
type CreditPurchase struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID          string    `gorm:"index;not null" json:"user_id"`
	PackageID       string    `gorm:"type:varchar(50)" json:"package_id"`
	CreditsAwarded  int64     `gorm:"not null" json:"credits_awarded"`
	AmountPaidCents int64     `gorm:"not null;default:0" json:"amount_paid_cents"`
	Reference       string    `gorm:"uniqueIndex;not null" json:"reference"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p *CreditPurchase) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Team{},
		&TeamMember{},
		&Match{},
		&Transaction{},
		&Campaign{},
		&CampaignParticipant{},
		&CampaignMatch{},
		&WithdrawalRequest{},
		&CreditPurchase{},
	}
}
