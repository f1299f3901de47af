// services/wallet_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CreditPackage is a purchasable bundle. Prices are in USD cents.
type CreditPackage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int64  `json:"credits"`
	Bonus      int64  `json:"bonus"`
	PriceCents int64  `json:"price_cents"`
	PriceUSD   string `json:"price_usd"`
}

func (p CreditPackage) TotalCredits() int64 {
	return p.Credits + p.Bonus
}

var creditPackages = []CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 500, PriceCents: 500},
	{ID: "squad", Name: "Squad", Credits: 1000, Bonus: 100, PriceCents: 1000},
	{ID: "clan", Name: "Clan", Credits: 2500, Bonus: 375, PriceCents: 2500},
	{ID: "warlord", Name: "Warlord", Credits: 5000, Bonus: 1000, PriceCents: 5000},
}

// WalletService moves credits between users and teams and records external
// purchases.
type WalletService struct {
	DB     *gorm.DB
	Ledger *Ledger
	Events Publisher
	log    zerolog.Logger
}

func NewWalletService(db *gorm.DB, ledger *Ledger, events Publisher) *WalletService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &WalletService{
		DB:     db,
		Ledger: ledger,
		Events: events,
		log:    observability.NewLogger("wallet"),
	}
}

func (s *WalletService) CreditPackages() []CreditPackage {
	out := make([]CreditPackage, len(creditPackages))
	for i, p := range creditPackages {
		p.PriceUSD = utils.FormatUSD(p.PriceCents)
		out[i] = p
	}
	return out
}

func (s *WalletService) CreditPackage(id string) (CreditPackage, bool) {
	for _, p := range s.CreditPackages() {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// ContributeToTeam moves the caller's credits into a team they belong to.
func (s *WalletService) ContributeToTeam(ctx context.Context, caller Caller, teamID string, credits int64) (*models.Team, error) {
	if credits <= 0 {
		return nil, invalid("contribution must be positive")
	}
	var team *models.Team
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := findTeam(tx, teamID)
		if err != nil {
			return err
		}
		if ok, err := isTeamMember(tx, t, caller.UserID); err != nil {
			return err
		} else if !ok {
			return ErrNotTeamMember
		}
		if _, err := s.Ledger.Debit(tx, UserCredits(caller.UserID), credits, Entry{
			Type:        models.TransactionTypeTeamContribution,
			Description: fmt.Sprintf("Contributed %s to %s", utils.FormatCredits(credits), t.Name),
		}); err != nil {
			return err
		}
		if _, err := s.Ledger.Credit(tx, TeamCredits(t.ID), credits, Entry{
			Type:        models.TransactionTypeTeamContribution,
			Description: fmt.Sprintf("Contribution of %s from member", utils.FormatCredits(credits)),
		}); err != nil {
			return err
		}
		team, err = findTeam(tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("team_id", teamID).Str("user_id", caller.UserID).Int64("credits", credits).Msg("team contribution")
	return team, nil
}

// PayoutFromTeam lets the team owner move team credits into a member's
// withdrawable balance.
func (s *WalletService) PayoutFromTeam(ctx context.Context, caller Caller, teamID, recipientID string, credits int64) (*models.Team, error) {
	if credits <= 0 {
		return nil, invalid("payout must be positive")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, invalid("recipient is required")
	}
	var team *models.Team
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := findTeam(tx, teamID)
		if err != nil {
			return err
		}
		if ok, err := isTeamOwner(tx, t, caller.UserID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: only the team owner can pay out team credits", ErrForbidden)
		}
		if ok, err := isTeamMember(tx, t, recipientID); err != nil {
			return err
		} else if !ok {
			return invalid("recipient is not a member of %s", t.Name)
		}
		if _, err := s.Ledger.Debit(tx, TeamCredits(t.ID), credits, Entry{
			Type:        models.TransactionTypeTeamPayout,
			Description: fmt.Sprintf("Payout of %s to member", utils.FormatCredits(credits)),
		}); err != nil {
			return err
		}
		if _, err := s.Ledger.Credit(tx, UserWithdrawable(recipientID), credits, Entry{
			Type:        models.TransactionTypeTeamPayout,
			Description: fmt.Sprintf("Payout of %s from %s", utils.FormatCredits(credits), t.Name),
		}); err != nil {
			return err
		}
		team, err = findTeam(tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("team_id", teamID).Str("recipient", recipientID).Int64("credits", credits).Msg("team payout")
	return team, nil
}

// PurchaseInput is a confirmed payment reported by the payment provider.
type PurchaseInput struct {
	UserID          string `json:"user_id"`
	PackageID       string `json:"package_id"`
	Credits         int64  `json:"credits"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
	Reference       string `json:"reference"`
}

// AwardPurchasedCredits credits a confirmed purchase exactly once per
// reference. A repeated reference returns the original purchase and false.
func (s *WalletService) AwardPurchasedCredits(ctx context.Context, in PurchaseInput) (*models.CreditPurchase, bool, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	if in.Reference == "" {
		return nil, false, invalid("payment reference is required")
	}
	if in.UserID == "" {
		return nil, false, invalid("user is required")
	}
	if in.Credits <= 0 {
		if pkg, ok := s.CreditPackage(in.PackageID); ok {
			in.Credits = pkg.TotalCredits()
		} else {
			return nil, false, invalid("credits must be positive")
		}
	}

	if existing, err := s.purchaseByReference(s.DB.WithContext(ctx), in.Reference); err != nil || existing != nil {
		return existing, false, err
	}

	purchase := &models.CreditPurchase{
		UserID:          in.UserID,
		PackageID:       in.PackageID,
		CreditsAwarded:  in.Credits,
		AmountPaidCents: in.AmountPaidCents,
		Reference:       in.Reference,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		_, err := s.Ledger.Credit(tx, UserCredits(in.UserID), in.Credits, Entry{
			Type:        models.TransactionTypeCreditPurchase,
			Description: fmt.Sprintf("Purchased %s", utils.FormatCredits(in.Credits)),
		})
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, lookupErr := s.purchaseByReference(s.DB.WithContext(ctx), in.Reference)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("user_id", in.UserID).
		Str("reference", in.Reference).
		Int64("credits", in.Credits).
		Msg("credits purchased")
	s.Events.Publish(ctx, Event{Type: EventCreditsPurchased, UserID: in.UserID, Payload: purchase})
	return purchase, true, nil
}

func (s *WalletService) purchaseByReference(db *gorm.DB, ref string) (*models.CreditPurchase, error) {
	var p models.CreditPurchase
	err := db.Where("reference = ?", ref).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Balances returns both of a user's balances.
func (s *WalletService) Balances(userID string) (*models.User, error) {
	var u models.User
	if err := s.DB.Select("id", "credits", "withdrawable_credits").Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, err
	}
	return &u, nil
}
