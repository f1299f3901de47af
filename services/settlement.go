// services/settlement.go
package services

import (
	"fmt"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PolicyWager            = "wager"
	PolicyCampaign         = "campaign"
	PolicyCampaignDepleted = "campaign_depleted"
)

// Settlement is the pure outcome of a wager match.
type Settlement struct {
	TotalPot     int64 `json:"total_pot"`
	PlatformFee  int64 `json:"platform_fee"`
	WinnerPayout int64 `json:"winner_payout"`
}

// CalculateWagerSettlement splits a pot of two equal stakes. The fee is
// floored, so rounding always favors the winner.
func CalculateWagerSettlement(wager, feePercent int64) Settlement {
	pot := 2 * wager
	fee := pot * feePercent / 100
	return Settlement{
		TotalPot:     pot,
		PlatformFee:  fee,
		WinnerPayout: pot - fee,
	}
}

// SettlementResult reports what a completed match paid out.
type SettlementResult struct {
	Policy       string `json:"policy"`
	WinnerID     string `json:"winner_id"`
	LoserID      string `json:"loser_id"`
	WinnerPayout int64  `json:"winner_payout"`
	PlatformFee  int64  `json:"platform_fee"`
	Reward       int64  `json:"reward"`
}

// settle applies the payout policy for m and bumps team win/loss counters.
// It must run inside the transaction that moves the match to completed.
func settle(tx *gorm.DB, ledger *Ledger, feePercent int64, m *models.Match, winnerID string) (*SettlementResult, error) {
	loserID := m.Opponent(winnerID)
	if loserID == "" {
		return nil, fmt.Errorf("%w: %s is not in match %s", ErrInvalidWinner, winnerID, m.ID)
	}

	var (
		result *SettlementResult
		err    error
	)
	if m.IsCampaign() {
		result, err = settleCampaign(tx, ledger, m, winnerID, loserID)
	} else {
		result, err = settleWager(tx, ledger, feePercent, m, winnerID, loserID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Team{}).Where("id = ?", winnerID).
		Update("wins", gorm.Expr("wins + 1")).Error; err != nil {
		return nil, fmt.Errorf("record win: %w", err)
	}
	if err := tx.Model(&models.Team{}).Where("id = ?", loserID).
		Update("losses", gorm.Expr("losses + 1")).Error; err != nil {
		return nil, fmt.Errorf("record loss: %w", err)
	}
	return result, nil
}

func settleWager(tx *gorm.DB, ledger *Ledger, feePercent int64, m *models.Match, winnerID, loserID string) (*SettlementResult, error) {
	s := CalculateWagerSettlement(m.WagerCredits, feePercent)
	matchID := m.ID

	if s.WinnerPayout > 0 {
		if _, err := ledger.Credit(tx, TeamCredits(winnerID), s.WinnerPayout, Entry{
			Type:        models.TransactionTypeWagerWin,
			MatchID:     &matchID,
			Description: fmt.Sprintf("Won wager match: %s", utils.FormatCredits(s.WinnerPayout)),
		}); err != nil {
			return nil, err
		}
	}
	if s.PlatformFee > 0 {
		if _, err := ledger.RecordUnattached(tx, s.PlatformFee, Entry{
			Type:        models.TransactionTypePlatformFee,
			MatchID:     &matchID,
			Description: fmt.Sprintf("Platform fee (%d%%) on %s pot", feePercent, utils.FormatCredits(s.TotalPot)),
		}); err != nil {
			return nil, err
		}
	}

	return &SettlementResult{
		Policy:       PolicyWager,
		WinnerID:     winnerID,
		LoserID:      loserID,
		WinnerPayout: s.WinnerPayout,
		PlatformFee:  s.PlatformFee,
	}, nil
}

// settleCampaign pays the fixed reward out of the pool when the pool still
// covers it. An exhausted pool completes the match without a payout.
func settleCampaign(tx *gorm.DB, ledger *Ledger, m *models.Match, winnerID, loserID string) (*SettlementResult, error) {
	var campaign models.Campaign
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", *m.CampaignID).
		First(&campaign).Error; err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", *m.CampaignID, err)
	}

	reward := campaign.RewardPerWin
	res := tx.Model(&models.Campaign{}).
		Where("id = ? AND remaining_pool_credits >= ?", campaign.ID, reward).
		Update("remaining_pool_credits", gorm.Expr("remaining_pool_credits - ?", reward))
	if res.Error != nil {
		return nil, fmt.Errorf("draw from campaign pool: %w", res.Error)
	}
	paid := res.RowsAffected == 1

	result := &SettlementResult{
		Policy:   PolicyCampaign,
		WinnerID: winnerID,
		LoserID:  loserID,
	}
	awarded := int64(0)

	if paid {
		matchID := m.ID
		if _, err := ledger.Credit(tx, TeamCredits(winnerID), reward, Entry{
			Type:        models.TransactionTypeCampaignReward,
			MatchID:     &matchID,
			Description: fmt.Sprintf("Campaign reward from %s: %s", campaign.Name, utils.FormatCredits(reward)),
		}); err != nil {
			return nil, err
		}
		if err := tx.Model(&models.CampaignParticipant{}).
			Where("campaign_id = ? AND team_id = ?", campaign.ID, winnerID).
			Updates(map[string]interface{}{
				"matches_won":    gorm.Expr("matches_won + 1"),
				"matches_played": gorm.Expr("matches_played + 1"),
				"credits_won":    gorm.Expr("credits_won + ?", reward),
			}).Error; err != nil {
			return nil, fmt.Errorf("update winner participant: %w", err)
		}
		if err := tx.Model(&models.CampaignParticipant{}).
			Where("campaign_id = ? AND team_id = ?", campaign.ID, loserID).
			Update("matches_played", gorm.Expr("matches_played + 1")).Error; err != nil {
			return nil, fmt.Errorf("update loser participant: %w", err)
		}
		awarded = reward
		result.Reward = reward
	} else {
		result.Policy = PolicyCampaignDepleted
		observability.CampaignPoolDepletions.Inc()
	}

	if err := tx.Model(&models.CampaignMatch{}).
		Where("match_id = ?", m.ID).
		Updates(map[string]interface{}{
			"winner_id":      winnerID,
			"reward_awarded": awarded,
		}).Error; err != nil {
		return nil, fmt.Errorf("record campaign match result: %w", err)
	}
	return result, nil
}

// completeMatch is the compare-and-set that closes a match.
func completeMatch(tx *gorm.DB, m *models.Match, from models.MatchStatus, winnerID string, extra map[string]interface{}) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       models.MatchStatusCompleted,
		"winner_id":    winnerID,
		"completed_at": now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := casMatch(tx, m.ID, from, models.MatchStatusCompleted, updates); err != nil {
		return err
	}
	m.Status = models.MatchStatusCompleted
	m.WinnerID = &winnerID
	m.CompletedAt = &now
	return nil
}

// casMatch moves a match from one status to another only if it is still in
// the expected status. A lost race reports ErrInvalidState.
func casMatch(tx *gorm.DB, matchID string, from, to models.MatchStatus, updates map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return invalidState("match cannot move from %s to %s", from, to)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := tx.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update match %s: %w", matchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return invalidState("match %s is no longer %s", matchID, from)
	}
	return nil
}
