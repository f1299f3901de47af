// models/campaign.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	}
	return false
}

// Campaign is a time-boxed competition paying a fixed reward per win out of a
// fixed prize pool. RemainingPoolCredits only ever goes down, and only when a
// reward is paid.
type Campaign struct {
	ID                   string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name                 string         `gorm:"type:varchar(200);not null" json:"name"`
	Description          string         `gorm:"type:text" json:"description"`
	Game                 string         `gorm:"type:varchar(50);not null;default:'bloodstrike'" json:"game"`
	PrizePoolCredits     int64          `gorm:"not null;check:prize_pool_credits >= 0" json:"prize_pool_credits"`
	RemainingPoolCredits int64          `gorm:"not null;check:remaining_pool_credits >= 0" json:"remaining_pool_credits"`
	RewardPerWin         int64          `gorm:"not null;check:reward_per_win > 0" json:"reward_per_win"`
	Status               CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	StartDate            time.Time      `gorm:"not null" json:"start_date"`
	EndDate              time.Time      `gorm:"not null" json:"end_date"`
	CreatedBy            string         `gorm:"not null" json:"created_by"`

	// Calculated fields (not stored in DB)
	ParticipantsCount int64 `json:"participants_count,omitempty" gorm:"-"`

	Timestamps
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CanPayReward reports whether the pool still covers one more reward.
func (c *Campaign) CanPayReward() bool {
	return c.RemainingPoolCredits >= c.RewardPerWin
}

// CampaignParticipant tracks one team inside one campaign. Counters are only
// changed by match resolution.
type CampaignParticipant struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID    string    `gorm:"uniqueIndex:idx_campaign_team;not null" json:"campaign_id"`
	TeamID        string    `gorm:"uniqueIndex:idx_campaign_team;index;not null" json:"team_id"`
	CreditsWon    int64     `gorm:"not null;default:0" json:"credits_won"`
	MatchesPlayed int64     `gorm:"not null;default:0" json:"matches_played"`
	MatchesWon    int64     `gorm:"not null;default:0" json:"matches_won"`
	JoinedAt      time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Team *Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
}

func (p *CampaignParticipant) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// CampaignMatch links a match to its campaign and is what the rematch cap
// counts. Team1/Team2 are stored in challenge order; lookups are unordered.
type CampaignMatch struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID    string    `gorm:"index;not null" json:"campaign_id"`
	MatchID       string    `gorm:"uniqueIndex;not null" json:"match_id"`
	Team1ID       string    `gorm:"index;not null" json:"team1_id"`
	Team2ID       string    `gorm:"index;not null" json:"team2_id"`
	WinnerID      *string   `json:"winner_id,omitempty"`
	RewardAwarded *int64    `json:"reward_awarded,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (m *CampaignMatch) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
