// models/match.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchStatus is the lifecycle state of a wager between two teams.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusAccepted   MatchStatus = "accepted"
	MatchStatusActive     MatchStatus = "active"
	MatchStatusConfirming MatchStatus = "confirming"
	MatchStatusDisputed   MatchStatus = "disputed"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// matchTransitions is the complete set of allowed status moves.
// confirming -> confirming is the partial-confirmation self loop.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:    {MatchStatusAccepted, MatchStatusCancelled},
	MatchStatusAccepted:   {MatchStatusActive},
	MatchStatusActive:     {MatchStatusConfirming},
	MatchStatusConfirming: {MatchStatusConfirming, MatchStatusCompleted, MatchStatusDisputed},
	MatchStatusDisputed:   {MatchStatusCompleted},
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, allowed := range matchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for completed and cancelled matches.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusActive, MatchStatusConfirming,
		MatchStatusDisputed, MatchStatusCompleted, MatchStatusCancelled:
		return true
	}
	return false
}

// Match is a single wager. Rows are never deleted; completed and cancelled
// matches stay as history.
type Match struct {
	ID               string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ChallengerTeamID string      `gorm:"index;not null" json:"challenger_team_id"`
	ChallengedTeamID string      `gorm:"index;not null" json:"challenged_team_id"`
	WagerCredits     int64       `gorm:"not null;default:0;check:wager_credits >= 0" json:"wager_credits"`
	CampaignID       *string     `gorm:"index" json:"campaign_id,omitempty"`
	Status           MatchStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Game     string  `gorm:"type:varchar(50);not null;default:'bloodstrike'" json:"game"`
	GameMode string  `gorm:"type:varchar(50);not null;default:'standard'" json:"game_mode"`
	BestOf   int     `gorm:"not null;default:1" json:"best_of"`
	Message  *string `gorm:"type:text" json:"message,omitempty"`

	// ShareToken lets an unauthenticated party open the challenge from a link.
	ShareToken *string `gorm:"uniqueIndex" json:"share_token,omitempty"`

	// Each side's independent vote for the winner.
	ChallengerConfirmedWinner *string `json:"challenger_confirmed_winner,omitempty"`
	ChallengedConfirmedWinner *string `json:"challenged_confirmed_winner,omitempty"`

	WinnerID    *string    `gorm:"index" json:"winner_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ChallengerTeam *Team `gorm:"foreignKey:ChallengerTeamID" json:"challenger_team,omitempty"`
	ChallengedTeam *Team `gorm:"foreignKey:ChallengedTeamID" json:"challenged_team,omitempty"`

	Timestamps
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// IsCampaign reports whether the match settles from a campaign pool.
func (m *Match) IsCampaign() bool {
	return m.CampaignID != nil && *m.CampaignID != ""
}

// HasTeam reports whether teamID is one of the two participants.
func (m *Match) HasTeam(teamID string) bool {
	return teamID == m.ChallengerTeamID || teamID == m.ChallengedTeamID
}

// Opponent returns the other participant, or "" if teamID is not in the match.
func (m *Match) Opponent(teamID string) string {
	switch teamID {
	case m.ChallengerTeamID:
		return m.ChallengedTeamID
	case m.ChallengedTeamID:
		return m.ChallengerTeamID
	}
	return ""
}

// Consensus inspects both votes. bothVoted is false until each side has
// confirmed; agreed is true only when both votes name the same team.
func (m *Match) Consensus() (winnerID string, bothVoted, agreed bool) {
	if m.ChallengerConfirmedWinner == nil || m.ChallengedConfirmedWinner == nil {
		return "", false, false
	}
	if *m.ChallengerConfirmedWinner != *m.ChallengedConfirmedWinner {
		return "", true, false
	}
	return *m.ChallengerConfirmedWinner, true, true
}
