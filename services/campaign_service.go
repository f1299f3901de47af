// services/campaign_service.go
package services

import (
	"context"
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

// CampaignService manages campaign membership and the per-pair battle cap.
// Rewards are paid by match settlement.
type CampaignService struct {
	DB     *gorm.DB
	Policy config.Policy
	Events Publisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewCampaignService(db *gorm.DB, policy config.Policy, events Publisher) *CampaignService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &CampaignService{
		DB:     db,
		Policy: policy,
		Events: events,
		log:    observability.NewLogger("campaigns"),
		now:    time.Now,
	}
}

// CanBattle reports whether the unordered pair may play another campaign
// match, along with how many they have already played.
func (s *CampaignService) CanBattle(campaignID, teamA, teamB string) (bool, int64, error) {
	count, err := pairCount(s.DB, campaignID, teamA, teamB)
	if err != nil {
		return false, 0, err
	}
	return count < s.Policy.MaxCampaignBattles, count, nil
}

func pairCount(db *gorm.DB, campaignID, teamA, teamB string) (int64, error) {
	var count int64
	err := db.Model(&models.CampaignMatch{}).
		Where("campaign_id = ?", campaignID).
		Where("(team1_id = ? AND team2_id = ?) OR (team1_id = ? AND team2_id = ?)", teamA, teamB, teamB, teamA).
		Count(&count).Error
	return count, err
}

// JoinCampaign enrolls a team. Only the team owner may do this.
func (s *CampaignService) JoinCampaign(ctx context.Context, caller Caller, campaignID, teamID string) (*models.CampaignParticipant, error) {
	var participant *models.CampaignParticipant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := findCampaign(tx, campaignID, false)
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignStatusActive {
			return invalidState("campaign is %s, not active", campaign.Status)
		}
		team, err := findTeam(tx, teamID)
		if err != nil {
			return err
		}
		if ok, err := isTeamOwner(tx, team, caller.UserID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: only the team owner can join a campaign", ErrForbidden)
		}

		var existing int64
		if err := tx.Model(&models.CampaignParticipant{}).
			Where("campaign_id = ? AND team_id = ?", campaignID, teamID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyJoined
		}

		participant = &models.CampaignParticipant{CampaignID: campaignID, TeamID: teamID}
		if err := tx.Create(participant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyJoined
			}
			return fmt.Errorf("create participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("campaign_id", campaignID).Str("team_id", teamID).Msg("team joined campaign")
	s.Events.Publish(ctx, Event{Type: EventCampaignJoined, CampaignID: campaignID, TeamID: teamID})
	return participant, nil
}

type ChallengeInput struct {
	ChallengerTeamID string  `json:"challenger_team_id"`
	ChallengedTeamID string  `json:"challenged_team_id"`
	Game             string  `json:"game"`
	GameMode         string  `json:"game_mode"`
	BestOf           int     `json:"best_of"`
	Message          *string `json:"message,omitempty"`
}

// ChallengeInCampaign creates a stake-free pending match inside a campaign.
// The campaign row is locked so concurrent challenges for the same pair see
// each other's CampaignMatch rows.
func (s *CampaignService) ChallengeInCampaign(ctx context.Context, caller Caller, campaignID string, in ChallengeInput) (*models.Match, error) {
	mi := CreateMatchInput{
		ChallengerTeamID: in.ChallengerTeamID,
		ChallengedTeamID: in.ChallengedTeamID,
		Game:             in.Game,
		GameMode:         in.GameMode,
		BestOf:           in.BestOf,
		Message:          in.Message,
	}
	if err := mi.normalize(); err != nil {
		return nil, err
	}

	var match *models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := findCampaign(tx, campaignID, true)
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignStatusActive {
			return invalidState("campaign is %s, not active", campaign.Status)
		}
		if !campaign.CanPayReward() {
			return ErrPoolDepleted
		}

		challenger, err := findTeam(tx, mi.ChallengerTeamID)
		if err != nil {
			return err
		}
		challenged, err := findTeam(tx, mi.ChallengedTeamID)
		if err != nil {
			return err
		}
		if ok, err := isTeamMember(tx, challenger, caller.UserID); err != nil {
			return err
		} else if !ok {
			return ErrNotTeamMember
		}

		var joined int64
		if err := tx.Model(&models.CampaignParticipant{}).
			Where("campaign_id = ? AND team_id IN ?", campaignID, []string{challenger.ID, challenged.ID}).
			Count(&joined).Error; err != nil {
			return err
		}
		if joined != 2 {
			return invalid("both teams must join the campaign before battling")
		}

		count, err := pairCount(tx, campaignID, challenger.ID, challenged.ID)
		if err != nil {
			return err
		}
		if count >= s.Policy.MaxCampaignBattles {
			return ErrRematchLimit
		}

		token := utils.NewShareToken(challenger.Name, challenged.Name)
		cid := campaign.ID
		match = &models.Match{
			ID:               uuid.NewString(),
			ChallengerTeamID: challenger.ID,
			ChallengedTeamID: challenged.ID,
			WagerCredits:     0,
			CampaignID:       &cid,
			Status:           models.MatchStatusPending,
			Game:             mi.Game,
			GameMode:         mi.GameMode,
			BestOf:           mi.BestOf,
			Message:          mi.Message,
			ShareToken:       &token,
		}
		if err := tx.Create(match).Error; err != nil {
			return fmt.Errorf("create campaign match: %w", err)
		}
		return tx.Create(&models.CampaignMatch{
			CampaignID: cid,
			MatchID:    match.ID,
			Team1ID:    challenger.ID,
			Team2ID:    challenged.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("campaign_id", campaignID).
		Str("match_id", match.ID).
		Str("challenger", match.ChallengerTeamID).
		Str("challenged", match.ChallengedTeamID).
		Msg("campaign challenge created")
	s.Events.Publish(ctx, Event{Type: EventCampaignChallenge, CampaignID: campaignID, MatchID: match.ID, TeamID: match.ChallengedTeamID, Payload: match})
	return match, nil
}

type CreateCampaignInput struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Game             string    `json:"game"`
	PrizePoolCredits int64     `json:"prize_pool_credits"`
	RewardPerWin     int64     `json:"reward_per_win"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}

// CreateCampaign opens a campaign. It starts active when its start date has
// passed and as a draft otherwise.
func (s *CampaignService) CreateCampaign(ctx context.Context, caller Caller, in CreateCampaignInput) (*models.Campaign, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, invalid("name is required")
	case in.PrizePoolCredits <= 0:
		return nil, invalid("prize pool must be positive")
	case in.RewardPerWin <= 0:
		return nil, invalid("reward per win must be positive")
	case in.RewardPerWin > in.PrizePoolCredits:
		return nil, invalid("reward per win cannot exceed the prize pool")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return nil, invalid("start and end dates are required")
	case !in.EndDate.After(in.StartDate):
		return nil, invalid("end date must be after start date")
	}
	if in.Game == "" {
		in.Game = defaultGame
	}

	if err := requireAdmin(s.DB.WithContext(ctx), caller); err != nil {
		return nil, err
	}

	status := models.CampaignStatusDraft
	if !in.StartDate.After(s.now()) {
		status = models.CampaignStatusActive
	}
	campaign := &models.Campaign{
		Name:                 in.Name,
		Description:          in.Description,
		Game:                 in.Game,
		PrizePoolCredits:     in.PrizePoolCredits,
		RemainingPoolCredits: in.PrizePoolCredits,
		RewardPerWin:         in.RewardPerWin,
		Status:               status,
		StartDate:            in.StartDate.UTC(),
		EndDate:              in.EndDate.UTC(),
		CreatedBy:            caller.UserID,
	}
	if err := s.DB.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	s.log.Info().
		Str("campaign_id", campaign.ID).
		Str("status", string(status)).
		Int64("pool", campaign.PrizePoolCredits).
		Int64("reward_per_win", campaign.RewardPerWin).
		Msg("campaign created")
	s.Events.Publish(ctx, Event{Type: EventCampaignStatus, CampaignID: campaign.ID, Payload: campaign})
	return campaign, nil
}

// EndCampaign closes a campaign early. Matches already created can still be
// settled against whatever remains in the pool.
func (s *CampaignService) EndCampaign(ctx context.Context, caller Caller, campaignID string) (*models.Campaign, error) {
	return s.closeCampaign(ctx, caller, campaignID, models.CampaignStatusCompleted)
}

func (s *CampaignService) CancelCampaign(ctx context.Context, caller Caller, campaignID string) (*models.Campaign, error) {
	return s.closeCampaign(ctx, caller, campaignID, models.CampaignStatusCancelled)
}

func (s *CampaignService) closeCampaign(ctx context.Context, caller Caller, campaignID string, to models.CampaignStatus) (*models.Campaign, error) {
	db := s.DB.WithContext(ctx)
	if err := requireAdmin(db, caller); err != nil {
		return nil, err
	}
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaignID, []models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusActive}).
		Update("status", to)
	if res.Error != nil {
		return nil, res.Error
	}
	campaign, err := findCampaign(db, campaignID, false)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, invalidState("campaign is already %s", campaign.Status)
	}
	s.log.Info().Str("campaign_id", campaignID).Str("status", string(to)).Msg("campaign closed")
	s.Events.Publish(ctx, Event{Type: EventCampaignStatus, CampaignID: campaignID, Payload: campaign})
	return campaign, nil
}

// AdvanceLifecycle activates drafts whose start date has passed and completes
// active campaigns past their end date. It returns how many rows moved.
func (s *CampaignService) AdvanceLifecycle(ctx context.Context, now time.Time) (activated, completed int64, err error) {
	db := s.DB.WithContext(ctx)
	res := db.Model(&models.Campaign{}).
		Where("status = ? AND start_date <= ? AND end_date > ?", models.CampaignStatusDraft, now, now).
		Update("status", models.CampaignStatusActive)
	if res.Error != nil {
		return 0, 0, fmt.Errorf("activate campaigns: %w", res.Error)
	}
	activated = res.RowsAffected

	res = db.Model(&models.Campaign{}).
		Where("status IN ? AND end_date <= ?", []models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusActive}, now).
		Update("status", models.CampaignStatusCompleted)
	if res.Error != nil {
		return activated, 0, fmt.Errorf("complete campaigns: %w", res.Error)
	}
	return activated, res.RowsAffected, nil
}

func findCampaign(db *gorm.DB, id string, lock bool) (*models.Campaign, error) {
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c models.Campaign
	if err := q.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("campaign", id)
		}
		return nil, err
	}
	return &c, nil
}

// --- reads ---

func (s *CampaignService) ListCampaigns(status models.CampaignStatus) ([]models.Campaign, error) {
	q := s.DB.Model(&models.Campaign{})
	if status != "" {
		if !status.Valid() {
			return nil, invalid("unknown status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var campaigns []models.Campaign
	if err := q.Order("start_date DESC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return campaigns, nil
	}

	ids := make([]string, len(campaigns))
	for i, c := range campaigns {
		ids[i] = c.ID
	}
	var counts []struct {
		CampaignID string
		N          int64
	}
	if err := s.DB.Model(&models.CampaignParticipant{}).
		Select("campaign_id, COUNT(*) AS n").
		Where("campaign_id IN ?", ids).
		Group("campaign_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.CampaignID] = c.N
	}
	for i := range campaigns {
		campaigns[i].ParticipantsCount = byID[campaigns[i].ID]
	}
	return campaigns, nil
}

func (s *CampaignService) GetCampaign(id string) (*models.Campaign, error) {
	c, err := findCampaign(s.DB, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.CampaignParticipant{}).
		Where("campaign_id = ?", id).
		Count(&c.ParticipantsCount).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Participants returns the campaign leaderboard.
func (s *CampaignService) Participants(campaignID string) ([]models.CampaignParticipant, error) {
	var out []models.CampaignParticipant
	err := s.DB.Preload("Team").
		Where("campaign_id = ?", campaignID).
		Order("credits_won DESC, matches_won DESC, joined_at ASC").
		Find(&out).Error
	return out, err
}

func (s *CampaignService) CampaignMatches(campaignID string) ([]models.CampaignMatch, error) {
	var out []models.CampaignMatch
	err := s.DB.Where("campaign_id = ?", campaignID).Order("created_at DESC").Find(&out).Error
	return out, err
}
