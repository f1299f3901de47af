// services/match_service.go
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

const defaultGame = "bloodstrike"

// MatchService drives the wager match lifecycle. Every transition runs in
// one database transaction holding a row lock on the match.
type MatchService struct {
	DB     *gorm.DB
	Ledger *Ledger
	Policy config.Policy
	Events Publisher
	log    zerolog.Logger
}

func NewMatchService(db *gorm.DB, ledger *Ledger, policy config.Policy, events Publisher) *MatchService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &MatchService{
		DB:     db,
		Ledger: ledger,
		Policy: policy,
		Events: events,
		log:    observability.NewLogger("matches"),
	}
}

type CreateMatchInput struct {
	ChallengerTeamID string  `json:"challenger_team_id"`
	ChallengedTeamID string  `json:"challenged_team_id"`
	WagerCredits     int64   `json:"wager_credits"`
	Game             string  `json:"game"`
	GameMode         string  `json:"game_mode"`
	BestOf           int     `json:"best_of"`
	Message          *string `json:"message,omitempty"`
}

func (in *CreateMatchInput) normalize() error {
	in.ChallengerTeamID = strings.TrimSpace(in.ChallengerTeamID)
	in.ChallengedTeamID = strings.TrimSpace(in.ChallengedTeamID)
	if in.ChallengerTeamID == "" || in.ChallengedTeamID == "" {
		return invalid("both teams are required")
	}
	if in.ChallengerTeamID == in.ChallengedTeamID {
		return invalid("a team cannot challenge itself")
	}
	if in.Game == "" {
		in.Game = defaultGame
	}
	if in.GameMode == "" {
		in.GameMode = "standard"
	}
	if in.BestOf == 0 {
		in.BestOf = 1
	}
	if in.BestOf < 0 || in.BestOf%2 == 0 {
		return invalid("best_of must be a positive odd number")
	}
	return nil
}

// CreateMatch challenges another team and locks the challenger's stake.
func (s *MatchService) CreateMatch(ctx context.Context, caller Caller, in CreateMatchInput) (*models.Match, error) {
	start := time.Now()
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.WagerCredits <= 0 {
		return nil, invalid("wager must be greater than zero")
	}

	var match *models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenger, err := findTeam(tx, in.ChallengerTeamID)
		if err != nil {
			return err
		}
		challenged, err := findTeam(tx, in.ChallengedTeamID)
		if err != nil {
			return err
		}
		if ok, err := isTeamMember(tx, challenger, caller.UserID); err != nil {
			return err
		} else if !ok {
			return ErrNotTeamMember
		}

		token := utils.NewShareToken(challenger.Name, challenged.Name)
		match = &models.Match{
			ID:               uuid.NewString(),
			ChallengerTeamID: challenger.ID,
			ChallengedTeamID: challenged.ID,
			WagerCredits:     in.WagerCredits,
			Status:           models.MatchStatusPending,
			Game:             in.Game,
			GameMode:         in.GameMode,
			BestOf:           in.BestOf,
			Message:          in.Message,
			ShareToken:       &token,
		}
		if err := tx.Create(match).Error; err != nil {
			return fmt.Errorf("create match: %w", err)
		}

		_, err = s.Ledger.Debit(tx, TeamCredits(challenger.ID), in.WagerCredits, Entry{
			Type:        models.TransactionTypeWagerLock,
			MatchID:     &match.ID,
			Description: fmt.Sprintf("Wager locked vs %s: %s", challenged.Name, utils.FormatCredits(in.WagerCredits)),
		})
		return err
	})
	s.observe("create_match", start, err)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("match_id", match.ID).
		Str("challenger", match.ChallengerTeamID).
		Str("challenged", match.ChallengedTeamID).
		Int64("wager", match.WagerCredits).
		Msg("match created")
	s.Events.Publish(ctx, Event{Type: EventMatchCreated, MatchID: match.ID, TeamID: match.ChallengedTeamID, Payload: match})
	return match, nil
}

// AcceptMatch locks the challenged team's stake. Campaign matches carry no
// stake and only change status.
func (s *MatchService) AcceptMatch(ctx context.Context, caller Caller, matchID string) (*models.Match, error) {
	start := time.Now()
	var match *models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if err := s.requireSide(tx, m.ChallengedTeamID, caller); err != nil {
			return err
		}
		if m.Status != models.MatchStatusPending {
			return invalidState("match is %s, not pending", m.Status)
		}

		if !m.IsCampaign() && m.WagerCredits > 0 {
			if _, err := s.Ledger.Debit(tx, TeamCredits(m.ChallengedTeamID), m.WagerCredits, Entry{
				Type:        models.TransactionTypeWagerLock,
				MatchID:     &m.ID,
				Description: fmt.Sprintf("Wager locked on accepting challenge: %s", utils.FormatCredits(m.WagerCredits)),
			}); err != nil {
				return err
			}
		}

		if err := casMatch(tx, m.ID, models.MatchStatusPending, models.MatchStatusAccepted, nil); err != nil {
			return err
		}
		m.Status = models.MatchStatusAccepted
		match = m
		return nil
	})
	s.observe("accept_match", start, err)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, match, models.MatchStatusPending, EventMatchAccepted)
	return match, nil
}

// DeclineMatch cancels a pending challenge and returns the challenger's stake.
func (s *MatchService) DeclineMatch(ctx context.Context, caller Caller, matchID string) (*models.Match, error) {
	start := time.Now()
	var match *models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if err := s.requireSide(tx, m.ChallengedTeamID, caller); err != nil {
			return err
		}
		if m.Status != models.MatchStatusPending {
			return invalidState("match is %s, not pending", m.Status)
		}

		if !m.IsCampaign() && m.WagerCredits > 0 {
			if _, err := s.Ledger.Credit(tx, TeamCredits(m.ChallengerTeamID), m.WagerCredits, Entry{
				Type:        models.TransactionTypeWagerRefund,
				MatchID:     &m.ID,
				Description: fmt.Sprintf("Challenge declined, wager refunded: %s", utils.FormatCredits(m.WagerCredits)),
			}); err != nil {
				return err
			}
		}

		if err := casMatch(tx, m.ID, models.MatchStatusPending, models.MatchStatusCancelled, nil); err != nil {
			return err
		}
		m.Status = models.MatchStatusCancelled
		match = m
		return nil
	})
	s.observe("decline_match", start, err)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, match, models.MatchStatusPending, EventMatchDeclined)
	return match, nil
}

// StartMatch marks an accepted match as being played.
func (s *MatchService) StartMatch(ctx context.Context, caller Caller, matchID string) (*models.Match, error) {
	start := time.Now()
	var match *models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if _, _, err := s.callerSides(tx, m, caller); err != nil {
			return err
		}
		if m.Status != models.MatchStatusAccepted {
			return invalidState("match is %s, not accepted", m.Status)
		}
		if err := casMatch(tx, m.ID, models.MatchStatusAccepted, models.MatchStatusActive, nil); err != nil {
			return err
		}
		m.Status = models.MatchStatusActive
		match = m
		return nil
	})
	s.observe("start_match", start, err)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, match, models.MatchStatusAccepted, EventMatchStarted)
	return match, nil
}

// ConfirmResult is returned by ConfirmWinner. Settlement is set only when the
// confirmation completed the match.
type ConfirmResult struct {
	Match      *models.Match     `json:"match"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}

// ConfirmWinner records the caller's side's vote. Matching votes settle the
// match; conflicting votes move it to disputed. A side may change its vote
// until the match leaves confirming.
func (s *MatchService) ConfirmWinner(ctx context.Context, caller Caller, matchID, winnerID string) (*ConfirmResult, error) {
	start := time.Now()
	var (
		out  ConfirmResult
		from models.MatchStatus
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		onChallenger, onChallenged, err := s.callerSides(tx, m, caller)
		if err != nil {
			return err
		}
		if !m.HasTeam(winnerID) {
			return fmt.Errorf("%w: %q is not a team in this match", ErrInvalidWinner, winnerID)
		}
		if m.Status.IsTerminal() {
			return invalidState("match is already %s", m.Status)
		}
		if m.Status != models.MatchStatusActive && m.Status != models.MatchStatusConfirming {
			return invalidState("match is %s; results can only be confirmed while active or confirming", m.Status)
		}
		from = m.Status

		vote := winnerID
		updates := map[string]interface{}{}
		switch {
		case onChallenger:
			m.ChallengerConfirmedWinner = &vote
			updates["challenger_confirmed_winner"] = vote
		case onChallenged:
			m.ChallengedConfirmedWinner = &vote
			updates["challenged_confirmed_winner"] = vote
		}

		agreedWinner, bothVoted, agreed := m.Consensus()
		switch {
		case bothVoted && agreed:
			result, err := settle(tx, s.Ledger, s.Policy.PlatformFeePercent, m, agreedWinner)
			if err != nil {
				return err
			}
			if err := completeMatch(tx, m, from, agreedWinner, updates); err != nil {
				return err
			}
			out.Settlement = result
		case bothVoted:
			if err := casMatch(tx, m.ID, from, models.MatchStatusDisputed, updates); err != nil {
				return err
			}
			m.Status = models.MatchStatusDisputed
		default:
			if err := casMatch(tx, m.ID, from, models.MatchStatusConfirming, updates); err != nil {
				return err
			}
			m.Status = models.MatchStatusConfirming
		}
		out.Match = m
		return nil
	})
	s.observe("confirm_winner", start, err)
	if err != nil {
		return nil, err
	}

	switch out.Match.Status {
	case models.MatchStatusCompleted:
		s.completed(ctx, out.Match, from, out.Settlement)
	case models.MatchStatusDisputed:
		observability.Disputes.Inc()
		s.log.Warn().Str("match_id", out.Match.ID).Msg("match disputed")
		s.transitioned(ctx, out.Match, from, EventMatchDisputed)
	default:
		s.transitioned(ctx, out.Match, from, EventMatchConfirmed)
	}
	return &out, nil
}

// AdminResolveDispute settles a disputed match in favor of winnerID.
func (s *MatchService) AdminResolveDispute(ctx context.Context, caller Caller, matchID, winnerID string) (*ConfirmResult, error) {
	start := time.Now()
	var out ConfirmResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireAdmin(tx, caller); err != nil {
			return err
		}
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if !m.HasTeam(winnerID) {
			return fmt.Errorf("%w: %q is not a team in this match", ErrInvalidWinner, winnerID)
		}
		if m.Status != models.MatchStatusDisputed {
			return invalidState("match is %s, not disputed", m.Status)
		}
		result, err := settle(tx, s.Ledger, s.Policy.PlatformFeePercent, m, winnerID)
		if err != nil {
			return err
		}
		if err := completeMatch(tx, m, models.MatchStatusDisputed, winnerID, nil); err != nil {
			return err
		}
		out.Match = m
		out.Settlement = result
		return nil
	})
	s.observe("resolve_dispute", start, err)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("match_id", matchID).
		Str("winner", winnerID).
		Str("admin", caller.UserID).
		Msg("dispute resolved")
	s.completed(ctx, out.Match, models.MatchStatusDisputed, out.Settlement)
	return &out, nil
}

// requireSide checks the caller belongs to teamID.
func (s *MatchService) requireSide(tx *gorm.DB, teamID string, caller Caller) error {
	team, err := findTeam(tx, teamID)
	if err != nil {
		return err
	}
	ok, err := isTeamMember(tx, team, caller.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTeamMember
	}
	return nil
}

// callerSides reports which rosters the caller is on. A caller on neither is
// forbidden.
func (s *MatchService) callerSides(tx *gorm.DB, m *models.Match, caller Caller) (challenger, challenged bool, err error) {
	if err := s.requireSide(tx, m.ChallengerTeamID, caller); err == nil {
		challenger = true
	} else if !errors.Is(err, ErrForbidden) {
		return false, false, err
	}
	if err := s.requireSide(tx, m.ChallengedTeamID, caller); err == nil {
		challenged = true
	} else if !errors.Is(err, ErrForbidden) {
		return false, false, err
	}
	if !challenger && !challenged {
		return false, false, ErrNotTeamMember
	}
	return challenger, challenged, nil
}

func (s *MatchService) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(Kind(err))
	}
	observability.OperationLatency.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (s *MatchService) transitioned(ctx context.Context, m *models.Match, from models.MatchStatus, eventType string) {
	observability.MatchTransitions.WithLabelValues(string(from), string(m.Status)).Inc()
	s.log.Info().
		Str("match_id", m.ID).
		Str("from", string(from)).
		Str("to", string(m.Status)).
		Msg("match transition")
	s.Events.Publish(ctx, Event{Type: eventType, MatchID: m.ID, Payload: m})
}

func (s *MatchService) completed(ctx context.Context, m *models.Match, from models.MatchStatus, result *SettlementResult) {
	observability.MatchTransitions.WithLabelValues(string(from), string(m.Status)).Inc()
	if result != nil {
		observability.Settlements.WithLabelValues(result.Policy).Inc()
		if result.PlatformFee > 0 {
			observability.PlatformFeeCredits.Add(float64(result.PlatformFee))
		}
		s.log.Info().
			Str("match_id", m.ID).
			Str("policy", result.Policy).
			Str("winner", result.WinnerID).
			Int64("payout", result.WinnerPayout).
			Int64("fee", result.PlatformFee).
			Int64("reward", result.Reward).
			Msg("match settled")
	}
	s.Events.Publish(ctx, Event{Type: EventMatchCompleted, MatchID: m.ID, Payload: ConfirmResult{Match: m, Settlement: result}})
}

func lockMatch(tx *gorm.DB, id string) (*models.Match, error) {
	var m models.Match
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("match", id)
		}
		return nil, err
	}
	return &m, nil
}

// --- reads ---

func (s *MatchService) GetMatch(id string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.Preload("ChallengerTeam").Preload("ChallengedTeam").
		Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("match", id)
		}
		return nil, err
	}
	return &m, nil
}

// GetByShareToken resolves a public battle link.
func (s *MatchService) GetByShareToken(token string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.Preload("ChallengerTeam").Preload("ChallengedTeam").
		Where("share_token = ?", token).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("battle", token)
		}
		return nil, err
	}
	return &m, nil
}

// TeamMatches lists matches involving teamID, newest first, optionally
// filtered by status.
func (s *MatchService) TeamMatches(teamID string, status models.MatchStatus) ([]models.Match, error) {
	q := s.DB.Preload("ChallengerTeam").Preload("ChallengedTeam").
		Where("challenger_team_id = ? OR challenged_team_id = ?", teamID, teamID)
	if status != "" {
		if !status.Valid() {
			return nil, invalid("unknown status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var matches []models.Match
	err := q.Order("created_at DESC").Find(&matches).Error
	return matches, err
}

// PendingChallenges lists challenges waiting on teamID's answer.
func (s *MatchService) PendingChallenges(teamID string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.Preload("ChallengerTeam").
		Where("challenged_team_id = ? AND status = ?", teamID, models.MatchStatusPending).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, err
}

func (s *MatchService) DisputedMatches(ctx context.Context, caller Caller) ([]models.Match, error) {
	if err := requireAdmin(s.DB.WithContext(ctx), caller); err != nil {
		return nil, err
	}
	var matches []models.Match
	err := s.DB.WithContext(ctx).Preload("ChallengerTeam").Preload("ChallengedTeam").
		Where("status = ?", models.MatchStatusDisputed).
		Order("updated_at ASC").
		Find(&matches).Error
	return matches, err
}
