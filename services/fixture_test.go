package services

import (
	"context"
	"errors"
	"testing"

	"clan-wager-system/config"
	"clan-wager-system/models"
	"clan-wager-system/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	ledger      *Ledger
	events      *MemoryPublisher
	matches     *MatchService
	campaigns   *CampaignService
	withdrawals *WithdrawalService
	wallet      *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	ledger := NewLedger(db)
	events := &MemoryPublisher{}
	policy := config.DefaultPolicy()
	return &fixture{
		db:          db,
		ledger:      ledger,
		events:      events,
		matches:     NewMatchService(db, ledger, policy, events),
		campaigns:   NewCampaignService(db, policy, events),
		withdrawals: NewWithdrawalService(db, ledger, policy, events),
		wallet:      NewWalletService(db, ledger, events),
	}
}

// side is a team plus a user who may act for it.
type side struct {
	team   *models.Team
	member *models.User
}

func (s side) caller() Caller {
	return Caller{UserID: s.member.ID}
}

func (f *fixture) side(t *testing.T, name string, credits int64) side {
	t.Helper()
	owner := testutil.CreateUser(t, f.db, 0, 0)
	return side{team: testutil.CreateTeam(t, f.db, name, owner, credits), member: owner}
}

func (f *fixture) admin(t *testing.T) Caller {
	t.Helper()
	return Caller{UserID: testutil.CreateAdmin(t, f.db).ID}
}

func (f *fixture) credits(t *testing.T, s side) int64 {
	t.Helper()
	return testutil.TeamCredits(t, f.db, s.team.ID)
}

func (f *fixture) match(t *testing.T, id string) *models.Match {
	t.Helper()
	var m models.Match
	if err := f.db.Where("id = ?", id).First(&m).Error; err != nil {
		t.Fatalf("load match: %v", err)
	}
	return &m
}

func (f *fixture) matchEntries(t *testing.T, matchID string) []models.Transaction {
	t.Helper()
	entries, err := f.ledger.MatchEntries(matchID)
	if err != nil {
		t.Fatalf("MatchEntries() error = %v", err)
	}
	return entries
}

// activeMatch runs create, accept and start for a wager match.
func (f *fixture) activeMatch(t *testing.T, a, b side, wager int64) *models.Match {
	t.Helper()
	ctx := context.Background()
	m, err := f.matches.CreateMatch(ctx, a.caller(), CreateMatchInput{
		ChallengerTeamID: a.team.ID,
		ChallengedTeamID: b.team.ID,
		WagerCredits:     wager,
	})
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	if _, err := f.matches.AcceptMatch(ctx, b.caller(), m.ID); err != nil {
		t.Fatalf("AcceptMatch() error = %v", err)
	}
	if _, err := f.matches.StartMatch(ctx, a.caller(), m.ID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}
	return m
}

func sumCredits(entries []models.Transaction) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.Credits
	}
	return sum
}

func countType(entries []models.Transaction, typ models.TransactionType) int {
	n := 0
	for _, e := range entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
