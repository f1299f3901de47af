// services/ledger.go
package services

import (
	"fmt"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/observability"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type accountKind int

const (
	accountUser accountKind = iota
	accountTeam
)

// Account names one balance column. Only the three constructors below exist,
// so column names never come from input.
type Account struct {
	kind   accountKind
	id     string
	column string
}

func UserCredits(userID string) Account {
	return Account{kind: accountUser, id: userID, column: "credits"}
}

func UserWithdrawable(userID string) Account {
	return Account{kind: accountUser, id: userID, column: "withdrawable_credits"}
}

func TeamCredits(teamID string) Account {
	return Account{kind: accountTeam, id: teamID, column: "credits"}
}

func (a Account) model() interface{} {
	if a.kind == accountTeam {
		return &models.Team{}
	}
	return &models.User{}
}

func (a Account) String() string {
	if a.kind == accountTeam {
		return "team " + a.id + " " + a.column
	}
	return "user " + a.id + " " + a.column
}

// Entry carries the descriptive part of a ledger row.
type Entry struct {
	Type         models.TransactionType
	MatchID      *string
	WithdrawalID *string
	Description  string
}

func (e Entry) validate() error {
	if !e.Type.Valid() {
		return invalid("unknown ledger entry type %q", e.Type)
	}
	return nil
}

// Ledger is the only writer of account balances. Every mutating call takes the
// caller's transaction and appends exactly one entry for each balance change.
type Ledger struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db, log: observability.NewLogger("ledger")}
}

// Debit atomically subtracts amount if the balance covers it. A short balance
// yields ErrInsufficientFunds and leaves the row untouched.
func (l *Ledger) Debit(tx *gorm.DB, acct Account, amount int64, e Entry) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, invalid("debit amount must be positive, got %d", amount)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	res := tx.Model(acct.model()).
		Where("id = ? AND "+acct.column+" >= ?", acct.id, amount).
		Update(acct.column, gorm.Expr(acct.column+" - ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("debit %s: %w", acct, res.Error)
	}
	if res.RowsAffected == 0 {
		exists, err := l.exists(tx, acct)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, notFound("account", acct.id)
		}
		return nil, fmt.Errorf("%w: %s cannot cover %d", ErrInsufficientFunds, acct, amount)
	}
	return l.append(tx, acct, -amount, e)
}

// Credit adds amount to the account.
func (l *Ledger) Credit(tx *gorm.DB, acct Account, amount int64, e Entry) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, invalid("credit amount must be positive, got %d", amount)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	res := tx.Model(acct.model()).
		Where("id = ?", acct.id).
		Update(acct.column, gorm.Expr(acct.column+" + ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("credit %s: %w", acct, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("account", acct.id)
	}
	return l.append(tx, acct, amount, e)
}

// RecordUnattached appends an entry that moves no stored balance, such as the
// platform's share of a pot.
func (l *Ledger) RecordUnattached(tx *gorm.DB, amount int64, e Entry) (*models.Transaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	entry := &models.Transaction{
		MatchID:      e.MatchID,
		WithdrawalID: e.WithdrawalID,
		Type:         e.Type,
		Credits:      amount,
		Description:  e.Description,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("append %s entry: %w", e.Type, err)
	}
	return entry, nil
}

func (l *Ledger) append(tx *gorm.DB, acct Account, delta int64, e Entry) (*models.Transaction, error) {
	var after []int64
	if err := tx.Model(acct.model()).Where("id = ?", acct.id).Pluck(acct.column, &after).Error; err != nil {
		return nil, fmt.Errorf("read back %s: %w", acct, err)
	}
	entry := &models.Transaction{
		MatchID:      e.MatchID,
		WithdrawalID: e.WithdrawalID,
		Type:         e.Type,
		Credits:      delta,
		Description:  e.Description,
	}
	if len(after) == 1 {
		entry.CreditsAfter = &after[0]
	}
	id := acct.id
	if acct.kind == accountTeam {
		entry.TeamID = &id
	} else {
		entry.UserID = &id
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("append %s entry: %w", e.Type, err)
	}
	l.log.Debug().
		Str("account", acct.String()).
		Str("type", string(e.Type)).
		Int64("credits", delta).
		Msg("ledger entry appended")
	return entry, nil
}

func (l *Ledger) exists(tx *gorm.DB, acct Account) (bool, error) {
	var count int64
	if err := tx.Model(acct.model()).Where("id = ?", acct.id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Page bounds a listing.
type Page struct {
	Page int
	Size int
}

func (p Page) normalize() (limit, offset int) {
	if p.Size <= 0 || p.Size > 100 {
		p.Size = 20
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	return p.Size, (p.Page - 1) * p.Size
}

func (l *Ledger) UserEntries(userID string, p Page) ([]models.Transaction, int64, error) {
	return l.list(l.DB.Where("user_id = ?", userID), p)
}

func (l *Ledger) TeamEntries(teamID string, p Page) ([]models.Transaction, int64, error) {
	return l.list(l.DB.Where("team_id = ?", teamID), p)
}

func (l *Ledger) MatchEntries(matchID string) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := l.DB.Where("match_id = ?", matchID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// UserEntriesSince feeds the ledger stream.
func (l *Ledger) UserEntriesSince(userID string, since time.Time) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := l.DB.Where("user_id = ? AND created_at > ?", userID, since).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// EntriesBetween returns entries with from <= created_at < to.
func (l *Ledger) EntriesBetween(from, to time.Time) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := l.DB.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (l *Ledger) list(q *gorm.DB, p Page) ([]models.Transaction, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Model(&models.Transaction{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit, offset := p.normalize()
	var entries []models.Transaction
	err := q.Session(&gorm.Session{}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, total, err
}

// Imbalance is a settled wager match whose entries do not net to zero.
type Imbalance struct {
	MatchID string `json:"match_id"`
	Net     int64  `json:"net"`
}

// Reconcile checks that every completed or cancelled wager match nets to zero
// across its locks, refunds, payout and fee. Campaign matches are excluded
// since their rewards come from the pool.
func (l *Ledger) Reconcile() ([]Imbalance, error) {
	var out []Imbalance
	err := l.DB.Raw(`
		SELECT t.match_id AS match_id, SUM(t.credits) AS net
		FROM transactions t
		INNER JOIN matches m ON m.id = t.match_id
		WHERE m.campaign_id IS NULL AND m.status IN (?, ?)
		GROUP BY t.match_id
		HAVING SUM(t.credits) <> 0
	`, models.MatchStatusCompleted, models.MatchStatusCancelled).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	observability.UnbalancedMatches.Set(float64(len(out)))
	for _, im := range out {
		l.log.Error().Str("match_id", im.MatchID).Int64("net", im.Net).Msg("ledger imbalance")
	}
	return out, nil
}
