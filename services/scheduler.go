// services/scheduler.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"clan-wager-system/models"
	"clan-wager-system/observability"
	"clan-wager-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Scheduler runs the periodic housekeeping jobs.
type Scheduler struct {
	sched     gocron.Scheduler
	campaigns *CampaignService
	ledger    *Ledger
	store     utils.ObjectStore
	log       zerolog.Logger
}

// NewScheduler wires the jobs. store may be nil, in which case the daily
// ledger export is skipped.
func NewScheduler(campaigns *CampaignService, ledger *Ledger, store utils.ObjectStore) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{
		sched:     sched,
		campaigns: campaigns,
		ledger:    ledger,
		store:     store,
		log:       observability.NewLogger("scheduler"),
	}

	// Every minute: move campaigns along by their dates
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.advanceCampaigns),
		gocron.WithName("campaign-lifecycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule campaign lifecycle: %w", err)
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(s.reconcile),
		gocron.WithName("ledger-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule reconciliation: %w", err)
	}

	if store != nil {
		if _, err := sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 15, 0))),
			gocron.NewTask(s.exportYesterday),
			gocron.WithName("ledger-export"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("schedule ledger export: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info().Int("jobs", len(s.sched.Jobs())).Msg("scheduler started")
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) advanceCampaigns() {
	activated, completed, err := s.campaigns.AdvanceLifecycle(context.Background(), time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("campaign lifecycle failed")
		return
	}
	if activated > 0 || completed > 0 {
		s.log.Info().Int64("activated", activated).Int64("completed", completed).Msg("✅ campaigns advanced")
	}
}

func (s *Scheduler) reconcile() {
	imbalances, err := s.ledger.Reconcile()
	if err != nil {
		s.log.Error().Err(err).Msg("ledger reconciliation failed")
		return
	}
	if len(imbalances) > 0 {
		s.log.Error().Int("matches", len(imbalances)).Msg("ledger reconciliation found unbalanced matches")
	}
}

func (s *Scheduler) exportYesterday() {
	day := time.Now().UTC().AddDate(0, 0, -1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	url, err := ExportLedgerDay(ctx, s.ledger, s.store, day)
	if err != nil {
		s.log.Error().Err(err).Msg("ledger export failed")
		return
	}
	s.log.Info().Str("url", url).Msg("✅ ledger exported")
}

// ExportLedgerDay uploads the UTC day's ledger entries as CSV and returns
// the object URL.
func ExportLedgerDay(ctx context.Context, ledger *Ledger, store utils.ObjectStore, day time.Time) (string, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	entries, err := ledger.EntriesBetween(from, from.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("load entries: %w", err)
	}
	body, err := RenderLedgerCSV(entries)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("ledger/%s.csv", from.Format("2006-01-02"))
	return store.Put(ctx, key, body, "text/csv")
}

var ledgerCSVHeader = []string{
	"id", "created_at", "type", "user_id", "team_id", "match_id", "withdrawal_id", "credits", "credits_after", "description",
}

func RenderLedgerCSV(entries []models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ledgerCSVHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		after := ""
		if e.CreditsAfter != nil {
			after = strconv.FormatInt(*e.CreditsAfter, 10)
		}
		if err := w.Write([]string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Type),
			deref(e.UserID),
			deref(e.TeamID),
			deref(e.MatchID),
			deref(e.WithdrawalID),
			strconv.FormatInt(e.Credits, 10),
			after,
			e.Description,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
