// services/events.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clan-wager-system/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	eventStreamName    = "CLAN_WAGER_EVENTS"
	eventSubjectPrefix = "clanwager.events"
)

// Event is published after a state change has committed.
type Event struct {
	Type       string      `json:"type"`
	MatchID    string      `json:"match_id,omitempty"`
	CampaignID string      `json:"campaign_id,omitempty"`
	TeamID     string      `json:"team_id,omitempty"`
	UserID     string      `json:"user_id,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

const (
	EventMatchCreated       = "match.created"
	EventMatchAccepted      = "match.accepted"
	EventMatchDeclined      = "match.declined"
	EventMatchStarted       = "match.started"
	EventMatchConfirmed     = "match.confirmed"
	EventMatchDisputed      = "match.disputed"
	EventMatchCompleted     = "match.completed"
	EventCampaignJoined     = "campaign.joined"
	EventCampaignChallenge  = "campaign.challenge"
	EventCampaignStatus     = "campaign.status"
	EventWithdrawalPending  = "withdrawal.requested"
	EventWithdrawalApproved = "withdrawal.approved"
	EventWithdrawalRejected = "withdrawal.rejected"
	EventCreditsPurchased   = "wallet.purchase"
)

// Publisher delivers events to downstream consumers. Publishing never fails
// the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// NoopPublisher drops events. Used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}

// MemoryPublisher keeps events in memory for tests and local runs.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types lists the event types in publish order.
func (m *MemoryPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// NATSPublisher writes events to a JetStream stream under
// clanwager.events.{type}.
type NATSPublisher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log zerolog.Logger
}

func NewNATSPublisher(ctx context.Context, url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("clan-wager-system"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      eventStreamName,
		Subjects:  []string{eventSubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure event stream: %w", err)
	}
	return &NATSPublisher{nc: nc, js: js, log: observability.NewLogger("events")}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Warn().Err(err).Str("type", evt.Type).Msg("marshal event")
		return
	}
	subject := fmt.Sprintf("%s.%s", eventSubjectPrefix, evt.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("outbound publish failed")
	}
}

func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
