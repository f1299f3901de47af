// observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MatchTransitions counts committed match status changes.
var MatchTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "matches",
	Name:      "transitions_total",
	Help:      "Committed match status transitions.",
}, []string{"from", "to"})

// Settlements counts completed matches by settlement policy.
var Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "matches",
	Name:      "settlements_total",
	Help:      "Completed matches by settlement policy (wager, campaign, campaign_depleted).",
}, []string{"policy"})

var Disputes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "matches",
	Name:      "disputes_total",
	Help:      "Matches moved to disputed.",
})

var PlatformFeeCredits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "ledger",
	Name:      "platform_fee_credits_total",
	Help:      "Credits retained as platform fee.",
})

// UnbalancedMatches is set by the reconciliation job.
var UnbalancedMatches = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "clanwager",
	Subsystem: "ledger",
	Name:      "unbalanced_matches",
	Help:      "Completed wager matches whose ledger entries do not sum to zero.",
})

var Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "withdrawals",
	Name:      "total",
	Help:      "Withdrawal requests by outcome (requested, approved, rejected).",
}, []string{"outcome"})

var CampaignPoolDepletions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clanwager",
	Subsystem: "campaigns",
	Name:      "pool_depleted_total",
	Help:      "Campaign wins that could not be paid because the pool was exhausted.",
})

// OperationLatency observes service operation duration.
var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "clanwager",
	Subsystem: "service",
	Name:      "operation_duration_seconds",
	Help:      "Latency of state-changing service operations.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "outcome"})
