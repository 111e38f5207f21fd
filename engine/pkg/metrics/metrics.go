package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solgov_build_info",
			Help: "Build information of the SolGov engine",
		},
		[]string{"version", "commit", "date"},
	)

	LedgerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solgov_ledger_requests_total",
			Help: "Total number of ledger RPC requests",
		},
		[]string{"method", "status"},
	)

	LedgerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solgov_ledger_request_duration_seconds",
			Help:    "Duration of ledger RPC requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"method"},
	)

	ViewRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solgov_view_refresh_total",
			Help: "Total number of view refreshes",
		},
		[]string{"view_type", "status"},
	)

	ViewRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solgov_view_refresh_duration_seconds",
			Help:    "Duration of view refreshes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"view_type"},
	)

	ClaimTransactionsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solgov_claim_transactions_built_total",
			Help: "Total number of claim transactions built",
		},
		[]string{"status"},
	)

	AccountDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solgov_account_decode_failures_total",
			Help: "Accounts that could not be decoded and were counted as zero",
		},
		[]string{"account"},
	)

	TallyVotes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solgov_tally_votes",
			Help: "Latest vote bucket balances in base units",
		},
		[]string{"choice"}, // "yes", "no", "abstain"
	)

	TallyParticipationPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solgov_tally_participation_percent",
			Help: "Latest participation rate as a percentage of supply",
		},
	)

	TallyClaimPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solgov_tally_claim_percent",
			Help: "Latest claimed share of supply as a percentage",
		},
	)

	VotingEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solgov_voting_current_epoch",
			Help: "Most recently observed ledger epoch",
		},
	)

	VotingSecondsRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solgov_voting_seconds_remaining",
			Help: "Estimated seconds until the voting period ends (0 once ended)",
		},
	)
)
