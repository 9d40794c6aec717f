// Package metrics exposes the prometheus counters/gauges the sweep jobs,
// sequencer poll job, and account layer update as they run (spec §5).
// There is no public HTTP API to instrument, so this package skips the
// request-duration middleware shape and exports the settlement-pipeline
// metrics those components produce.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepDuration observes how long a single SourceSweep/DestSweep Run
	// pass takes, labeled by job name.
	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_settle_sweep_duration_seconds",
		Help:    "Duration of a single sweep job pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	// SweepRows counts rows a sweep pass created or closed, labeled by
	// job name.
	SweepRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_settle_sweep_rows_total",
		Help: "Rows created or closed by sweep job passes.",
	}, []string{"job"})

	// PayoutsBroadcast counts successful Sequencer broadcasts, labeled by
	// destination chain.
	PayoutsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_settle_payouts_broadcast_total",
		Help: "Payout transactions successfully broadcast.",
	}, []string{"chain"})

	// PayoutsCrashed counts payouts marked PAID_CRASH (MarkPaidCrash) after
	// a broadcast error whose outcome is unknown, labeled by destination
	// chain. The startup reconciler does not pick these rows up (it handles
	// rows at StatusReadyPaid); they close when the destination sweep
	// matches them.
	PayoutsCrashed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_settle_payouts_crashed_total",
		Help: "Payouts marked PAID_CRASH after a broadcast error with unknown outcome.",
	}, []string{"chain"})

	// NonceGap reports the current gap between the next nonce to assign
	// and the chain's confirmed nonce for a sender, labeled by chain and
	// sender address -- a gap that keeps growing means broadcasts are
	// failing to confirm.
	NonceGap = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bridge_settle_nonce_gap",
		Help: "Difference between the next assignable nonce and the chain's confirmed nonce.",
	}, []string{"chain", "sender"})
)
