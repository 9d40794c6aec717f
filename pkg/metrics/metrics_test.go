package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSweepDuration_ObservesByJobLabel(t *testing.T) {
	SweepDuration.WithLabelValues("source-sweep-test").Observe(0.5)
	count := testutil.CollectAndCount(SweepDuration)
	assert.GreaterOrEqual(t, count, 1)
}

func TestPayoutsBroadcast_CountsByChain(t *testing.T) {
	before := testutil.ToFloat64(PayoutsBroadcast.WithLabelValues("eth-metrics-test"))
	PayoutsBroadcast.WithLabelValues("eth-metrics-test").Inc()
	after := testutil.ToFloat64(PayoutsBroadcast.WithLabelValues("eth-metrics-test"))
	assert.Equal(t, before+1, after)
}

func TestNonceGap_ReportsGaugeValue(t *testing.T) {
	NonceGap.WithLabelValues("eth-metrics-test", "0xsender").Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(NonceGap.WithLabelValues("eth-metrics-test", "0xsender")))
}
