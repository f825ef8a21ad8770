package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetrics(t *testing.T) {
	RegisterMetrics()
	// second call must not panic on duplicate registration
	RegisterMetrics()

	ClassifiedTxCounter.WithLabelValues("101", "DEPOSIT").Inc()
	if v := testutil.ToFloat64(ClassifiedTxCounter.WithLabelValues("101", "DEPOSIT")); v != 1 {
		t.Errorf("unexpected counter value %v", v)
	}
}
