// internal/metrics/collector_test.go
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RecordRetry("attach-metadata")
	c.RecordRetry("attach-metadata")
	c.RecordDiscovery(time.Second, 4, nil)
	c.RecordDiscovery(time.Second, 0, errors.New("both sources failed"))
	c.RecordEnrichmentFailure("metadata")
	c.RecordTransaction("create-token", time.Second, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.retryAttempts.WithLabelValues("attach-metadata")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discoveryCycles.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discoveryCycles.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.dashboardTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enrichmentFailures.WithLabelValues("metadata")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("create-token", "success")))
}

func TestCollectorDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordRPC("getBalance", "https://api.devnet.solana.com", time.Millisecond, nil)
		c.RecordRetry("x")
		c.RecordDiscovery(time.Second, 1, nil)
		c.RecordEnrichmentFailure("mint")
		c.RecordTransaction("swap", time.Second, false)
	})
}
