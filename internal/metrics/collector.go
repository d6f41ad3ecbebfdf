// internal/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launchpad"

// Collector держит prometheus-векторы сервиса. Нулевой указатель допустим:
// все методы записи становятся no-op, что удобно в тестах и CLI.
type Collector struct {
	rpcLatency          *prometheus.HistogramVec
	rpcErrors           *prometheus.CounterVec
	transactions        *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	retryAttempts       *prometheus.CounterVec
	discoveryCycles     *prometheus.CounterVec
	discoveryDuration   prometheus.Histogram
	enrichmentFailures  *prometheus.CounterVec
	dashboardTokens     prometheus.Gauge
}

// NewCollector создаёт и регистрирует метрики в reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),
		rpcErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "Failed RPC requests",
			},
			[]string{"method", "endpoint"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Submitted transactions by kind and status",
			},
			[]string{"kind", "status"},
		),
		transactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Time from build to confirmation",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"kind"},
		),
		retryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Failed attempts that were retried",
			},
			[]string{"operation"},
		),
		discoveryCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_cycles_total",
				Help:      "Token discovery cycles by outcome",
			},
			[]string{"status"},
		),
		discoveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovery_duration_seconds",
				Help:      "Duration of a full discovery cycle",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		enrichmentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_failures_total",
				Help:      "Tokens dropped or degraded during enrichment",
			},
			[]string{"stage"},
		),
		dashboardTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dashboard_tokens",
				Help:      "Tokens shown after the last successful refresh",
			},
		),
	}

	for _, m := range []prometheus.Collector{
		c.rpcLatency,
		c.rpcErrors,
		c.transactions,
		c.transactionDuration,
		c.retryAttempts,
		c.discoveryCycles,
		c.discoveryDuration,
		c.enrichmentFailures,
		c.dashboardTokens,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordRPC записывает латентность и ошибку RPC-запроса.
func (c *Collector) RecordRPC(method, endpoint string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if err != nil {
		c.rpcErrors.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordTransaction записывает результат отправки транзакции.
func (c *Collector) RecordTransaction(kind string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	c.transactions.WithLabelValues(kind, status).Inc()
	c.transactionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRetry увеличивает счётчик повторов операции.
func (c *Collector) RecordRetry(operation string) {
	if c == nil {
		return
	}
	c.retryAttempts.WithLabelValues(operation).Inc()
}

// RecordDiscovery записывает итог цикла агрегации.
func (c *Collector) RecordDiscovery(duration time.Duration, tokens int, err error) {
	if c == nil {
		return
	}
	c.discoveryDuration.Observe(duration.Seconds())
	if err != nil {
		c.discoveryCycles.WithLabelValues("failed").Inc()
		return
	}
	c.discoveryCycles.WithLabelValues("done").Inc()
	c.dashboardTokens.Set(float64(tokens))
}

// RecordEnrichmentFailure отмечает потерю данных на стадии stage
// ("mint" - запись отброшена, "metadata" - подставлены заглушки).
func (c *Collector) RecordEnrichmentFailure(stage string) {
	if c == nil {
		return
	}
	c.enrichmentFailures.WithLabelValues(stage).Inc()
}
