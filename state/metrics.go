package state

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "state"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Current epoch.
	Epoch metrics.Gauge
	// Round of the last committed block.
	CommittedRound metrics.Gauge
	// Number of committed blocks.
	CommittedBlocks metrics.Counter
	// Number of committed transactions.
	CommittedTxs metrics.Counter
	// Number of discarded and retried transactions in committed blocks.
	DiscardedTxs metrics.Counter
	RetriedTxs   metrics.Counter
	// Time spent executing a block, in seconds.
	BlockExecutionTime metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Epoch: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "epoch",
			Help:      "Current epoch.",
		}, labels).With(labelsAndValues...),
		CommittedRound: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "committed_round",
			Help:      "Round of the last committed block.",
		}, labels).With(labelsAndValues...),
		CommittedBlocks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "committed_blocks",
			Help:      "Number of committed blocks.",
		}, labels).With(labelsAndValues...),
		CommittedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "committed_txs",
			Help:      "Number of committed transactions.",
		}, labels).With(labelsAndValues...),
		DiscardedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "discarded_txs",
			Help:      "Number of discarded transactions in committed blocks.",
		}, labels).With(labelsAndValues...),
		RetriedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "retried_txs",
			Help:      "Number of retried transactions in committed blocks.",
		}, labels).With(labelsAndValues...),
		BlockExecutionTime: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "block_execution_time",
			Help:      "Time spent executing a block, in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 2, 12),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Epoch:              discard.NewGauge(),
		CommittedRound:     discard.NewGauge(),
		CommittedBlocks:    discard.NewCounter(),
		CommittedTxs:       discard.NewCounter(),
		DiscardedTxs:       discard.NewCounter(),
		RetriedTxs:         discard.NewCounter(),
		BlockExecutionTime: discard.NewHistogram(),
	}
}
