package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service. Each collector has
// its own registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics
	StoreStatements *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	StoreRows       *prometheus.HistogramVec
	Transactions    *prometheus.CounterVec

	// Graph metrics
	NodesCreated  prometheus.Counter
	NodesDeleted  prometheus.Counter
	Replacements  *prometheus.CounterVec
	RegistryTypes prometheus.Gauge
}

// NewCollector creates a collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreStatements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_statements_total",
				Help:      "Total number of statements sent to the graph store",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_statement_duration_seconds",
				Help:      "Graph store statement duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StoreRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_statement_rows",
				Help:      "Rows returned per statement",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"operation"},
		),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_transactions_total",
				Help:      "Write transactions by outcome",
			},
			[]string{"outcome"},
		),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Total number of nodes created",
		}),
		NodesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_deleted_total",
			Help:      "Total number of nodes deleted",
		}),
		Replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_replacements_total",
				Help:      "Node replacements by outcome",
			},
			[]string{"outcome"},
		),
		RegistryTypes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_types",
			Help:      "Node types currently registered",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.StoreStatements,
		c.StoreDuration,
		c.StoreRows,
		c.Transactions,
		c.NodesCreated,
		c.NodesDeleted,
		c.Replacements,
		c.RegistryTypes,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveReplace counts a finished replacement.
func (c *Collector) ObserveReplace(err error) {
	if err != nil {
		c.Replacements.WithLabelValues("rolled_back").Inc()
		return
	}
	c.Replacements.WithLabelValues("committed").Inc()
}
