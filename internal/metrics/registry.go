package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spmd"

// Registry holds the metrics of one worker process.
type Registry struct {
	// Propagation
	IterationsTotal prometheus.Counter
	Vertices        prometheus.Gauge
	Edges           prometheus.Gauge
	LocalEdges      prometheus.Gauge
	Components      prometheus.Gauge
	RunDuration     prometheus.Gauge
	LabelsChanged   prometheus.Histogram

	// Collectives
	CollectiveOpsTotal  *prometheus.CounterVec
	CollectiveDuration  *prometheus.HistogramVec
	TransportBytesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initPropagationMetrics()
	r.initCollectiveMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

func (r *Registry) initPropagationMetrics() {
	factory := promauto.With(r.registry)

	r.IterationsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "iterations_total",
		Help:      "Label propagation iterations completed",
	})
	r.Vertices = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_vertices",
		Help:      "Vertices in the distributed graph",
	})
	r.Edges = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_edges",
		Help:      "Edges in the distributed graph",
	})
	r.LocalEdges = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_local_edges",
		Help:      "Edges this worker relaxes each iteration",
	})
	r.Components = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "components",
		Help:      "Connected components found by the last run",
	})
	r.RunDuration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time between the start and end barriers",
	})
	r.LabelsChanged = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "labels_changed_per_iteration",
		Help:      "Vertices whose label dropped in one iteration",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
}

func (r *Registry) initCollectiveMetrics() {
	factory := promauto.With(r.registry)

	r.CollectiveOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collective_ops_total",
			Help:      "Collective calls by operation and status",
		},
		[]string{"op", "status"}, // status: success, error
	)
	r.CollectiveDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collective_duration_seconds",
			Help:      "Time spent blocked in a collective",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)
	r.TransportBytesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_total",
			Help:      "Bytes moved by the network transport",
		},
		[]string{"direction"}, // sent, received
	)
}
