package metrics

import (
	"time"
)

// ObserveCollective records one collective call.
func (r *Registry) ObserveCollective(op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.CollectiveOpsTotal.WithLabelValues(op, status).Inc()
	r.CollectiveDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AddTransportBytes counts wire traffic in direction "sent" or "received".
func (r *Registry) AddTransportBytes(direction string, n int) {
	r.TransportBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordIteration records one completed propagation iteration.
func (r *Registry) RecordIteration(changed int) {
	r.IterationsTotal.Inc()
	r.LabelsChanged.Observe(float64(changed))
}

// UpdateGraph sets the graph size gauges.
func (r *Registry) UpdateGraph(vertices, edges, localEdges int) {
	r.Vertices.Set(float64(vertices))
	r.Edges.Set(float64(edges))
	r.LocalEdges.Set(float64(localEdges))
}

// RecordRun sets the outcome gauges of a finished run.
func (r *Registry) RecordRun(components int, d time.Duration) {
	r.Components.Set(float64(components))
	r.RunDuration.Set(d.Seconds())
}
