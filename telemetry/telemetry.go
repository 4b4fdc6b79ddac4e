// Package telemetry holds the process-wide counters components report into.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_processed_total",
		Help: "Events handled by a component.",
	}, []string{"component_kind", "component_type", "component_id"})

	EventsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_discarded_total",
		Help: "Events intentionally dropped by a component.",
	}, []string{"component_kind", "component_type", "component_id", "reason"})

	ComponentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "component_errors_total",
		Help: "Errors raised while handling events.",
	}, []string{"component_kind", "component_type", "component_id"})
)

func init() {
	Registry.MustRegister(EventsProcessed, EventsDiscarded, ComponentErrors)
}

// Processed counts one event handled by the component named id.
func Processed(kind, typ, id string) {
	EventsProcessed.WithLabelValues(kind, typ, id).Inc()
}

func Discarded(kind, typ, id, reason string) {
	EventsDiscarded.WithLabelValues(kind, typ, id, reason).Inc()
}

func Error(kind, typ, id string) {
	ComponentErrors.WithLabelValues(kind, typ, id).Inc()
}

// Handler exposes the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
