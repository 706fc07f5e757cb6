// Package metrics exports service lifecycle events as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

const (
	// MetricsNamespace is the namespace for all publisher metrics.
	MetricsNamespace = "simple_publish"
)

// Recorder implements simplepublish.EventSink on Prometheus counters.
type Recorder struct {
	OperationsTotal    *prometheus.CounterVec
	CompensationsTotal *prometheus.CounterVec
	OrphanedObjects    *prometheus.CounterVec
}

// NewRecorder creates and registers the recorder's metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "operations_total",
				Help:      "Total number of content operations by result",
			},
			[]string{"op", "category", "result"},
		),
		CompensationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "compensations_total",
				Help:      "Total number of compensating actions run after a failed step",
			},
			[]string{"op", "action", "result"},
		),
		OrphanedObjects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "orphaned_objects_total",
				Help:      "Total number of objects left in the store after a failed best-effort delete",
			},
			[]string{"op"},
		),
	}
}

func (r *Recorder) OperationFinished(ctx context.Context, op string, category simplepublish.Category, err error) {
	r.OperationsTotal.WithLabelValues(op, string(category), simplepublish.ErrorKind(err)).Inc()
}

func (r *Recorder) CompensationFinished(ctx context.Context, op string, action string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.CompensationsTotal.WithLabelValues(op, action, result).Inc()
}

func (r *Recorder) ObjectOrphaned(ctx context.Context, op string, key string, err error) {
	r.OrphanedObjects.WithLabelValues(op).Inc()
}
