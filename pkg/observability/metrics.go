package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Metrics collects engine metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	turns            *prometheus.CounterVec
	turnDuration     prometheus.Histogram
	turnsInFlight    prometheus.Gauge
	handlerCalls     *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec
	triggerSignals   *prometheus.CounterVec
	disambiguations  prometheus.Counter
	orchestrationErr *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. When reg is
// also a prometheus.Gatherer, Handler serves it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns processed, by result code.",
		}, []string{"code"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a whole turn.",
			Buckets:   prometheus.DefBuckets,
		}),
		turnsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_in_flight",
			Help:      "Turns currently being processed.",
		}),
		handlerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_executions_total",
			Help:      "Handler executions, by handler and result code.",
		}, []string{"handler", "code"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in handler Execute.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		triggerSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_signals_total",
			Help:      "Trigger outcomes, by handler and signal.",
		}, []string{"handler", "signal"}),
		disambiguations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disambiguations_total",
			Help:      "Turns that asked the user to disambiguate.",
		}),
		orchestrationErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestration_errors_total",
			Help:      "Turns aborted by an orchestration error, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.turns, m.turnDuration, m.turnsInFlight,
		m.handlerCalls, m.handlerDuration,
		m.triggerSignals, m.disambiguations, m.orchestrationErr,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(context.Context, *domain.TurnEvent) {
			m.turnsInFlight.Inc()
		},
		OnTurnEnd: func(_ context.Context, ev *domain.TurnEvent) {
			m.turnsInFlight.Dec()
			m.turnDuration.Observe(ev.Duration.Seconds())
			switch {
			case ev.Err != nil:
				m.turns.WithLabelValues("error").Inc()
				op := "unknown"
				var oe *domain.OrchestrationError
				if errors.As(ev.Err, &oe) {
					op = oe.Op
				}
				m.orchestrationErr.WithLabelValues(op).Inc()
			case ev.Result != nil:
				m.turns.WithLabelValues(ev.Result.Code.String()).Inc()
			}
		},
		OnHandlerResult: func(_ context.Context, ev *domain.HandlerEvent) {
			id := ev.Handler.ID
			code := ev.Code.String()
			if ev.Err != nil {
				code = "error"
			}
			m.handlerCalls.WithLabelValues(id, code).Inc()
			m.handlerDuration.WithLabelValues(id).Observe(ev.Duration.Seconds())
		},
		OnTrigger: func(_ context.Context, ev *domain.TriggerEvent) {
			m.triggerSignals.WithLabelValues(ev.Handler.ID, ev.Signal.String()).Inc()
		},
		OnDisambiguation: func(context.Context, *domain.TurnEvent) {
			m.disambiguations.Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
