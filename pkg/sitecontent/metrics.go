package sitecontent

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts updates, invalidations and failures
type Metrics struct {
	Updates       prometheus.Counter
	Invalidations *prometheus.CounterVec
	Errors        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "site_content_updates_total",
			Help: "Number of saved content updates.",
		}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_content_invalidations_total",
			Help: "Number of invalidation deliveries by result.",
		}, []string{"result"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "site_content_errors_total",
			Help: "Number of failed content operations by operation.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.Updates, m.Invalidations, m.Errors)
	}
	return m
}

// Hooks returns hooks that feed the collectors
func (m *Metrics) Hooks() *Hooks {
	return &Hooks{
		AfterUpdate: []AfterUpdateHook{
			func(hctx *HookContext, key string, sections []string, doc Document) error {
				m.Updates.Inc()
				return nil
			},
		},
		AfterInvalidate: []AfterInvalidateHook{
			func(hctx *HookContext, event InvalidationEvent, err error) {
				if err != nil {
					m.Invalidations.WithLabelValues("error").Inc()
					return
				}
				m.Invalidations.WithLabelValues("ok").Inc()
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				m.Errors.WithLabelValues(operation).Inc()
			},
		},
	}
}
