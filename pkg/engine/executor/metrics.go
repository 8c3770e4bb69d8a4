package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type plannerMetrics struct {
	pipelinesPlanned prometheus.Counter
	driversCreated   prometheus.Counter
	operatorsFused   prometheus.Counter
}

func newPlannerMetrics(reg prometheus.Registerer) *plannerMetrics {
	factory := promauto.With(reg)

	return &plannerMetrics{
		pipelinesPlanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_executor_pipelines_planned_total",
			Help: "Total number of pipelines produced by plan decomposition.",
		}),
		driversCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_executor_drivers_created_total",
			Help: "Total number of drivers instantiated from driver factories.",
		}),
		operatorsFused: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_executor_operators_fused_total",
			Help: "Total number of filter and projection pairs fused into a single operator.",
		}),
	}
}
