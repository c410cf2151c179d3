package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_activations_total",
		Help: "Market activation attempts",
	}, []string{"market", "result"})

	ValidationFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_validation_findings_total",
		Help: "Validation findings produced, by severity",
	}, []string{"market", "severity"})

	SelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_model_selections_total",
		Help: "Model selections dispatched",
	}, []string{"market", "strategy", "model"})

	SelectionRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_selection_rejects_total",
		Help: "Selections that produced no model",
	}, []string{"market", "reason"})

	CostEstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_cost_estimates_total",
		Help: "Cost estimates served",
	}, []string{"provider", "model"})

	ActiveMarket = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradegate_active_market",
		Help: "1 for the active market of each activation group",
	}, []string{"group", "market"})

	EventClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradegate_event_clients",
		Help: "Connected websocket event subscribers",
	})
)
