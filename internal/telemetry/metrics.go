package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "autopilot"

var (
	// FleetSlots — текущее число слотов во флоте.
	FleetSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "fleet",
			Name:      "slots",
			Help:      "Number of live process slots",
		},
	)

	// FleetEvictions — вытеснения слотов по причине.
	FleetEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fleet",
			Name:      "evictions_total",
			Help:      "Total number of slot evictions by reason",
		},
		[]string{"reason"}, // "capacity", "expired", "stale", "manual", "kill_all"
	)

	// FleetLaunches — попытки запуска процессов.
	FleetLaunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fleet",
			Name:      "launches_total",
			Help:      "Total number of acquire attempts by result",
		},
		[]string{"result"}, // "spawned", "reused", "not_found", "failed"
	)

	// FleetTouches — касания окон при ротации.
	FleetTouches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fleet",
			Name:      "touches_total",
			Help:      "Total number of rotation touches",
		},
	)

	// RunsTotal — завершённые запуски графа по статусу.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Total number of graph runs by final status",
		},
		[]string{"status"}, // "COMPLETED", "FAILED"
	)

	// RunDuration — длительность запуска графа.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Graph run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// NodesTotal — выполненные узлы по типу и статусу.
	NodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "nodes_total",
			Help:      "Total number of nodes dispatched by kind and status",
		},
		[]string{"kind", "status"}, // status: "completed", "failed", "skipped"
	)

	// IdentitiesTotal — обработанные идентичности по результату.
	IdentitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "identities_total",
			Help:      "Total number of identities processed by result",
		},
		[]string{"result"}, // "completed", "failed", "skipped", "cancelled"
	)

	// EventsDropped — события, не поместившиеся в буфер шины.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped because the bus buffer was full",
		},
	)

	// HTTPRequestsTotal — запросы к API агента.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by the agent API",
		},
		[]string{"method", "code"},
	)

	// EventsForwarded — события, отданные потребителям шины.
	EventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_forwarded_total",
			Help:      "Total number of bus events delivered to sinks",
		},
		[]string{"sink", "result"}, // result: "ok", "error"
	)
)
