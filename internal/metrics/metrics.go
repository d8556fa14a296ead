package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reader metrics
	EventsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_agent_events_parsed_total",
			Help: "Total number of beacon lines parsed into events",
		},
		[]string{"kind"},
	)

	ParseDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_parse_discards_total",
			Help: "Total number of lines discarded as unrecognized or malformed",
		},
	)

	EventsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_events_persisted_total",
			Help: "Total number of events written to the store",
		},
	)

	FlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_flush_failures_total",
			Help: "Total number of failed flush attempts of parsed events",
		},
	)

	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aerolink_agent_buffer_depth",
			Help: "Bytes currently held in the raw line buffer",
		},
	)

	ReaderConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aerolink_agent_reader_connected",
			Help: "Whether the decoder connection is currently established",
		},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_reconnects_total",
			Help: "Total number of decoder reconnect attempts",
		},
	)

	// Correlation metrics
	CorrelationCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_correlation_cycles_total",
			Help: "Total number of completed correlation cycles",
		},
	)

	CorrelationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_agent_correlation_updates_total",
			Help: "Total number of events rewritten by correlation",
		},
		[]string{"pass"},
	)

	// Delivery metrics
	DeliveryBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_agent_delivery_batches_total",
			Help: "Total number of delivery attempts by result",
		},
		[]string{"result"},
	)

	DeliveryEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerolink_agent_delivery_events_total",
			Help: "Total number of events acknowledged by the remote endpoint",
		},
	)

	DeliveryConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aerolink_agent_delivery_consecutive_failures",
			Help: "Consecutive delivery failures since the last success",
		},
	)

	// Store metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_agent_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"op"},
	)
)
