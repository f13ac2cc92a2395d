package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FSMTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_fsm_transitions_total",
			Help: "FSM state transitions, by origin state, destination state and triggering event.",
		},
		[]string{"from", "to", "event"},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_messages_sent_total",
			Help: "BGP messages sent, by type.",
		},
		[]string{"type"},
	)

	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_messages_received_total",
			Help: "BGP messages received, by type.",
		},
		[]string{"type"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_notifications_total",
			Help: "NOTIFICATION messages exchanged, by direction, code and subcode.",
		},
		[]string{"direction", "code", "subcode"},
	)

	CodecErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_codec_errors_total",
			Help: "Message decode failures, by message type and error code.",
		},
		[]string{"type", "code"},
	)

	TimerExpiriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_timer_expiries_total",
			Help: "Timer expiries delivered to the FSM, by timer kind.",
		},
		[]string{"timer"},
	)

	ConnectRetryCounter = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bgpspeaker_connect_retry_counter",
			Help: "Current connect_retry_counter value for the configured peer.",
		},
	)

	RIBDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bgpspeaker_rib_delivery_duration_seconds",
			Help:    "Latency of handing a decoded UPDATE to the RIB sink.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)

	TelemetryPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeaker_telemetry_publish_errors_total",
			Help: "Telemetry publish failures to Kafka.",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry on its first
// call; later calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FSMTransitionsTotal,
			MessagesSentTotal,
			MessagesReceivedTotal,
			NotificationsTotal,
			CodecErrorsTotal,
			TimerExpiriesTotal,
			ConnectRetryCounter,
			RIBDeliveryDuration,
			TelemetryPublishErrorsTotal,
		)
	})
}
