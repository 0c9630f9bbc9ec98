package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of schedule events handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of handler failures grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of malformed messages skipped per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wiiks",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent processed message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(ev Event) {
	processedCounter.WithLabelValues(ev.Topic, ev.EventType).Inc()
	if !ev.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(ev.Topic).Set(float64(ev.Timestamp.Unix()))
	}
}

func recordHandlerError(ev Event) {
	handlerErrorCounter.WithLabelValues(ev.Topic, ev.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
