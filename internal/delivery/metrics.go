package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	deliveryOutcomeCounter     *prometheus.CounterVec
	publishCounter             prometheus.Counter
	publishFailureCounter      prometheus.Counter
	republishCounter           prometheus.Counter
	supersededCounter          prometheus.Counter
	ackReceivedCounter         prometheus.Counter
	failureNotificationCounter prometheus.Counter
	pendingAckGauge            prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.deliveryOutcomeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "device_communication_delivery_outcome_count",
		Help: "The number of deliveries per terminal outcome",
	}, []string{"outcome"})

	metrics.publishCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_publish_count",
		Help: "The number of messages published to the transport",
	})

	metrics.publishFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_publish_failure_count",
		Help: "The number of publish attempts rejected by the transport",
	})

	metrics.republishCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_republish_count",
		Help: "The number of retry republishes",
	})

	metrics.supersededCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_delivery_superseded_count",
		Help: "The number of pending deliveries displaced by a newer delivery for the same correlation key",
	})

	metrics.ackReceivedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_ack_received_count",
		Help: "The number of acknowledgements received from devices",
	})

	metrics.failureNotificationCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_delivery_failure_notification_count",
		Help: "The number of delivery failure notifications received from the adapter",
	})

	metrics.pendingAckGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "device_communication_pending_ack_count",
		Help: "The number of deliveries currently waiting for an acknowledgement",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
