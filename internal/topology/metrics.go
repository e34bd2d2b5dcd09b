package topology

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	provisionedTenantCounter  prometheus.Counter
	tornDownTenantCounter     prometheus.Counter
	reconcileOperationCounter prometheus.Counter
	reconcileFailureCounter   prometheus.Counter
	faultyRebindCounter       prometheus.Counter
	tenantNotificationCounter *prometheus.CounterVec
	managedTenantGauge        prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.provisionedTenantCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_tenant_provisioned_count",
		Help: "The number of tenant topology provisioning runs",
	})

	metrics.tornDownTenantCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_tenant_teardown_count",
		Help: "The number of tenant topology teardowns",
	})

	metrics.reconcileOperationCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_reconcile_operation_count",
		Help: "The number of successful topology reconcile operations",
	})

	metrics.reconcileFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_reconcile_failure_count",
		Help: "The number of failed topology reconcile operations",
	})

	metrics.faultyRebindCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "device_communication_faulty_subscription_rebind_count",
		Help: "The number of subscriptions rebound after losing their backing topic",
	})

	metrics.tenantNotificationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "device_communication_tenant_notification_count",
		Help: "The number of tenant lifecycle notifications received per change type",
	}, []string{"change"})

	metrics.managedTenantGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "device_communication_managed_tenant_count",
		Help: "The number of tenants whose subscriptions this instance is consuming",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
