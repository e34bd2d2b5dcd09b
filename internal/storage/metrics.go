package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	deviceExistsDuration      prometheus.Histogram
	listTenantsDuration       prometheus.Histogram
	getConfigVersionDuration  prometheus.Histogram
	recordOutcomeDuration     prometheus.Histogram
	recordDeviceStateDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.deviceExistsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "device_communication_db_device_exists_duration",
		Help: "The amount of time the db takes to check device registration",
	})

	metrics.listTenantsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "device_communication_db_list_tenants_duration",
		Help: "The amount of time the db takes to list known tenants",
	})

	metrics.getConfigVersionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "device_communication_db_get_config_version_duration",
		Help: "The amount of time the db takes to load the latest config version",
	})

	metrics.recordOutcomeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "device_communication_db_record_outcome_duration",
		Help: "The amount of time the db takes to record a delivery outcome",
	})

	metrics.recordDeviceStateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "device_communication_db_record_device_state_duration",
		Help: "The amount of time the db takes to record a device state",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
