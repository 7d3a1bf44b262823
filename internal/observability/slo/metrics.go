package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the check worker.
// These targets are used to measure and monitor watcher reliability.
const (
	// CheckSuccessSLO defines the target ratio of targets checked without
	// error per cycle (99% = at most 1 in 100 checks failing)
	CheckSuccessSLO = 0.99

	// CycleDurationSLO defines the target for the wall time of a full check
	// cycle in seconds (5 minutes)
	CycleDurationSLO = 300.0

	// NotificationDeliverySLO defines the target ratio of change
	// notifications delivered on the first dispatch (99.5%)
	NotificationDeliverySLO = 0.995
)

// SLO tracking metrics
// These gauges are updated after every check cycle based on the cycle's
// outcome, to track whether the worker is meeting its SLO targets.
var (
	// SLOCheckSuccess tracks the most recent cycle's success ratio (0-1)
	// calculated as: checked / (checked + errors)
	SLOCheckSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_check_success_ratio",
			Help: "Success ratio of the most recent check cycle (0-1), target: 0.99",
		},
	)

	// SLOCycleDuration tracks the most recent cycle's wall time in seconds
	SLOCycleDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_cycle_duration_seconds",
			Help: "Wall time of the most recent check cycle in seconds, target: 300",
		},
	)

	// SLONotificationDelivery tracks the ratio of notifications delivered
	// without retries or drops (0-1)
	SLONotificationDelivery = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_notification_delivery_ratio",
			Help: "First-attempt notification delivery ratio (0-1), target: 0.995",
		},
	)
)

// UpdateCheckSuccess updates the check success SLO metric.
// Call this after every cycle with the calculated success ratio.
//
// Example calculation:
//
//	ratio := float64(stats.Checked) / float64(stats.Checked+stats.Errors)
//	slo.UpdateCheckSuccess(ratio)
func UpdateCheckSuccess(ratio float64) {
	SLOCheckSuccess.Set(ratio)
}

// UpdateCycleDuration updates the cycle duration SLO metric.
// Call this after every cycle with the cycle's wall time in seconds.
func UpdateCycleDuration(seconds float64) {
	SLOCycleDuration.Set(seconds)
}

// UpdateNotificationDelivery updates the notification delivery SLO metric.
// Call this periodically with the calculated delivery ratio.
//
// Example calculation:
//
//	delivered := getDeliveredCount()
//	dispatched := getDispatchedCount()
//	slo.UpdateNotificationDelivery(float64(delivered) / float64(dispatched))
func UpdateNotificationDelivery(ratio float64) {
	SLONotificationDelivery.Set(ratio)
}
