// Package monitoring holds the Prometheus collectors of the ticketing
// service.  Collectors register with the default registry on import and
// are exposed by the router at /metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome (completed, partial, skipped, error)",
		},
		[]string{"outcome"},
	)

	settlementFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_partial_failures_total",
			Help: "Post-commit settlement steps that failed",
		},
		[]string{"step"},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Check-in lookups and redemptions by result code",
		},
		[]string{"result"},
	)

	voucherValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_validations_total",
			Help: "Voucher validations by result code",
		},
		[]string{"result"},
	)

	notificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "send_tickets jobs handed to the broker",
		},
		[]string{"transport", "status"},
	)

	notificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Ticket deliveries attempted by the dispatcher",
		},
		[]string{"status"},
	)

	reconcileSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_reconcile_resumed_total",
			Help: "Incomplete settlements resumed by the reconciler",
		},
	)
)

func RecordSettlement(outcome string)       { settlements.WithLabelValues(outcome).Inc() }
func RecordSettlementFailure(step string)   { settlementFailures.WithLabelValues(step).Inc() }
func RecordCheckIn(result string)           { checkins.WithLabelValues(result).Inc() }
func RecordVoucherValidation(result string) { voucherValidations.WithLabelValues(result).Inc() }
func RecordDelivery(status string)          { notificationDeliveries.WithLabelValues(status).Inc() }
func RecordReconcileResumed(n int)          { reconcileSweeps.Add(float64(n)) }

// RecordPublish counts a publish attempt on the given transport.
func RecordPublish(transport string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	notificationsPublished.WithLabelValues(transport, status).Inc()
}
