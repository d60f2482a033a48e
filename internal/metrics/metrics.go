// Package metrics exposes Prometheus counters for session and attendance
// transitions.  They are registered on the default registry and served by
// promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "sessions_opened_total",
		Help:      "Sessions opened, by event type.",
	}, []string{"event_type"})

	sessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "sessions_closed_total",
		Help:      "Sessions closed, by close reason (manual, rank, auto).",
	}, []string{"reason"})

	checkIns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "checkins_total",
		Help:      "Successful check-ins.",
	})

	checkOuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "checkouts_total",
		Help:      "Attendances checked out, by source (member, session_close).",
	}, []string{"source"})

	sweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "auto_end_failures_total",
		Help:      "Sessions the auto-end sweep failed to close.",
	})

	qrValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firestation",
		Name:      "qr_validations_total",
		Help:      "QR token validations, by result.",
	}, []string{"result"})
)

func SessionOpened(eventType string) { sessionsOpened.WithLabelValues(eventType).Inc() }

func SessionClosed(reason string, checkedOut int64) {
	sessionsClosed.WithLabelValues(reason).Inc()
	if checkedOut > 0 {
		checkOuts.WithLabelValues("session_close").Add(float64(checkedOut))
	}
}

func CheckedIn() { checkIns.Inc() }

func CheckedOut() { checkOuts.WithLabelValues("member").Inc() }

func SweepFailure() { sweepFailures.Inc() }

func QRValidation(ok bool) {
	if ok {
		qrValidations.WithLabelValues("valid").Inc()
		return
	}
	qrValidations.WithLabelValues("invalid").Inc()
}
