package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		registrationStartedTotal,
		registrationCancelledTotal,
		registrationCompletedTotal,
		registrationValidationFailuresTotal,
		registrationPersistFailuresTotal,
		registrationRejectedTotal,
		registrationSessionsActive,
	)
}

var (
	registrationStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_started_total",
			Help: "Registration sessions created by the entry guard.",
		},
	)

	registrationCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_cancelled_total",
			Help: "Registrations declined at the email consent step.",
		},
	)

	registrationCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_completed_total",
			Help: "Registrations that reached the final step, by phone outcome.",
		},
		[]string{"outcome"}, // declined, unavailable, accepted
	)

	registrationValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_validation_failures_total",
			Help: "Inputs rejected by a step validator.",
		},
		[]string{"step"},
	)

	registrationPersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_persist_failures_total",
			Help: "Completions whose repository write failed.",
		},
	)

	registrationRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_rejected_total",
			Help: "Registration attempts refused by the entry guard.",
		},
		[]string{"reason"}, // unknown_user, already_registered, in_progress, error
	)

	registrationSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registration_sessions_active",
			Help: "Registration sessions in progress, sampled by the session sweeper.",
		},
	)
)

func IncRegistrationStarted() {
	registrationStartedTotal.Inc()
}

func IncRegistrationCancelled() {
	registrationCancelledTotal.Inc()
}

func IncRegistrationCompleted(outcome string) {
	registrationCompletedTotal.WithLabelValues(norm(outcome)).Inc()
}

func SetSessionsActive(n int) {
	registrationSessionsActive.Set(float64(n))
}

func IncValidationFailure(step string) {
	registrationValidationFailuresTotal.WithLabelValues(norm(step)).Inc()
}

func IncPersistFailure() {
	registrationPersistFailuresTotal.Inc()
}

func IncRegistrationRejected(reason string) {
	registrationRejectedTotal.WithLabelValues(norm(reason)).Inc()
}
