package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationCounters(t *testing.T) {
	started := testutil.ToFloat64(registrationStartedTotal)

	IncRegistrationStarted()
	IncRegistrationStarted()
	IncRegistrationCompleted("Accepted")
	assert.Equal(t, started+2, testutil.ToFloat64(registrationStartedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(registrationCompletedTotal.WithLabelValues("accepted")))

	SetSessionsActive(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(registrationSessionsActive))
}

func TestNorm(t *testing.T) {
	assert.Equal(t, "awaiting_email", norm("  Awaiting_Email "))
	assert.Equal(t, "unknown", norm(""))
}

func TestMustRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)
	MustRegister(reg)

	IncHandler("start", "ok")
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["telegram_handler_total"])
	assert.True(t, names["registration_sessions_active"])
}
