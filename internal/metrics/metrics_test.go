package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	metrics := GetMetrics()
	assert.NotNil(t, metrics, "Metrics should not be nil")

	// Call again to test singleton behavior
	metrics2 := GetMetrics()
	assert.Same(t, metrics, metrics2, "GetMetrics should return the same instance")
}

func TestAllMetricsInitialized(t *testing.T) {
	m := GetMetrics()

	assert.NotNil(t, m.BridgeMessagesTotal)
	assert.NotNil(t, m.BridgeRequestsTotal)
	assert.NotNil(t, m.BridgeRequestDuration)
	assert.NotNil(t, m.BridgeProtocolErrorsTotal)
	assert.NotNil(t, m.BridgePendingRequests)

	assert.NotNil(t, m.RouterEventsTotal)
	assert.NotNil(t, m.RouterDroppedEventsTotal)
	assert.NotNil(t, m.RouterSubscriptionsActive)

	assert.NotNil(t, m.HostWindowsActive)
	assert.NotNil(t, m.HostMenuActionsTotal)
	assert.NotNil(t, m.HostDialogsTotal)
	assert.NotNil(t, m.HostFileOperations)
	assert.NotNil(t, m.HostFileOperationTime)

	assert.NotNil(t, m.ProcessorRequestsTotal)
	assert.NotNil(t, m.ProcessorDuration)
	assert.NotNil(t, m.APIRequestsTotal)
}

func TestMetricsOperations(t *testing.T) {
	m := GetMetrics()

	before := testutil.ToFloat64(m.BridgeMessagesTotal.WithLabelValues("ai-action", "notify", "sent"))
	m.BridgeMessagesTotal.WithLabelValues("ai-action", "notify", "sent").Inc()
	after := testutil.ToFloat64(m.BridgeMessagesTotal.WithLabelValues("ai-action", "notify", "sent"))
	assert.Equal(t, before+1, after)

	m.HostWindowsActive.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HostWindowsActive))
	m.HostWindowsActive.Set(0)
}

func TestMetricsRegisteredWithDefaultRegistry(t *testing.T) {
	GetMetrics().RouterSubscriptionsActive.Set(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["textai_router_subscriptions_active"])
}
