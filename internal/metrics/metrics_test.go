package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentInstances(t *testing.T) {
	// Private registries: two instances must coexist without
	// duplicate-registration panics, as in multi-engine tests.
	a := New()
	b := New()

	a.FramesReceived.Inc()
	a.FramesReceived.Inc()
	b.FramesReceived.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.FramesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.FramesReceived))
}

func TestRegistryGathersAll(t *testing.T) {
	m := New()
	m.DecodeErrors.WithLabelValues("truncated").Inc()
	m.Delivered.WithLabelValues("sos").Inc()
	m.LedgerSize.Set(7)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"beacon_relay_frames_received_total",
		"beacon_relay_decode_errors_total",
		"beacon_relay_delivered_total",
		"beacon_ledger_entries",
		"beacon_ledger_evictions_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestHandlerServes(t *testing.T) {
	assert.NotNil(t, New().Handler())
}
