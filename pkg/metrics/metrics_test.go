package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryDisablesMetrics(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// Every method must be safe on nil.
	m.RecordRequest("GET", "SUCCESS", time.Millisecond)
	m.RecordAdmitted(RouteOrdered)
	m.RecordDropped(DropQueueClosed)
	m.AddQueueDepth(1)
	m.ConnectionOpened(true)
	m.ConnectionClosed(true)
	m.RecordPinOp("LOCK_PINOP", "SUCCESS")
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordRequest("PUT", "SUCCESS", 2*time.Millisecond)
	m.RecordRequest("PUT", "SUCCESS", time.Millisecond)
	m.RecordRequest("PUT", "VERSION_MISMATCH", time.Millisecond)
	m.RecordAdmitted(RoutePool)
	m.RecordDropped(DropQueueFull)
	m.AddQueueDepth(3)
	m.AddQueueDepth(-1)
	m.ConnectionOpened(true)
	m.ConnectionOpened(false)
	m.ConnectionOpened(false)
	m.ConnectionClosed(false)
	m.RecordPinOp("ERASE_PINOP", "NOT_AUTHORIZED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("PUT", "SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("PUT", "VERSION_MISMATCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admittedTotal.WithLabelValues(RoutePool)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedTotal.WithLabelValues(DropQueueFull)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pinOpsTotal.WithLabelValues("ERASE_PINOP", "NOT_AUTHORIZED")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
