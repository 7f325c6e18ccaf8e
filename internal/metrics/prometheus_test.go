package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "test")
	require.NoError(t, err)

	p.RecordMatch("matched", "perfect")
	p.RecordMatch("matched", "perfect")
	p.RecordMatch("searching", "")
	p.RecordConflict("guaranteed")
	p.RecordProvisioningFailure("create_channel")
	p.ObserveRequestLatency(250 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.matches.WithLabelValues("matched", "perfect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.matches.WithLabelValues("searching", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.conflicts.WithLabelValues("guaranteed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.provisioning.WithLabelValues("create_channel")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.latency))
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "dup")
	require.NoError(t, err)

	_, err = NewPrometheus(reg, "dup")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var c Collector = NewNop()
	c.RecordMatch("matched", "perfect")
	c.RecordConflict("perfect")
	c.RecordProvisioningFailure("create_channel")
	c.ObserveRequestLatency(time.Second)
}
