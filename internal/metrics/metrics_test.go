package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecrypt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordDecrypt("AES-CTR", 5*time.Millisecond, 1024)
	m.RecordDecrypt("AES-CTR", 5*time.Millisecond, 1024)
	m.RecordDecrypt("ChaCha20", 5*time.Millisecond, 512)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decryptOperations.WithLabelValues("AES-CTR")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.decryptBytes.WithLabelValues("AES-CTR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decryptOperations.WithLabelValues("ChaCha20")))
}

func TestRecordPoolCheckouts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordPoolCheckouts("buffer", 3, 1)
	m.RecordPoolCheckouts("buffer", 2, 0)
	m.RecordPoolCheckouts("cipher", 0, 1)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.poolCheckouts.WithLabelValues("buffer", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poolCheckouts.WithLabelValues("buffer", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poolCheckouts.WithLabelValues("cipher", "miss")))
}

func TestRecordRangeRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordRangeRequest("range")
	m.RecordRangeRequest("range")
	m.RecordRangeRequest("full")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rangeRequestsTotal.WithLabelValues("range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rangeRequestsTotal.WithLabelValues("full")))
}

func TestDecryptMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordDecrypt("AES-CTR", time.Millisecond, 16)
	m.RecordDecryptError("AES-CTR", "copy")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["decrypt_operations_total"])
	assert.True(t, names["decrypt_duration_seconds"])
	assert.True(t, names["decrypt_bytes_total"])
	assert.True(t, names["decrypt_errors_total"])
}

func TestUpdateSystemMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.UpdateSystemMetrics()

	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.memoryAllocBytes), 0.0)
}
