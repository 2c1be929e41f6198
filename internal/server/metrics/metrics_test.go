package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}

func TestObserveIncrementsCounters(t *testing.T) {
	r := New()

	r.Observe(OpUpload, ResultOK, 25*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, r.Requests.WithLabelValues(OpUpload, ResultOK)))
}

func TestAddBytesIgnoresNonPositive(t *testing.T) {
	r := New()

	r.AddBytes(OpUpload, 0)
	r.AddBytes(OpUpload, -5)
	r.AddBytes(OpUpload, 100)

	assert.Equal(t, float64(100), counterValue(t, r.BytesTransferred.WithLabelValues(OpUpload)))
}

func TestNewRegistersWithoutPanic(t *testing.T) {
	require.NotPanics(t, func() {
		New()
	})
}
