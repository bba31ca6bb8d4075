package metric

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg, "test")
	require.NoError(t, err)

	c.RecordAdd(5, 20*time.Millisecond, nil)
	c.RecordAdd(0, time.Millisecond, errors.New("boom"))
	c.RecordQuery(true, 3*time.Millisecond, nil)
	c.RecordQuery(false, 2*time.Millisecond, nil)
	c.RecordQueryBatch(4, 10*time.Millisecond, nil)
	c.RecordFusion(2, 7)

	assert.Equal(t, 1.0, ptestutil.ToFloat64(c.addTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, ptestutil.ToFloat64(c.addTotal.WithLabelValues("error")))
	assert.Equal(t, 5.0, ptestutil.ToFloat64(c.addPoints))
	assert.Equal(t, 1.0, ptestutil.ToFloat64(c.queryTotal.WithLabelValues("ok", "hybrid")))
	assert.Equal(t, 1.0, ptestutil.ToFloat64(c.queryTotal.WithLabelValues("ok", "single")))
	assert.Equal(t, 4.0, ptestutil.ToFloat64(c.batchQueries))
	assert.Equal(t, 7.0, ptestutil.ToFloat64(c.fusionHits))
}

func TestPrometheusCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg, "dup")
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg, "dup")
	assert.Error(t, err)
}
