package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/dopplerindex/catalog"
)

func TestRecordLoad(t *testing.T) {
	m := New(Config{Enabled: true})

	m.RecordLoad(&catalog.Summary{
		Found:   catalog.Counts{Acquisitions: 3, Intermediates: 2, Finals: 1},
		Skipped: catalog.Counts{Finals: 1},
	}, 2*time.Second)
	m.RecordLoad(nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("rolled_back")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsFound.WithLabelValues("acquisition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkipped.WithLabelValues("final")))
}

func TestRecordBatchCrawled(t *testing.T) {
	m := New(Config{Enabled: true})
	m.RecordBatchCrawled(true, time.Millisecond)
	m.RecordBatchCrawled(true, time.Millisecond)
	m.RecordBatchCrawled(false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesCrawled.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesCrawled.WithLabelValues("error")))
}

func TestDisabledAndNilMetricsAreNoops(t *testing.T) {
	var nilMetrics *Metrics
	for _, m := range []*Metrics{nilMetrics, New(Config{})} {
		assert.False(t, m.IsEnabled())
		assert.NotPanics(t, func() {
			m.RecordBatchCrawled(true, time.Second)
			m.RecordLoad(&catalog.Summary{}, time.Second)
			m.SetActiveWorkers(3)
			m.SetScanRunning(true)
		})
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(Config{Enabled: true})
	m.SetScanRunning(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dopplerindex_scan_running 1")
}
