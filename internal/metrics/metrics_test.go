package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/resolve"
)

func TestNewCollectorSetsPolicyGauges(t *testing.T) {
	c := NewCollector(resolve.DefaultPolicy(), 5*time.Minute)
	assert.Equal(t, float64(3*3600), testutil.ToFloat64(c.ScheduledWindow))
	assert.Equal(t, float64(1800), testutil.ToFloat64(c.SpanWindow))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.BucketHours))
	assert.Equal(t, float64(300), testutil.ToFloat64(c.SnapshotInterval))
}

func TestHandlerExposesCounters(t *testing.T) {
	c := NewCollector(resolve.DefaultPolicy(), time.Minute)
	c.SkippedTrips.Inc()
	c.Descriptors.WithLabelValues("derived").Add(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tripwindow_trip_definitions_skipped_total 1"))
	assert.True(t, strings.Contains(body, `tripwindow_trip_descriptors_total{source="derived"} 2`))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeLogsThroughGivenLogger(t *testing.T) {
	out := &lockedBuffer{}
	c := NewCollector(resolve.DefaultPolicy(), time.Minute)

	srv := c.Serve("127.0.0.1:-1", zerolog.New(out))
	defer srv.Close()

	assert.Contains(t, out.String(), `"component":"metrics"`)
	assert.Contains(t, out.String(), "metrics listening")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "metrics server error")
	}, 2*time.Second, 10*time.Millisecond)
}
