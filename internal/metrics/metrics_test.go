package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

func TestMetricsObserveStream(t *testing.T) {
	m := New()
	sink := slidestream.SinkFunc(func(context.Context, slidestream.Event) error { return nil })
	_, err := slidestream.Run(context.Background(),
		slidestream.NewSliceSource(`[{"title":"abc"},{nope},{"content":"d"}]`), sink,
		slidestream.Options{Observer: m})
	require.NoError(t, err)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.characters))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.slides))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.malformed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.streams.WithLabelValues("completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.streams.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.StreamFinished(slidestream.OutcomeCancelled, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `slidegen_streams_total{outcome="cancelled"} 1`)
	assert.Contains(t, string(body), "slidegen_stream_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
