package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(mux)

	counter := httpRequestsTotal.WithLabelValues("GET", "GET /items/{id}", "418")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"1", "2", "3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(counter))

	unmatched := httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}

func TestRecorders(t *testing.T) {
	served := shareRequestsTotal.WithLabelValues("served")
	before := testutil.ToFloat64(served)
	RecordShareRequest("served")
	assert.Equal(t, before+1, testutil.ToFloat64(served))

	SetSharesActive(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(sharesActive))

	degraded := testutil.ToFloat64(listingDegradedTotal)
	RecordListingDegraded()
	assert.Equal(t, degraded+1, testutil.ToFloat64(listingDegradedTotal))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRateLimitHit()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "explorer_rate_limit_hits_total")
}
