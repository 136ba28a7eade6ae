package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/gift-market/internal/core/domain"
)

func TestObservePurchase(t *testing.T) {
	before := testutil.ToFloat64(purchases.WithLabelValues(string(domain.OutcomeOutOfStock)))

	ObservePurchase(domain.OutcomeOutOfStock, 3*time.Millisecond)
	ObservePurchase(domain.OutcomeOutOfStock, time.Millisecond)

	after := testutil.ToFloat64(purchases.WithLabelValues(string(domain.OutcomeOutOfStock)))
	assert.Equal(t, before+2, after)
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/items/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequests.WithLabelValues(http.MethodGet, "/api/items/{itemID}", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/items/99", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestInstrumentHandler_UnmatchedPathsShareOneLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	counter := httpRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/wp-admin/a1", "/wp-admin/b2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Zero(t, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/wp-admin/a1", "404")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	ObservePurchase(domain.OutcomeCommitted, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gift_market_ledger_purchases_total"))
}
