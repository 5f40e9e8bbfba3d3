package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/catalog/file/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/catalog/file/{id}", "404"))
	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/catalog/file/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/catalog/file/{id}", "404"))

	if after-before != 3 {
		t.Errorf("counter delta = %v, want 3", after-before)
	}
}

func TestRecordPageCache(t *testing.T) {
	hits := testutil.ToFloat64(pageCacheRequestsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(pageCacheRequestsTotal.WithLabelValues("miss"))

	RecordPageCache(true)
	RecordPageCache(false)
	RecordPageCache(false)

	if got := testutil.ToFloat64(pageCacheRequestsTotal.WithLabelValues("hit")) - hits; got != 1 {
		t.Errorf("hits delta = %v", got)
	}
	if got := testutil.ToFloat64(pageCacheRequestsTotal.WithLabelValues("miss")) - misses; got != 2 {
		t.Errorf("misses delta = %v", got)
	}
}

func TestRecordCatalogBuild(t *testing.T) {
	RecordCatalogBuild(42, 3, time.Second)
	if got := testutil.ToFloat64(catalogEntries); got != 42 {
		t.Errorf("entries = %v", got)
	}
	if got := testutil.ToFloat64(catalogBrokenFiles); got != 3 {
		t.Errorf("broken = %v", got)
	}
}
