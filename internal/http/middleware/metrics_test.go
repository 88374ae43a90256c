package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/purchases/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	byRoute := httpReqs.WithLabelValues("GET", "/purchases/:id", "200")
	unmatched := httpReqs.WithLabelValues("GET", unmatchedRoute, "404")
	baseRoute := testutil.ToFloat64(byRoute)
	baseUnmatched := testutil.ToFloat64(unmatched)

	for _, p := range []string{"/purchases/1", "/purchases/2", "/nothing/here", "/or/here"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(byRoute); got != baseRoute+2 {
		t.Fatalf("route counter = %v, want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(unmatched); got != baseUnmatched+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseUnmatched+2)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v, want 0", got)
	}
}
