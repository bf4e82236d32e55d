package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gridsentry/gridchaos/internal/controller"
	"github.com/gridsentry/gridchaos/powergrid"
)

var _ controller.MetricsRecorder = (*Collector)(nil)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestNewCollectorIsReRegistrable(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	// A second collector against the same registry reuses the existing
	// metrics instead of failing.
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("re-registration: %v", err)
	}
}

func TestObserveSolveConverged(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveSolve(powergrid.Snapshot{
		Converged:    true,
		MinVoltagePu: 1.01,
		TotalLoadMw:  259,
		GenerationMw: 272,
		SolveTimeMs:  3.5,
	})

	if got := testutil.ToFloat64(c.GridMinVoltage); got != 1.01 {
		t.Fatalf("min voltage gauge = %v, want 1.01", got)
	}
	if got := testutil.ToFloat64(c.GridTotalLoad); got != 259 {
		t.Fatalf("total load gauge = %v, want 259", got)
	}
	if got := testutil.ToFloat64(c.GridGeneration); got != 272 {
		t.Fatalf("generation gauge = %v, want 272", got)
	}
	if got := testutil.ToFloat64(c.SolveDivergences); got != 0 {
		t.Fatalf("divergences = %v after a converged solve", got)
	}
}

func TestObserveSolveDiverged(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveSolve(powergrid.Snapshot{Converged: true, MinVoltagePu: 1.01, TotalLoadMw: 259, GenerationMw: 272})
	c.ObserveSolve(powergrid.Snapshot{Converged: false, TotalLoadMw: 2590})

	if got := testutil.ToFloat64(c.SolveDivergences); got != 1 {
		t.Fatalf("divergences = %v, want 1", got)
	}
	// Load reflects the diverged attempt; voltage and generation keep their
	// last converged values.
	if got := testutil.ToFloat64(c.GridTotalLoad); got != 2590 {
		t.Fatalf("total load gauge = %v, want 2590", got)
	}
	if got := testutil.ToFloat64(c.GridMinVoltage); got != 1.01 {
		t.Fatalf("min voltage gauge = %v, want last converged 1.01", got)
	}
	if got := testutil.ToFloat64(c.GridGeneration); got != 272 {
		t.Fatalf("generation gauge = %v, want last converged 272", got)
	}
}

func TestRecordGridRebuildBySource(t *testing.T) {
	c := newTestCollector(t)

	c.RecordGridRebuild("reset")
	c.RecordGridRebuild("reset")
	c.RecordGridRebuild("rollback")

	if got := testutil.ToFloat64(c.GridRebuilds.WithLabelValues("reset")); got != 2 {
		t.Fatalf("reset rebuilds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.GridRebuilds.WithLabelValues("rollback")); got != 1 {
		t.Fatalf("rollback rebuilds = %v, want 1", got)
	}
}

func TestRecordBlastRadiusTrip(t *testing.T) {
	c := newTestCollector(t)
	c.RecordBlastRadiusTrip()
	c.RecordBlastRadiusTrip()

	if got := testutil.ToFloat64(c.BlastRadiusTrips); got != 2 {
		t.Fatalf("trips = %v, want 2", got)
	}
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestCollector(t)

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/status", func(g *gin.Context) { g.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	// An unrouted path lands in the catch-all label.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d for unknown route", w.Code)
	}

	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/status", "GET", "200")); got != 3 {
		t.Fatalf("counted %v requests for /status, want 3", got)
	}
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Fatalf("counted %v unmatched requests, want 1", got)
	}
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.RecordBlastRadiusTrip()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "gridchaos_blast_radius_trips_total 1") {
		t.Fatalf("exposition missing trip counter:\n%s", w.Body.String())
	}
}
