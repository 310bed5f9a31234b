package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "test counter")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("counter = %d, want 3", c.Value())
	}

	g := r.Gauge("test_current", "test gauge")
	g.Set(5)
	g.Inc()
	g.Dec()
	if g.Value() != 5 {
		t.Fatalf("gauge = %d, want 5", g.Value())
	}

	// Same name returns the same metric.
	if r.Counter("test_total", "") != c {
		t.Fatal("counter not deduplicated")
	}
}

func TestHistogram(t *testing.T) {
	r := New()
	h := r.Histogram("test_seconds", "latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100) // above all buckets, counted only in +Inf
	h.Since(time.Now())

	out := r.Render()
	if !strings.Contains(out, `test_seconds_bucket{le="0.1"} 2`) {
		t.Fatalf("bucket 0.1 wrong:\n%s", out)
	}
	if !strings.Contains(out, `test_seconds_bucket{le="1"} 3`) {
		t.Fatalf("cumulative bucket 1 wrong:\n%s", out)
	}
	if !strings.Contains(out, `test_seconds_bucket{le="+Inf"} 4`) {
		t.Fatalf("+Inf bucket wrong:\n%s", out)
	}
	if !strings.Contains(out, "test_seconds_count 4") {
		t.Fatalf("count wrong:\n%s", out)
	}
}

func TestRender_TypesAndHelp(t *testing.T) {
	r := New()
	r.Counter("a_total", "counts things").Inc()
	r.Gauge("b_current", "").Set(1)

	out := r.Render()
	if !strings.Contains(out, "# HELP a_total counts things") {
		t.Fatalf("missing help:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE a_total counter") || !strings.Contains(out, "# TYPE b_current gauge") {
		t.Fatalf("missing types:\n%s", out)
	}
	// Registration order is preserved.
	if strings.Index(out, "a_total") > strings.Index(out, "b_current") {
		t.Fatalf("render order wrong:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Fatalf("body:\n%s", rec.Body.String())
	}
}
