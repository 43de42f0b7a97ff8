package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DomainScore/internal/domain"
)

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	p := New()
	p.ProbeFailed("archive")
	p.ProbeFailed("archive")
	p.AnalysisCompleted(domain.StatusRegistered, 1500*time.Millisecond)
	p.PassCompleted(7, 2)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`domainscore_probe_failures_total{probe="archive"} 2`,
		`domainscore_analysis_duration_seconds_count{status="registered"} 1`,
		`domainscore_last_pass_scored 7`,
		`domainscore_last_pass_failed 2`,
		`domainscore_passes_total 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestCacheEntriesGauge(t *testing.T) {
	t.Parallel()

	p := New()
	size := 0
	p.CacheEntries(func() int { return size })
	size = 4

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if body := rec.Body.String(); !strings.Contains(body, "domainscore_cache_entries 4") {
		t.Fatalf("expected cache gauge in metrics output, got:\n%s", body)
	}
}
