package app

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"DomainScore/internal/config"
	"DomainScore/internal/domain"
	"DomainScore/pkg/logger"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	return cfg
}

func TestNewWiresConfiguredScheme(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Scoring.Scheme = "archive"

	a, err := New(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Close)

	if got := a.Analyzer().Scheme().Name(); got != "archive" {
		t.Fatalf("expected archive scheme, got %q", got)
	}
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Scoring.Scheme = "pagerank"
	if _, err := New(cfg, logger.Discard()); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
}

func TestBuildProbesRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Probes.Social.Platforms = []string{"reddit", "myspace"}
	if _, err := BuildProbes(cfg.Probes, logger.Discard()); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestBuildProbesWiresEverySource(t *testing.T) {
	t.Parallel()

	probes, err := BuildProbes(testConfig(t).Probes, logger.Discard())
	if err != nil {
		t.Fatalf("BuildProbes returned error: %v", err)
	}
	if probes.Archive == nil || probes.DNS == nil || probes.Index == nil ||
		probes.Mail == nil || probes.Web == nil || probes.Social == nil {
		t.Fatalf("expected every probe wired: %+v", probes)
	}
}

func TestNewUsesRedisWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"

	a, err := New(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Close)
	if len(a.closers) != 1 {
		t.Fatalf("expected redis client closer, got %d", len(a.closers))
	}
}

func TestMemoryCacheSizeIsExported(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(t), logger.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Close)

	a.cache.Set(context.Background(), domain.DomainAnalysis{Domain: "example.com"})
	a.cache.Set(context.Background(), domain.DomainAnalysis{Domain: "example.org"})

	rec := httptest.NewRecorder()
	a.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if body := rec.Body.String(); !strings.Contains(body, "domainscore_cache_entries 2") {
		t.Fatalf("expected two cached entries in metrics, got:\n%s", body)
	}
}
