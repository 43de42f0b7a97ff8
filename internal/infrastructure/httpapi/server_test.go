package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
	"DomainScore/internal/probe"
	"DomainScore/internal/scoring"
	"DomainScore/internal/usecase"
)

type stubRepo struct {
	mu         sync.Mutex
	rows       map[string]domain.DomainAnalysis
	lastFilter ports.ListFilter
}

func (s *stubRepo) Upsert(context.Context, domain.DomainAnalysis) error { return nil }

func (s *stubRepo) Get(_ context.Context, name string) (domain.DomainAnalysis, error) {
	a, ok := s.rows[name]
	if !ok {
		return domain.DomainAnalysis{}, ports.ErrNotFound
	}
	return a, nil
}

func (s *stubRepo) List(_ context.Context, f ports.ListFilter) ([]domain.DomainAnalysis, error) {
	s.mu.Lock()
	s.lastFilter = f
	s.mu.Unlock()
	out := make([]domain.DomainAnalysis, 0, len(s.rows))
	for _, a := range s.rows {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubRepo) Pending(context.Context, int) ([]string, error)          { return nil, nil }
func (s *stubRepo) EnqueuePending(context.Context, []string) (int, error) { return 0, nil }

type stubScorer struct {
	failStore bool
}

func (s stubScorer) Rescore(_ context.Context, name string, onProgress domain.ProgressFunc) (domain.DomainAnalysis, error) {
	if onProgress != nil {
		for _, st := range []domain.Stage{domain.StageStart, domain.StageProbing, domain.StageComplete} {
			onProgress(domain.ProgressEvent{Domain: name, Step: st, Percent: st.Percent()})
		}
	}
	a := domain.DomainAnalysis{Domain: name, Status: domain.StatusRegistered, TrafficScore: 61}
	if s.failStore {
		return a, errors.New("store down")
	}
	return a, nil
}

func (s stubScorer) RescoreBatch(_ context.Context, names []string) ([]domain.DomainAnalysis, error) {
	out := make([]domain.DomainAnalysis, len(names))
	for i, n := range names {
		out[i] = domain.DomainAnalysis{Domain: n, Status: domain.StatusAvailable}
	}
	return out, nil
}

type stubProbes struct{}

func (stubProbes) RunProbe(_ context.Context, kind probe.Kind, name string) (any, error) {
	if _, err := domain.Normalize(name); err != nil {
		return nil, err
	}
	switch kind {
	case probe.KindArchive:
		return domain.ArchiveSignal{OK: true, Snapshots: 12}, nil
	case probe.KindIndex:
		return nil, fmt.Errorf("%w: index for %s", usecase.ErrProbeFailed, name)
	}
	return nil, fmt.Errorf("%w: %s", usecase.ErrUnknownProbe, kind)
}

func newTestServer(t *testing.T, scorer stubScorer) (*httptest.Server, *stubRepo) {
	t.Helper()

	repo := &stubRepo{rows: map[string]domain.DomainAnalysis{
		"example.com": {Domain: "example.com", Status: domain.StatusExpired, TrafficScore: 33},
	}}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("domainscore_passes_total 0\n"))
	})
	srv := httptest.NewServer(New(Deps{
		Repository: repo,
		Scorer:     scorer,
		Probes:     stubProbes{},
		Metrics:    metrics,
		BatchLimit: 3,
	}).Routes())
	t.Cleanup(srv.Close)
	return srv, repo
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	var health map[string]string
	decodeBody(t, resp, &health)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health: %v", health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", resp.StatusCode)
	}
}

func TestGetDomain(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})

	resp, err := http.Get(srv.URL + "/api/domains/WWW.Example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var a domain.DomainAnalysis
	decodeBody(t, resp, &a)
	if a.Domain != "example.com" || a.TrafficScore != 33 {
		t.Fatalf("unexpected record: %+v", a)
	}

	cases := map[string]int{
		"/api/domains/unknown.org": http.StatusNotFound,
		"/api/domains/not_valid":   http.StatusBadRequest,
	}
	for path, want := range cases {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

func TestListDomainsTranslatesQuery(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t, stubScorer{})

	resp, err := http.Get(srv.URL + "/api/domains?q=shop&status=expired&min_score=40&sort=indexed_pages&order=asc&limit=10&offset=20")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var body struct {
		Items []domain.DomainAnalysis `json:"items"`
	}
	decodeBody(t, resp, &body)
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Items))
	}

	repo.mu.Lock()
	got := repo.lastFilter
	repo.mu.Unlock()
	want := ports.ListFilter{Query: "shop", Status: domain.StatusExpired, MinScore: 40, SortBy: "indexed_pages", Desc: false, Limit: 10, Offset: 20}
	if got != want {
		t.Fatalf("expected filter %+v, got %+v", want, got)
	}

	for _, query := range []string{"status=bogus", "min_score=abc", "limit=-1", "order=sideways"} {
		resp, err := http.Get(srv.URL + "/api/domains?" + query)
		if err != nil {
			t.Fatalf("list %s: %v", query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, resp.StatusCode)
		}
	}
}

func TestAnalyzeDomain(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})
	resp, err := http.Post(srv.URL+"/api/domains/example.com/analyze", "application/json", nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var a domain.DomainAnalysis
	decodeBody(t, resp, &a)
	if a.TrafficScore != 61 {
		t.Fatalf("unexpected record: %+v", a)
	}

	failing, _ := newTestServer(t, stubScorer{failStore: true})
	resp, err = http.Post(failing.URL+"/api/domains/example.com/analyze", "application/json", nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", resp.StatusCode)
	}
}

func TestStreamAnalysis(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})
	resp, err := http.Get(srv.URL + "/api/domains/example.com/analyze/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	want := []string{"progress", "progress", "progress", "result"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, events)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})

	resp, err := http.Post(srv.URL+"/api/analyze/batch", "application/json", strings.NewReader(`{"domains":["a.com","b.com"]}`))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var body struct {
		Items []domain.DomainAnalysis `json:"items"`
	}
	decodeBody(t, resp, &body)
	if len(body.Items) != 2 || body.Items[0].Domain != "a.com" || body.Items[1].Domain != "b.com" {
		t.Fatalf("unexpected items: %+v", body.Items)
	}

	for _, payload := range []string{`{"domains":[]}`, `{"domains":["a.com","b.com","c.com","d.com"]}`, `not json`} {
		resp, err := http.Post(srv.URL+"/api/analyze/batch", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", payload, resp.StatusCode)
		}
	}
}

func TestHeuristicEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})
	resp, err := http.Get(srv.URL + "/api/heuristic/myshop2024.com")
	if err != nil {
		t.Fatalf("heuristic: %v", err)
	}
	var b scoring.HeuristicBreakdown
	decodeBody(t, resp, &b)
	if b.Total != 50 || b.Year != 10 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
}

func TestProxyEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubScorer{})

	resp, err := http.Get(srv.URL + "/api/proxy/archive?domain=example.com")
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	var sig domain.ArchiveSignal
	decodeBody(t, resp, &sig)
	if !sig.OK || sig.Snapshots != 12 {
		t.Fatalf("unexpected signal: %+v", sig)
	}

	cases := map[string]int{
		"/api/proxy/index?domain=example.com":  http.StatusBadGateway,
		"/api/proxy/whois?domain=example.com":  http.StatusNotFound,
		"/api/proxy/archive":                   http.StatusBadRequest,
		"/api/proxy/archive?domain=not%20good": http.StatusBadRequest,
	}
	for path, want := range cases {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if resp.StatusCode != want || body["error"] == "" {
			t.Fatalf("%s: expected %d with error body, got %d %v", path, want, resp.StatusCode, body)
		}
	}
}
