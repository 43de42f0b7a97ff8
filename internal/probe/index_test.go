package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func TestParseResultCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"About 1,230,000 results", 1230000, true},
		{"1.230 results", 1230, true},
		{"Page 2 of about 45 results (0.31 seconds)", 45, true},
		{"1 result", 1, true},
		{"no numbers here", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParseResultCount(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q: expected (%d,%v), got (%d,%v)", tc.text, tc.want, tc.ok, got, ok)
		}
	}
}

func TestCountIndexedPages(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		html string
		want int
	}{
		"explicit count": {
			html: `<div id="b_tween"><span class="sb_count">About 3,400 results</span></div><ol><li class="b_algo">a</li></ol>`,
			want: 3400,
		},
		"no match notice": {
			html: `<p>Your search - site:nothing.example - did not match any documents.</p><span class="sb_count">12 results</span>`,
			want: 0,
		},
		"no results notice": {
			html: `<div>There are no results for site:nothing.example</div>`,
			want: 0,
		},
		"markers only": {
			html: `<ol><li class="b_algo">a</li><li class="b_algo">b</li></ol><div class="g">c</div>`,
			want: 3,
		},
	}

	for name, tc := range cases {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
		if err != nil {
			t.Fatalf("%s: new document: %v", name, err)
		}
		if got := CountIndexedPages(doc); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, got)
		}
	}
}

func TestIndexProbe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "site:example.com" {
			t.Errorf("unexpected query %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(`<html><body><span class="sb_count">About 52 results</span></body></html>`))
	}))
	t.Cleanup(srv.Close)

	p := NewIndexProbe(IndexConfig{SearchURL: srv.URL + "/search", Client: srv.Client()})
	sig := p.Probe(context.Background(), "example.com")
	if !sig.OK || sig.Pages != 52 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestIndexProbeFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	p := NewIndexProbe(IndexConfig{SearchURL: srv.URL, Timeout: time.Second})
	sig := p.Probe(context.Background(), "example.com")
	if sig.OK || sig.Pages != 0 {
		t.Fatalf("expected fallback, got %+v", sig)
	}
}

func TestIndexProbeRateLimitRespectsDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<span class="sb_count">7 results</span>`))
	}))
	t.Cleanup(srv.Close)

	p := NewIndexProbe(IndexConfig{SearchURL: srv.URL, Interval: time.Hour, Timeout: 200 * time.Millisecond})
	if sig := p.Probe(context.Background(), "example.com"); !sig.OK {
		t.Fatalf("first probe should pass, got %+v", sig)
	}
	if sig := p.Probe(context.Background(), "example.com"); sig.OK {
		t.Fatalf("second probe should be throttled, got %+v", sig)
	}
}
