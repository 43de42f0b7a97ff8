package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIsParked(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"<h1>This Domain Is For Sale!</h1>":               true,
		"<p>Inquire at HugeDomains.com</p>":               true,
		"<script src='//sedoparking.com/x.js'></script>": true,
		"<h1>Welcome to our bakery</h1>":                  false,
		"":                                                false,
	}
	for body, want := range cases {
		if got := IsParked(body); got != want {
			t.Fatalf("IsParked(%q): expected %v, got %v", body, want, got)
		}
	}
}

func hostOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestWebProbeExternalRedirect(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<h1>Buy this domain</h1>"))
	}))
	t.Cleanup(target.Close)

	// "localhost" never contains the origin host "127.0.0.1"
	external := strings.Replace(target.URL, "127.0.0.1", "localhost", 1) + "/landing"
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, external, http.StatusMovedPermanently)
	}))
	t.Cleanup(origin.Close)

	p := NewWebProbe(WebConfig{Schemes: []string{"http"}})
	sig := p.Probe(context.Background(), hostOf(t, origin))
	if !sig.OK {
		t.Fatalf("expected OK signal")
	}
	if !sig.HasRedirect || sig.RedirectURL == nil || *sig.RedirectURL != external {
		t.Fatalf("expected redirect to %s, got %+v", external, sig)
	}
	if !sig.IsParked {
		t.Fatalf("expected parked page")
	}
}

func TestWebProbeSameHostRedirectIsNotCounted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("<h1>Welcome</h1>"))
	}))
	t.Cleanup(srv.Close)

	sig := NewWebProbe(WebConfig{Schemes: []string{"http"}}).Probe(context.Background(), hostOf(t, srv))
	if !sig.OK || sig.HasRedirect || sig.RedirectURL != nil || sig.IsParked {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestWebProbeRedirectLoopFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	sig := NewWebProbe(WebConfig{Schemes: []string{"http"}}).Probe(context.Background(), hostOf(t, srv))
	if sig.OK || sig.HasRedirect || sig.IsParked {
		t.Fatalf("expected fallback, got %+v", sig)
	}
}

func TestWebProbeTriesNextScheme(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("parked free"))
	}))
	t.Cleanup(srv.Close)

	// the plain listener rejects the TLS handshake, so https fails first
	p := NewWebProbe(WebConfig{Timeout: 2 * time.Second})
	sig := p.Probe(context.Background(), hostOf(t, srv))
	if !sig.OK || !sig.IsParked {
		t.Fatalf("expected http fallback to succeed, got %+v", sig)
	}
}

func TestWebFallsBackOnErrorStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("This domain is for sale"))
		}))
		t.Cleanup(srv.Close)

		sig := NewWebProbe(WebConfig{Schemes: []string{"http"}}).Probe(context.Background(), hostOf(t, srv))
		if sig.OK || sig.HasRedirect || sig.RedirectURL != nil || sig.IsParked {
			t.Fatalf("status %d: expected fallback, got %+v", status, sig)
		}
	}
}
