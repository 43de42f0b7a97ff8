package dnsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miekg/dns"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(WithDoHURL(server.URL), WithHTTPClient(server.Client()), WithResolvers(nil))
}

func TestQueryParsesAnswers(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "example.com" || r.URL.Query().Get("type") != "MX" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Status":0,"Answer":[
			{"name":"example.com.","type":15,"TTL":300,"data":"10 mx1.example.com."},
			{"name":"example.com.","type":15,"TTL":300,"data":"20 mx2.example.com."}
		]}`))
	})

	answers, err := c.Query(context.Background(), "mx", "example.com")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].Type != dns.TypeMX || answers[0].Data != "10 mx1.example.com." {
		t.Fatalf("unexpected first answer: %+v", answers[0])
	}
}

func TestQueryNXDomainIsEmpty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":3}`))
	})

	answers, err := c.Query(context.Background(), "A", "nope.example")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("expected no answers, got %d", len(answers))
	}
}

func TestQueryFailsWithoutFallback(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Query(context.Background(), "A", "example.com"); err == nil {
		t.Fatal("expected error when DoH fails and no resolvers configured")
	}
}

func TestQueryRejectsUnknownType(t *testing.T) {
	t.Parallel()

	c := New(WithResolvers(nil))
	if _, err := c.Query(context.Background(), "BOGUS", "example.com"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestQuerySendsConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "scorer-test/2.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		// CNAME chain without a final A record; callers filter by type.
		_, _ = w.Write([]byte(`{"Status":0,"Answer":[{"type":5,"TTL":60,"data":"target.example.net."}]}`))
	}))
	t.Cleanup(server.Close)

	c := New(WithDoHURL(server.URL), WithHTTPClient(server.Client()), WithResolvers(nil), WithUserAgent("scorer-test/2.0"))
	answers, err := c.Query(context.Background(), "A", "www.example.com")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(answers) != 1 || answers[0].Type != dns.TypeCNAME {
		t.Fatalf("expected the raw CNAME answer, got %+v", answers)
	}
}

func TestParseDoHResponseTXT(t *testing.T) {
	t.Parallel()

	answers, err := parseDoHResponse([]byte(`{"Status":0,"Answer":[{"type":16,"TTL":60,"data":"\"v=spf1 include:_spf.example.com \" \"~all\""}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(answers) != 1 || answers[0].Data != "v=spf1 include:_spf.example.com ~all" {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestParseDoHResponseErrors(t *testing.T) {
	t.Parallel()

	if _, err := parseDoHResponse([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
	_, err := parseDoHResponse([]byte(`{"Status":2}`))
	if err == nil || errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected SERVFAIL error, got %v", err)
	}
}
