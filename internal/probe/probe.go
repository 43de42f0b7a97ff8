// Package probe contains the independent signal checks feeding the scorer.
// Every probe bounds its own execution time and returns a fallback value
// (with OK=false) instead of an error.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"DomainScore/internal/dnsclient"
	"DomainScore/pkg/logger"
)

// Kind identifies a probe.
type Kind string

const (
	KindArchive Kind = "archive"
	KindDNS     Kind = "dns"
	KindIndex   Kind = "index"
	KindMail    Kind = "mail"
	KindWeb     Kind = "web"
	KindSocial  Kind = "social"
)

// Resolver is the DNS lookup used by the DNS and mail probes.
type Resolver interface {
	Query(ctx context.Context, recordType, name string) ([]dnsclient.Answer, error)
}

// UserAgent identifies every outbound probe request, DoH lookups included.
const UserAgent = "Mozilla/5.0 (compatible; DomainScore/1.0)"

type base struct {
	kind    Kind
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func newBase(kind Kind, client *http.Client, timeout time.Duration, log *slog.Logger) base {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return base{kind: kind, client: client, timeout: timeout, logger: logger.Component(log, "probe."+string(kind))}
}

func (b base) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b base) fail(name string, err error) {
	b.logger.Debug("probe fell back", "probe", string(b.kind), "domain", name, "error", err)
}

// get issues a GET and returns the response for 200 OK only.
func (b base) get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}

func (b base) getJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := b.get(ctx, rawURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}
