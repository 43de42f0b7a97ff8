package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"DomainScore/internal/domain"
)

const (
	defaultMaxRedirects = 5
	maxBodyBytes        = 512 << 10
)

// ParkingPhrases mark a page served by a parking or domain-sale service.
var ParkingPhrases = []string{
	"domain is for sale",
	"this domain may be for sale",
	"buy this domain",
	"domain parking",
	"parked free",
	"sedoparking",
	"hugedomains",
	"dan.com",
	"afternic",
	"parkingcrew",
	"bodis",
}

// WebConfig configures the website probe.
type WebConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	// Schemes are tried in order until one answers.
	Schemes []string
	Logger  *slog.Logger
}

// WebProbe fetches the domain root and inspects redirects and content.
type WebProbe struct {
	base
	schemes []string
}

// NewWebProbe applies defaults: 5s timeout, 5 hops, https then http.
func NewWebProbe(cfg WebConfig) *WebProbe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = []string{"https", "http"}
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &WebProbe{
		base:    newBase(KindWeb, client, cfg.Timeout, cfg.Logger),
		schemes: cfg.Schemes,
	}
}

// Probe returns the web signal, all false on failure.
func (p *WebProbe) Probe(ctx context.Context, name string) domain.WebSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	var errs []error
	for _, scheme := range p.schemes {
		sig, err := p.fetch(ctx, scheme+"://"+name+"/", name)
		if err == nil {
			return sig
		}
		errs = append(errs, err)
	}
	p.fail(name, errors.Join(errs...))
	return domain.WebSignal{}
}

func (p *WebProbe) fetch(ctx context.Context, rawURL, name string) (domain.WebSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.WebSignal{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.WebSignal{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.WebSignal{}, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.WebSignal{}, fmt.Errorf("read body: %w", err)
	}

	sig := domain.WebSignal{OK: true, IsParked: IsParked(string(body))}
	if hops(resp) > 0 {
		final := resp.Request.URL
		host, _, _ := strings.Cut(name, ":")
		if !strings.Contains(strings.ToLower(final.Hostname()), strings.ToLower(host)) {
			target := final.String()
			sig.HasRedirect = true
			sig.RedirectURL = &target
		}
	}
	return sig, nil
}

func hops(resp *http.Response) int {
	n := 0
	for r := resp.Request; r != nil && r.Response != nil; r = r.Response.Request {
		n++
	}
	return n
}

// IsParked reports whether body contains any parking phrase, ignoring case.
func IsParked(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range ParkingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
