package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DomainScore/internal/domain"
)

const (
	defaultArchiveURL   = "https://web.archive.org"
	defaultArchiveLimit = 10000
	timestampLayout     = "20060102150405"
)

// ArchiveConfig configures the web-archive probe.
type ArchiveConfig struct {
	BaseURL string
	Timeout time.Duration
	// RecentMonths is the window for counting recent captures.
	RecentMonths int
	Limit        int
	Client       *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// ArchiveProbe counts Wayback Machine captures through the CDX API.
type ArchiveProbe struct {
	base
	baseURL      string
	recentMonths int
	limit        int
	now          func() time.Time
}

// NewArchiveProbe applies defaults to cfg.
func NewArchiveProbe(cfg ArchiveConfig) *ArchiveProbe {
	p := &ArchiveProbe{
		base:         newBase(KindArchive, cfg.Client, cfg.Timeout, cfg.Logger),
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		recentMonths: cfg.RecentMonths,
		limit:        cfg.Limit,
		now:          cfg.Now,
	}
	if p.baseURL == "" {
		p.baseURL = defaultArchiveURL
	}
	if p.recentMonths <= 0 {
		p.recentMonths = 12
	}
	if p.limit <= 0 {
		p.limit = defaultArchiveLimit
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Probe returns capture statistics, or the zero signal on failure.
func (p *ArchiveProbe) Probe(ctx context.Context, name string) domain.ArchiveSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	timestamps, err := p.fetchTimestamps(ctx, name)
	if err != nil {
		p.fail(name, err)
		return domain.ArchiveSignal{}
	}
	return summarizeCaptures(timestamps, p.now().UTC().AddDate(0, -p.recentMonths, 0))
}

func (p *ArchiveProbe) fetchTimestamps(ctx context.Context, name string) ([]string, error) {
	q := url.Values{}
	q.Set("url", name)
	q.Set("output", "json")
	q.Set("fl", "timestamp")
	q.Set("limit", strconv.Itoa(p.limit))
	endpoint := p.baseURL + "/cdx/search/cdx?" + q.Encode()

	resp, err := p.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read cdx body: %w", err)
	}
	return parseCDX(body)
}

// parseCDX reads the JSON table output: a header row followed by one row per capture.
func parseCDX(body []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("decode cdx: %w", err)
	}

	out := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if i == 0 && row[0] == "timestamp" {
			continue
		}
		out = append(out, row[0])
	}
	return out, nil
}

func summarizeCaptures(timestamps []string, recentSince time.Time) domain.ArchiveSignal {
	sig := domain.ArchiveSignal{OK: true, Snapshots: len(timestamps)}
	for _, raw := range timestamps {
		ts := ParseTimestamp(raw)
		if ts == nil {
			continue
		}
		if !ts.Before(recentSince) {
			sig.Recent++
		}
		if sig.LastSeen == nil || ts.After(*sig.LastSeen) {
			sig.LastSeen = ts
		}
	}
	return sig
}

// ParseTimestamp reads a Wayback YYYYMMDDhhmmss stamp. Stamps truncated to at
// least the day are accepted at day precision; anything else yields nil.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) < 8 {
		return nil
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return nil
		}
	}

	layout := timestampLayout
	if len(raw) != len(timestampLayout) {
		raw = raw[:8]
		layout = "20060102"
	}
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
