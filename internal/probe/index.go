package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"DomainScore/internal/domain"
)

const defaultSearchURL = "https://www.bing.com/search"

var (
	resultCountExpr = regexp.MustCompile(`(?i)(\d[\d,.\x{00A0}]*)\s+results?\b`)

	noResultPhrases = []string{
		"did not match any documents",
		"there are no results for",
	}

	// selectors searched for an explicit result count, most specific first
	countSelectors = []string{"#result-stats", ".sb_count"}
	resultMarkers  = "li.b_algo, div.g"
)

// IndexConfig configures the search-index probe.
type IndexConfig struct {
	SearchURL string
	Timeout   time.Duration
	// Interval is the minimum spacing between outgoing searches.
	Interval time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

// IndexProbe estimates indexed pages by scraping a site: query.
type IndexProbe struct {
	base
	searchURL string
	limiter   *rate.Limiter
}

// NewIndexProbe applies defaults to cfg.
func NewIndexProbe(cfg IndexConfig) *IndexProbe {
	searchURL := cfg.SearchURL
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &IndexProbe{
		base:      newBase(KindIndex, cfg.Client, cfg.Timeout, cfg.Logger),
		searchURL: searchURL,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Probe returns the page estimate, 0 on failure.
func (p *IndexProbe) Probe(ctx context.Context, name string) domain.IndexSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		p.fail(name, fmt.Errorf("rate limit: %w", err))
		return domain.IndexSignal{}
	}

	doc, err := p.fetchDocument(ctx, name)
	if err != nil {
		p.fail(name, err)
		return domain.IndexSignal{}
	}
	return domain.IndexSignal{OK: true, Pages: CountIndexedPages(doc)}
}

func (p *IndexProbe) fetchDocument(ctx context.Context, name string) (*goquery.Document, error) {
	u, err := url.Parse(p.searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("q", "site:"+name)
	u.RawQuery = q.Encode()

	resp, err := p.get(ctx, u.String(), map[string]string{"Accept-Language": "en-US,en;q=0.8"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// CountIndexedPages reads the result count from a search page. An explicit
// "no results" notice wins; without a count the result entries are counted.
func CountIndexedPages(doc *goquery.Document) int {
	text := strings.ToLower(doc.Text())
	for _, phrase := range noResultPhrases {
		if strings.Contains(text, phrase) {
			return 0
		}
	}

	for _, sel := range countSelectors {
		if n, ok := ParseResultCount(doc.Find(sel).First().Text()); ok {
			return n
		}
	}
	if n, ok := ParseResultCount(doc.Text()); ok {
		return n
	}

	return doc.Find(resultMarkers).Length()
}

// ParseResultCount extracts N from text like "About 1,230,000 results",
// keeping digits only.
func ParseResultCount(text string) (int, bool) {
	match := resultCountExpr.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, match[1])
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
