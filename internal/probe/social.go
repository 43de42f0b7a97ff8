package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"DomainScore/internal/domain"
)

// Platform counts mentions of a domain on one social site.
type Platform interface {
	Name() string
	Mentions(ctx context.Context, name string) (int, error)
}

// Registry keeps a mapping from platform names to their implementations.
type Registry struct {
	platforms map[string]Platform
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{platforms: map[string]Platform{}}
}

// Register adds or replaces a platform.
func (r *Registry) Register(p Platform) {
	if r.platforms == nil {
		r.platforms = map[string]Platform{}
	}
	r.platforms[p.Name()] = p
}

// Resolve returns a platform by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Platform, error) {
	if p, ok := r.platforms[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("platform %s is not registered", name)
}

// Names lists registered platforms in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SocialProbe queries every enabled platform independently.
type SocialProbe struct {
	base
	platforms []Platform
}

// NewSocialProbe resolves enabled against the registry; an empty list enables all.
func NewSocialProbe(registry *Registry, enabled []string, timeout time.Duration, logger *slog.Logger) (*SocialProbe, error) {
	if len(enabled) == 0 {
		enabled = registry.Names()
	}
	p := &SocialProbe{base: newBase(KindSocial, nil, timeout, logger)}
	for _, name := range enabled {
		platform, err := registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		p.platforms = append(p.platforms, platform)
	}
	return p, nil
}

// Probe returns per-platform counts. A failing platform counts 0 and does not
// affect the others; OK is set when at least one platform answered.
func (p *SocialProbe) Probe(ctx context.Context, name string) domain.SocialSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	counts := make([]int, len(p.platforms))
	errs := make([]error, len(p.platforms))
	var wg sync.WaitGroup
	for i, platform := range p.platforms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("platform panic: %v", r)
				}
			}()
			counts[i], errs[i] = platform.Mentions(ctx, name)
		}()
	}
	wg.Wait()

	sig := domain.SocialSignal{PerPlatform: make(map[string]int, len(p.platforms))}
	for i, platform := range p.platforms {
		if errs[i] == nil && counts[i] < 0 {
			errs[i] = fmt.Errorf("negative count %d", counts[i])
		}
		if errs[i] != nil {
			p.fail(name, fmt.Errorf("%s: %w", platform.Name(), errs[i]))
			sig.PerPlatform[platform.Name()] = 0
			continue
		}
		sig.OK = true
		sig.PerPlatform[platform.Name()] = counts[i]
		sig.Total += counts[i]
	}
	return sig
}

// RedditPlatform counts link submissions returned by Reddit search.
type RedditPlatform struct {
	base
	baseURL string
}

// NewRedditPlatform targets baseURL, default https://www.reddit.com.
func NewRedditPlatform(baseURL string, client *http.Client) *RedditPlatform {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	return &RedditPlatform{base: newBase(KindSocial, client, 0, nil), baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (r *RedditPlatform) Name() string { return "reddit" }

func (r *RedditPlatform) Mentions(ctx context.Context, name string) (int, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", "100")
	q.Set("type", "link")

	var payload struct {
		Data struct {
			Dist     *int              `json:"dist"`
			Children []json.RawMessage `json:"children"`
		} `json:"data"`
	}
	if err := r.getJSON(ctx, r.baseURL+"/search.json?"+q.Encode(), &payload); err != nil {
		return 0, err
	}
	if payload.Data.Dist != nil {
		return *payload.Data.Dist, nil
	}
	return len(payload.Data.Children), nil
}

// HackerNewsPlatform counts stories linking to the domain via the Algolia API.
type HackerNewsPlatform struct {
	base
	baseURL string
}

// NewHackerNewsPlatform targets baseURL, default https://hn.algolia.com.
func NewHackerNewsPlatform(baseURL string, client *http.Client) *HackerNewsPlatform {
	if baseURL == "" {
		baseURL = "https://hn.algolia.com"
	}
	return &HackerNewsPlatform{base: newBase(KindSocial, client, 0, nil), baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (h *HackerNewsPlatform) Name() string { return "hackernews" }

func (h *HackerNewsPlatform) Mentions(ctx context.Context, name string) (int, error) {
	q := url.Values{}
	q.Set("query", name)
	q.Set("restrictSearchableAttributes", "url")
	q.Set("hitsPerPage", "0")

	var payload struct {
		NbHits int `json:"nbHits"`
	}
	if err := h.getJSON(ctx, h.baseURL+"/api/v1/search?"+q.Encode(), &payload); err != nil {
		return 0, err
	}
	return payload.NbHits, nil
}
