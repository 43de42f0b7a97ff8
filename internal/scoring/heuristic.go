package scoring

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	yearExpr = regexp.MustCompile(`(19|20)\d{2}`)

	knownTLDs = map[string]struct{}{"com": {}, "net": {}, "org": {}, "io": {}, "co": {}}
	keywords  = []string{"shop", "blog", "store", "news", "tech", "app"}
)

const shortNameLimit = 15

// HeuristicBreakdown is the lexical score with each component visible.
type HeuristicBreakdown struct {
	Domain    string   `json:"domain"`
	Year      int      `json:"year"`
	TLD       int      `json:"tld"`
	Length    int      `json:"length"`
	Subdomain int      `json:"subdomain"`
	Keywords  int      `json:"keywords"`
	Matched   []string `json:"matched_keywords,omitempty"`
	Total     int      `json:"total"`
}

// Heuristic scores a domain from its name alone, without any I/O.
func Heuristic(name string) HeuristicBreakdown {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	b := HeuristicBreakdown{Domain: name}

	suffix, _ := publicsuffix.PublicSuffix(name)
	stem := strings.TrimSuffix(strings.TrimSuffix(name, suffix), ".")

	if yearExpr.MatchString(stem) {
		b.Year = 10
	}

	tld := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		tld = name[i+1:]
	}
	if _, ok := knownTLDs[tld]; ok {
		b.TLD = 20
	}

	if len(name) < shortNameLimit {
		b.Length = 15
	}

	// anything left of the registrable label is a subdomain
	if strings.Contains(stem, ".") {
		b.Subdomain = -10
	}

	for _, kw := range keywords {
		if strings.Contains(stem, kw) {
			b.Keywords += 5
			b.Matched = append(b.Matched, kw)
		}
	}

	b.Total = Clamp(b.Year + b.TLD + b.Length + b.Subdomain + b.Keywords)
	return b
}
