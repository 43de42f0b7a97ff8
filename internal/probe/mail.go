package probe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miekg/dns"

	"DomainScore/internal/dnsclient"
	"DomainScore/internal/domain"
)

const (
	mxWeight    = 2.0
	spfWeight   = 1.5
	dmarcWeight = 1.5
)

// MailProbe weighs mail-related DNS configuration.
type MailProbe struct {
	base
	resolver Resolver
}

// NewMailProbe wraps resolver; timeout defaults to 10s.
func NewMailProbe(resolver Resolver, timeout time.Duration, logger *slog.Logger) *MailProbe {
	return &MailProbe{base: newBase(KindMail, nil, timeout, logger), resolver: resolver}
}

// Probe counts MX, SPF and DMARC records. Any failed lookup yields score 0.
func (p *MailProbe) Probe(ctx context.Context, name string) domain.MailSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	sig, err := p.collect(ctx, name)
	if err != nil {
		p.fail(name, err)
		return domain.MailSignal{}
	}
	return sig
}

func (p *MailProbe) collect(ctx context.Context, name string) (domain.MailSignal, error) {
	mx, err := p.resolver.Query(ctx, "MX", name)
	if err != nil {
		return domain.MailSignal{}, fmt.Errorf("MX lookup: %w", err)
	}
	txt, err := p.resolver.Query(ctx, "TXT", name)
	if err != nil {
		return domain.MailSignal{}, fmt.Errorf("TXT lookup: %w", err)
	}
	dmarc, err := p.resolver.Query(ctx, "TXT", "_dmarc."+name)
	if err != nil {
		return domain.MailSignal{}, fmt.Errorf("DMARC lookup: %w", err)
	}

	sig := domain.MailSignal{OK: true}
	for _, ans := range mx {
		if ans.Type == dns.TypeMX {
			sig.MX++
		}
	}
	sig.SPF = countTXT(txt, "v=spf1")
	sig.DMARC = countTXT(dmarc, "v=dmarc1")
	sig.Score = float64(sig.MX)*mxWeight + float64(sig.SPF)*spfWeight + float64(sig.DMARC)*dmarcWeight
	return sig, nil
}

func countTXT(answers []dnsclient.Answer, prefix string) int {
	n := 0
	for _, ans := range answers {
		if ans.Type != dns.TypeTXT {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ans.Data)), prefix) {
			n++
		}
	}
	return n
}
