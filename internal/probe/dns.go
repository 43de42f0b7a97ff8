package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miekg/dns"

	"DomainScore/internal/domain"
)

// DNSProbe checks for nameservers and an A record.
type DNSProbe struct {
	base
	resolver Resolver
}

// NewDNSProbe wraps resolver; timeout defaults to 10s.
func NewDNSProbe(resolver Resolver, timeout time.Duration, logger *slog.Logger) *DNSProbe {
	return &DNSProbe{base: newBase(KindDNS, nil, timeout, logger), resolver: resolver}
}

// Probe returns {false,false} with OK unset when either lookup fails.
func (p *DNSProbe) Probe(ctx context.Context, name string) domain.DNSSignal {
	ctx, cancel := p.bounded(ctx)
	defer cancel()

	ns, err := p.has(ctx, "NS", dns.TypeNS, name)
	if err != nil {
		p.fail(name, err)
		return domain.DNSSignal{}
	}
	a, err := p.has(ctx, "A", dns.TypeA, name)
	if err != nil {
		p.fail(name, err)
		return domain.DNSSignal{}
	}
	return domain.DNSSignal{OK: true, HasNameservers: ns, HasWebsite: a}
}

func (p *DNSProbe) has(ctx context.Context, recordType string, want uint16, name string) (bool, error) {
	answers, err := p.resolver.Query(ctx, recordType, name)
	if err != nil {
		return false, fmt.Errorf("%s lookup: %w", recordType, err)
	}
	for _, ans := range answers {
		if ans.Type == want {
			return true, nil
		}
	}
	return false, nil
}
