package ports

import (
	"context"
	"errors"
	"time"

	"DomainScore/internal/domain"
)

// ListFilter narrows and orders stored analyses for browsing.
type ListFilter struct {
	Query    string
	Status   domain.Status
	MinScore int
	SortBy   string
	Desc     bool
	Limit    int
	Offset   int
}

// AnalysisRepository persists the latest analysis per domain.
type AnalysisRepository interface {
	Upsert(ctx context.Context, analysis domain.DomainAnalysis) error
	Get(ctx context.Context, name string) (domain.DomainAnalysis, error)
	List(ctx context.Context, filter ListFilter) ([]domain.DomainAnalysis, error)
	Pending(ctx context.Context, limit int) ([]string, error)
	EnqueuePending(ctx context.Context, names []string) (int, error)
}

// ResultCache short-circuits repeat analyses of the same domain.
type ResultCache interface {
	Get(ctx context.Context, name string) (domain.DomainAnalysis, bool)
	Set(ctx context.Context, analysis domain.DomainAnalysis)
}

// Notifier publishes a digest of notable domains after a scoring pass.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when scoring passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics records scoring-engine observations.
type Metrics interface {
	ProbeFailed(probe string)
	AnalysisCompleted(status domain.Status, elapsed time.Duration)
	PassCompleted(scored, failed int)
}

// ArchiveProber reports web-archive history.
type ArchiveProber interface {
	Probe(ctx context.Context, name string) domain.ArchiveSignal
}

// DNSProber reports nameserver and A record presence.
type DNSProber interface {
	Probe(ctx context.Context, name string) domain.DNSSignal
}

// IndexProber estimates search-indexed pages.
type IndexProber interface {
	Probe(ctx context.Context, name string) domain.IndexSignal
}

// MailProber weighs mail DNS configuration.
type MailProber interface {
	Probe(ctx context.Context, name string) domain.MailSignal
}

// WebProber inspects the domain root for redirects and parking.
type WebProber interface {
	Probe(ctx context.Context, name string) domain.WebSignal
}

// SocialProber counts social mentions.
type SocialProber interface {
	Probe(ctx context.Context, name string) domain.SocialSignal
}

// ErrNotFound is returned by AnalysisRepository.Get for unknown domains.
var ErrNotFound = errors.New("domain not found")
