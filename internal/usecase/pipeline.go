package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
	"DomainScore/pkg/logger"
)

const (
	defaultPassSize       = 100
	defaultDigestMinScore = 60
	defaultRetryBase      = 200 * time.Millisecond
	defaultRetries        = 3
	digestLimit           = 20
)

// PipelineDeps wires the analyzer to the store and the notifier.
type PipelineDeps struct {
	Analyzer   *Analyzer
	Repository ports.AnalysisRepository
	Notifier   ports.Notifier
	Metrics    ports.Metrics
	Logger     *slog.Logger

	// PassSize caps how many pending domains one pass picks up.
	PassSize int
	// DigestMinScore is the score at which a domain makes the digest.
	DigestMinScore int
	RetryBase      time.Duration
	Retries        uint64
}

// PassReport summarizes one scoring pass.
type PassReport struct {
	RunID   string
	Scored  int
	Failed  int
	Notable []domain.DomainAnalysis
}

// Pipeline scores domains and persists the results.
type Pipeline struct {
	analyzer       *Analyzer
	repository     ports.AnalysisRepository
	notifier       ports.Notifier
	metrics        ports.Metrics
	logger         *slog.Logger
	passSize       int
	digestMinScore int
	retryBase      time.Duration
	retries        uint64
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		analyzer:       deps.Analyzer,
		repository:     deps.Repository,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		logger:         logger.Component(deps.Logger, "pipeline"),
		passSize:       deps.PassSize,
		digestMinScore: deps.DigestMinScore,
		retryBase:      deps.RetryBase,
		retries:        deps.Retries,
	}
	if p.passSize <= 0 {
		p.passSize = defaultPassSize
	}
	if p.digestMinScore <= 0 {
		p.digestMinScore = defaultDigestMinScore
	}
	if p.retryBase <= 0 {
		p.retryBase = defaultRetryBase
	}
	if p.retries == 0 {
		p.retries = defaultRetries
	}
	return p
}

// RunPass scores the pending domains, persists each result and publishes a
// digest of the notable ones.
func (p *Pipeline) RunPass(ctx context.Context, trigger time.Time) (PassReport, error) {
	report := PassReport{RunID: uuid.NewString()}
	if p.analyzer == nil || p.repository == nil {
		return report, nil
	}
	log := p.logger.With("run_id", report.RunID)

	names, err := p.repository.Pending(ctx, p.passSize)
	if err != nil {
		return report, fmt.Errorf("load pending: %w", err)
	}
	if len(names) == 0 {
		log.Debug("no pending domains", "trigger", trigger)
		return report, nil
	}
	log.Info("scoring pass started", "pending", len(names), "trigger", trigger)

	var errs []error
	for _, result := range p.analyzer.AnalyzeBatch(ctx, names) {
		if result.Status == domain.StatusError {
			report.Failed++
		} else {
			report.Scored++
		}
		if err := p.persist(ctx, result); err != nil {
			errs = append(errs, err)
			continue
		}
		if result.Status != domain.StatusError && result.TrafficScore >= p.digestMinScore {
			report.Notable = append(report.Notable, result)
		}
	}

	if p.metrics != nil {
		p.metrics.PassCompleted(report.Scored, report.Failed)
	}
	log.Info("scoring pass finished", "scored", report.Scored, "failed", report.Failed, "notable", len(report.Notable))

	if err := errors.Join(errs...); err != nil {
		return report, err
	}

	if p.notifier == nil || len(report.Notable) == 0 {
		return report, nil
	}
	if err := p.notifier.PublishDigest(ctx, BuildDigestMessage(report.RunID, report.Notable)); err != nil {
		return report, fmt.Errorf("publish digest: %w", err)
	}
	return report, nil
}

// Rescore analyzes one domain on demand, bypassing the result cache, and
// stores the result.
func (p *Pipeline) Rescore(ctx context.Context, name string, onProgress domain.ProgressFunc) (domain.DomainAnalysis, error) {
	result := p.analyzer.Refresh(ctx, name, onProgress)
	if err := p.persist(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// RescoreBatch refreshes names in batch mode and stores every result.
func (p *Pipeline) RescoreBatch(ctx context.Context, names []string) ([]domain.DomainAnalysis, error) {
	results := p.analyzer.RefreshBatch(ctx, names)
	var errs []error
	for _, result := range results {
		if err := p.persist(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// persist upserts with exponential backoff. Records without a usable key are
// not stored.
func (p *Pipeline) persist(ctx context.Context, result domain.DomainAnalysis) error {
	if p.repository == nil {
		return nil
	}
	if _, err := domain.Normalize(result.Domain); err != nil {
		p.logger.Warn("skip storing invalid domain", "domain", result.Domain)
		return nil
	}

	backoff := retry.WithMaxRetries(p.retries, retry.NewExponential(p.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.repository.Upsert(ctx, result); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Debug("upsert failed, retrying", "domain", result.Domain, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist %s: %w", result.Domain, err)
	}
	return nil
}

// BuildDigestMessage renders the notable domains, best first.
func BuildDigestMessage(runID string, results []domain.DomainAnalysis) string {
	if len(results) == 0 {
		return ""
	}

	sorted := append([]domain.DomainAnalysis(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TrafficScore > sorted[j].TrafficScore
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Scoring pass %s: %d notable domains\n\n", runID, len(sorted))
	for i, r := range sorted {
		if i == digestLimit {
			fmt.Fprintf(&b, "...and %d more\n", len(sorted)-digestLimit)
			break
		}
		fmt.Fprintf(&b, "- %s\nScore: %d, ~%d visits/month, %s\n", r.Domain, r.TrafficScore, r.EstimatedTraffic, r.Status)
		if r.IsParked {
			b.WriteString("Parked\n")
		}
		if r.RedirectURL != nil {
			fmt.Fprintf(&b, "Redirects to %s\n", *r.RedirectURL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
