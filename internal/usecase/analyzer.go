package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
	"DomainScore/internal/probe"
	"DomainScore/internal/scoring"
	"DomainScore/pkg/logger"
)

const (
	defaultBatchSize  = 3
	defaultBatchDelay = time.Second
)

var (
	// ErrUnknownProbe is returned by RunProbe for a probe that is not wired.
	ErrUnknownProbe = errors.New("unknown probe")
	// ErrProbeFailed is returned by RunProbe when the probe fell back.
	ErrProbeFailed = errors.New("probe failed")
)

// Probes holds the signal sources; nil entries are skipped.
type Probes struct {
	Archive ports.ArchiveProber
	DNS     ports.DNSProber
	Index   ports.IndexProber
	Mail    ports.MailProber
	Web     ports.WebProber
	Social  ports.SocialProber
}

// AnalyzerDeps wires probes, scoring and optional collaborators.
type AnalyzerDeps struct {
	Probes    Probes
	Scheme    scoring.Scheme
	Estimator *scoring.Estimator
	Cache     ports.ResultCache
	Metrics   ports.Metrics
	Logger    *slog.Logger

	BatchSize int
	// BatchDelay separates batch groups. Zero selects the 1s default; a
	// negative value disables the delay.
	BatchDelay time.Duration
	Now        func() time.Time
}

// Analyzer runs the probes for a domain and turns their signals into a
// complete analysis record. It never returns an error: failures degrade to
// fallback values or to an error-status record.
type Analyzer struct {
	probes     Probes
	scheme     scoring.Scheme
	estimator  *scoring.Estimator
	cache      ports.ResultCache
	metrics    ports.Metrics
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
}

// NewAnalyzer applies defaults: comprehensive scheme, batches of 3, 1s apart.
func NewAnalyzer(deps AnalyzerDeps) *Analyzer {
	a := &Analyzer{
		probes:     deps.Probes,
		scheme:     deps.Scheme,
		estimator:  deps.Estimator,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     logger.Component(deps.Logger, "analyzer"),
		batchSize:  deps.BatchSize,
		batchDelay: deps.BatchDelay,
		now:        deps.Now,
	}
	if a.scheme == nil {
		a.scheme = scoring.Comprehensive{}
	}
	if a.estimator == nil {
		a.estimator = scoring.NewEstimator(nil)
	}
	if a.batchSize <= 0 {
		a.batchSize = defaultBatchSize
	}
	if a.batchDelay < 0 {
		a.batchDelay = 0
	} else if a.batchDelay == 0 {
		a.batchDelay = defaultBatchDelay
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Scheme reports the active aggregation scheme.
func (a *Analyzer) Scheme() scoring.Scheme {
	return a.scheme
}

// Analyze scores one domain, emitting progress events on every stage change.
// A cached record is returned as is.
func (a *Analyzer) Analyze(ctx context.Context, raw string, onProgress domain.ProgressFunc) domain.DomainAnalysis {
	return a.analyze(ctx, raw, onProgress, true)
}

// Refresh is Analyze without the cache lookup: the probes always run and the
// fresh record replaces any cached one.
func (a *Analyzer) Refresh(ctx context.Context, raw string, onProgress domain.ProgressFunc) domain.DomainAnalysis {
	return a.analyze(ctx, raw, onProgress, false)
}

func (a *Analyzer) analyze(ctx context.Context, raw string, onProgress domain.ProgressFunc, useCache bool) (result domain.DomainAnalysis) {
	started := a.now()
	name := strings.ToLower(strings.TrimSpace(raw))

	emit := func(stage domain.Stage, message string) {
		if onProgress == nil {
			return
		}
		onProgress(domain.ProgressEvent{Domain: name, Step: stage, Message: message, Percent: stage.Percent()})
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis aborted", "domain", name, "panic", r)
			result = domain.FailedAnalysis(name, started)
			a.observe(result, started)
			emit(domain.StageError, fmt.Sprintf("analysis of %s failed", name))
		}
	}()

	normalized, err := domain.Normalize(raw)
	if err != nil {
		a.logger.Error("invalid domain", "domain", name, "error", err)
		result = domain.FailedAnalysis(name, started)
		a.observe(result, started)
		emit(domain.StageError, err.Error())
		return result
	}
	name = normalized

	if useCache && a.cache != nil {
		if cached, ok := a.cache.Get(ctx, name); ok {
			emit(domain.StageComplete, fmt.Sprintf("loaded cached analysis of %s", name))
			return cached
		}
	}

	emit(domain.StageStart, fmt.Sprintf("starting analysis of %s", name))
	emit(domain.StageProbing, "collecting signals")
	signals, anyOK := a.collect(ctx, name, started)
	if !anyOK {
		a.logger.Warn("all probes failed", "domain", name)
		result = domain.FailedAnalysis(name, started)
		a.observe(result, started)
		emit(domain.StageError, fmt.Sprintf("no signal could be collected for %s", name))
		return result
	}

	emit(domain.StageScoring, "computing traffic score")
	score := scoring.Clamp(a.scheme.Score(signals))

	emit(domain.StageEstimating, "estimating monthly traffic")
	result = buildAnalysis(signals, score, a.estimator.Estimate(score))

	if a.cache != nil {
		a.cache.Set(ctx, result)
	}
	a.observe(result, started)
	emit(domain.StageComplete, fmt.Sprintf("%s scored %d", name, score))
	return result
}

// AnalyzeBatch scores names in order-preserving concurrent groups.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, names []string) []domain.DomainAnalysis {
	return a.batch(ctx, names, nil, a.Analyze)
}

// RefreshBatch is AnalyzeBatch with every domain going through Refresh.
func (a *Analyzer) RefreshBatch(ctx context.Context, names []string) []domain.DomainAnalysis {
	return a.batch(ctx, names, nil, a.Refresh)
}

// AnalyzeBatchFunc is AnalyzeBatch with a callback invoked as each result is
// ready. The callback may run concurrently for domains of the same group.
// Domains not started before ctx ends come back as error records, so the
// output always has one entry per input, at the same index.
func (a *Analyzer) AnalyzeBatchFunc(ctx context.Context, names []string, onDone func(int, domain.DomainAnalysis)) []domain.DomainAnalysis {
	return a.batch(ctx, names, onDone, a.Analyze)
}

type analyzeFunc func(ctx context.Context, raw string, onProgress domain.ProgressFunc) domain.DomainAnalysis

func (a *Analyzer) batch(ctx context.Context, names []string, onDone func(int, domain.DomainAnalysis), analyze analyzeFunc) []domain.DomainAnalysis {
	out := make([]domain.DomainAnalysis, len(names))
	done := func(i int, r domain.DomainAnalysis) {
		out[i] = r
		if onDone != nil {
			onDone(i, r)
		}
	}

	for start := 0; start < len(names); start += a.batchSize {
		if (start > 0 && !sleepCtx(ctx, a.batchDelay)) || ctx.Err() != nil {
			at := a.now()
			for i := start; i < len(names); i++ {
				done(i, domain.FailedAnalysis(strings.ToLower(strings.TrimSpace(names[i])), at))
			}
			break
		}

		end := min(start+a.batchSize, len(names))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				done(i, analyze(ctx, names[i], nil))
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

// RunProbe executes a single probe, for the proxy endpoints.
func (a *Analyzer) RunProbe(ctx context.Context, kind probe.Kind, raw string) (any, error) {
	name, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}

	var (
		signal any
		ok     bool
	)
	switch {
	case kind == probe.KindArchive && a.probes.Archive != nil:
		s := a.probes.Archive.Probe(ctx, name)
		signal, ok = s, s.OK
	case kind == probe.KindDNS && a.probes.DNS != nil:
		s := a.probes.DNS.Probe(ctx, name)
		signal, ok = s, s.OK
	case kind == probe.KindIndex && a.probes.Index != nil:
		s := a.probes.Index.Probe(ctx, name)
		signal, ok = s, s.OK
	case kind == probe.KindMail && a.probes.Mail != nil:
		s := a.probes.Mail.Probe(ctx, name)
		signal, ok = s, s.OK
	case kind == probe.KindWeb && a.probes.Web != nil:
		s := a.probes.Web.Probe(ctx, name)
		signal, ok = s, s.OK
	case kind == probe.KindSocial && a.probes.Social != nil:
		s := a.probes.Social.Probe(ctx, name)
		signal, ok = s, s.OK
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProbe, kind)
	}

	if !ok {
		a.recordFailure(kind)
		return nil, fmt.Errorf("%w: %s for %s", ErrProbeFailed, kind, name)
	}
	return signal, nil
}

// collect fans the wired probes out and waits for all of them. Each goroutine
// writes only its own field of signals and its own slot of ok.
func (a *Analyzer) collect(ctx context.Context, name string, checkedAt time.Time) (domain.Signals, bool) {
	signals := domain.Signals{Domain: name, CheckedAt: checkedAt}
	runs := a.wired(&signals)

	ok := make([]bool, len(runs))
	var g errgroup.Group
	for i, r := range runs {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					a.logger.Error("probe panicked", "probe", string(r.kind), "domain", name, "panic", rec)
					ok[i] = false
				}
			}()
			ok[i] = r.run(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	anyOK := false
	for i, r := range runs {
		if ok[i] {
			anyOK = true
			continue
		}
		a.recordFailure(r.kind)
	}
	return signals, anyOK
}

type probeRun struct {
	kind probe.Kind
	run  func(ctx context.Context, name string) bool
}

// wired returns the probes the scheme reads that are actually configured.
func (a *Analyzer) wired(s *domain.Signals) []probeRun {
	var runs []probeRun
	for _, kind := range a.scheme.Probes() {
		var run func(context.Context, string) bool
		switch kind {
		case probe.KindArchive:
			if p := a.probes.Archive; p != nil {
				run = func(ctx context.Context, n string) bool { s.Archive = p.Probe(ctx, n); return s.Archive.OK }
			}
		case probe.KindDNS:
			if p := a.probes.DNS; p != nil {
				run = func(ctx context.Context, n string) bool { s.DNS = p.Probe(ctx, n); return s.DNS.OK }
			}
		case probe.KindIndex:
			if p := a.probes.Index; p != nil {
				run = func(ctx context.Context, n string) bool { s.Index = p.Probe(ctx, n); return s.Index.OK }
			}
		case probe.KindMail:
			if p := a.probes.Mail; p != nil {
				run = func(ctx context.Context, n string) bool { s.Mail = p.Probe(ctx, n); return s.Mail.OK }
			}
		case probe.KindWeb:
			if p := a.probes.Web; p != nil {
				run = func(ctx context.Context, n string) bool { s.Web = p.Probe(ctx, n); return s.Web.OK }
			}
		case probe.KindSocial:
			if p := a.probes.Social; p != nil {
				run = func(ctx context.Context, n string) bool { s.Social = p.Probe(ctx, n); return s.Social.OK }
			}
		}
		if run != nil {
			runs = append(runs, probeRun{kind: kind, run: run})
		}
	}
	return runs
}

// DeriveStatus maps signals to a lifecycle status. Pending is never derived;
// it is only assigned to freshly imported domains.
func DeriveStatus(s domain.Signals) domain.Status {
	switch {
	case s.DNS.HasWebsite || s.DNS.HasNameservers:
		return domain.StatusRegistered
	case s.Archive.Snapshots > 0:
		return domain.StatusExpired
	default:
		return domain.StatusAvailable
	}
}

func buildAnalysis(s domain.Signals, score, estimate int) domain.DomainAnalysis {
	return domain.DomainAnalysis{
		Domain:           s.Domain,
		Status:           DeriveStatus(s),
		TrafficScore:     score,
		EstimatedTraffic: max(0, estimate),
		ArchiveSnapshots: max(0, s.Archive.Snapshots),
		ArchiveRecent:    max(0, s.Archive.Recent),
		LastSeen:         s.Archive.LastSeen,
		IndexedPages:     max(0, s.Index.Pages),
		SocialMentions:   max(0, s.Social.Total),
		WebPresence:      max(0, s.Index.Pages) + max(0, s.Social.Total),
		MailScore:        finite(s.Mail.Score),
		HasRedirect:      s.Web.HasRedirect,
		RedirectURL:      s.Web.RedirectURL,
		IsParked:         s.Web.IsParked,
		HasWebsite:       s.DNS.HasWebsite,
		HasNameservers:   s.DNS.HasNameservers,
		LastChecked:      s.CheckedAt,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (a *Analyzer) observe(result domain.DomainAnalysis, started time.Time) {
	if a.metrics != nil {
		a.metrics.AnalysisCompleted(result.Status, a.now().Sub(started))
	}
}

func (a *Analyzer) recordFailure(kind probe.Kind) {
	if a.metrics != nil {
		a.metrics.ProbeFailed(string(kind))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
