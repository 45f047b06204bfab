package runner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/config"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/selection"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
	"github.com/abdul-hamid-achik/hitsuite/packages/timing"
)

// DefaultSlowest is the number of slowest specs kept in a result.
const DefaultSlowest = 5

type Runner struct {
	config    *Config
	logger    *zap.Logger
	listeners *suite.Listeners
	metrics   *timing.Metrics
	limiter   *rate.Limiter
}

type Config struct {
	// Order is one of config.OrderRandom, config.OrderDeclared and
	// config.OrderAlpha. Empty means random.
	Order string
	// Seed reproduces a random order. Zero picks a fresh seed.
	Seed   uint64
	Filter string
	Grep   string
	Tags   []string
	// Partition is "i/n": run the i-th of n contiguous slices.
	Partition string
	Bail      bool
	// Rate limits spec starts per second. Zero means unlimited.
	Rate    float64
	Verbose bool
	Slowest int
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Runner{
		config:    cfg,
		logger:    zap.NewNop(),
		listeners: &suite.Listeners{},
		metrics:   timing.NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.Rate > 0 {
		burst := max(1, int(cfg.Rate))
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
		r.listeners.OnPending(r.throttle)
	}
	r.metrics.Attach(r.listeners)
	return r
}

// Listeners returns the listeners to build trees with.
func (r *Runner) Listeners() *suite.Listeners {
	return r.listeners
}

// throttle waits for the limiter before a spec starts. A spec whose wait
// is cancelled is skipped.
func (r *Runner) throttle(ctx context.Context, report *suite.Report, skip func()) {
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Debug("rate limit wait aborted", zap.String("spec", report.Description), zap.Error(err))
		skip()
	}
}

// RunResult is the outcome of one run.
type RunResult struct {
	ID      string
	Seed    uint64
	Order   string
	Total   int
	Planned int
	Reports []*suite.Report
	Summary *suite.Summary
	// Teardown holds failures of after-all hooks run after a bail.
	Teardown []*suite.Report
	Timing   timing.Summary
	Slowest  []timing.Sample
	Duration time.Duration
	Bailed   bool
}

// Passed reports whether every completed report is OK.
func (r *RunResult) Passed() bool {
	return r.Summary != nil && r.Summary.Failed == 0 && len(r.Teardown) == 0
}

// Run executes root, calling observe for every message in order. With Bail
// the run stops after the first failed report and the groups left open are
// closed. A cancelled ctx stops the run; the partial result is returned with
// the context error.
func (r *Runner) Run(ctx context.Context, root *suite.Group, observe func(suite.Message)) (*RunResult, error) {
	sorter, seed, err := r.sorter()
	if err != nil {
		return nil, err
	}
	predicate, err := r.predicate(root)
	if err != nil {
		return nil, err
	}

	r.metrics.Reset()
	result := &RunResult{
		ID:    uuid.NewString(),
		Seed:  seed,
		Order: r.order(),
	}
	log := r.logger.With(zap.String("run", result.ID))
	log.Info("run started", zap.String("order", result.Order), zap.Uint64("seed", seed))

	start := time.Now()
	for msg := range root.Run(ctx, sorter, predicate) {
		switch m := msg.(type) {
		case *suite.Plan:
			result.Total, result.Planned = m.Total, m.Planned
		case *suite.Report:
			result.Reports = append(result.Reports, m)
			if !m.OK {
				log.Debug("spec failed", zap.String("spec", m.Description), zap.Error(m.Reason))
			}
		case *suite.Summary:
			result.Summary = m
		}
		if observe != nil {
			observe(msg)
		}
		if report, ok := msg.(*suite.Report); ok && !report.OK && r.config.Bail {
			result.Bailed = true
			break
		}
	}

	if result.Bailed || ctx.Err() != nil {
		result.Teardown = teardown(context.WithoutCancel(ctx), root)
		if observe != nil {
			for _, report := range result.Teardown {
				observe(report)
			}
		}
	}
	if result.Summary == nil {
		result.Summary = summarize(result)
		if observe != nil {
			observe(result.Summary)
		}
	}

	result.Duration = time.Since(start)
	result.Timing = r.metrics.Summary()
	slowest := r.config.Slowest
	if slowest == 0 {
		slowest = DefaultSlowest
	}
	result.Slowest = r.metrics.Slowest(slowest)

	log.Info("run finished",
		zap.Int("completed", result.Summary.Completed),
		zap.Int("failed", result.Summary.Failed),
		zap.Bool("bailed", result.Bailed),
		zap.Duration("duration", result.Duration),
	)
	return result, ctx.Err()
}

func (r *Runner) order() string {
	if r.config.Order == "" {
		return config.OrderRandom
	}
	return r.config.Order
}

func (r *Runner) sorter() (suite.Sorter, uint64, error) {
	switch r.order() {
	case config.OrderRandom:
		seed := r.config.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		return suite.ShuffleSeed(seed), seed, nil
	case config.OrderDeclared:
		return suite.Declared, 0, nil
	case config.OrderAlpha:
		return suite.ByDescription, 0, nil
	default:
		return nil, 0, fmt.Errorf("unknown order %q (use %s, %s or %s)",
			r.config.Order, config.OrderRandom, config.OrderDeclared, config.OrderAlpha)
	}
}

func (r *Runner) predicate(root *suite.Group) (suite.Predicate, error) {
	predicates := []suite.Predicate{
		selection.Filter(r.config.Filter),
		selection.Tags(r.config.Tags...),
	}
	grep, err := selection.Grep(r.config.Grep)
	if err != nil {
		return nil, err
	}
	predicates = append(predicates, grep)

	if r.config.Partition != "" {
		index, count, err := selection.ParsePartition(r.config.Partition)
		if err != nil {
			return nil, err
		}
		total := 0
		for range root.OrderedJobs() {
			total++
		}
		partition, err := selection.Partition(total, index, count)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, partition)
	}
	return selection.All(predicates...), nil
}

// summarize counts the reports of a run that ended early.
func summarize(result *RunResult) *suite.Summary {
	s := &suite.Summary{Total: result.Total, Planned: result.Planned}
	for _, report := range result.Reports {
		s.Completed++
		if report.OK {
			s.OK++
		}
		if report.Skipped {
			s.Skipped++
		}
	}
	s.Failed = s.Completed - s.OK
	return s
}

// teardown closes every group left open, innermost first, and returns the
// reports of failing after-all hooks.
func teardown(ctx context.Context, g *suite.Group) []*suite.Report {
	var reports []*suite.Report
	for _, child := range g.Suites() {
		reports = append(reports, teardown(ctx, child)...)
	}
	closed, _ := g.Close(ctx)
	return append(reports, closed...)
}
