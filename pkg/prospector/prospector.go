// Package prospector is the public entry point: it runs one prospect search
// end to end, from launching the browser through engine fallback, relevance
// filtering and page enrichment, and guarantees the browser is torn down.
package prospector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/engine"
	"github.com/jmylchreest/prospector/internal/enrich"
	"github.com/jmylchreest/prospector/internal/job"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/internal/relevance"
	"github.com/jmylchreest/prospector/internal/stealth"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

// ErrInvalidQuery is returned before any I/O when the query text is blank.
var ErrInvalidQuery = errors.New("invalid search query")

// ScrapeFailure reports that the job could not acquire its browser.
type ScrapeFailure struct {
	JobID string
	Err   error
}

func (e *ScrapeFailure) Error() string {
	return fmt.Sprintf("scrape %s failed: %v", e.JobID, e.Err)
}

func (e *ScrapeFailure) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Scraper runs prospect searches. It is safe for concurrent use, but every
// Run registers with the same cancellation slot, so a new Run supersedes the
// one in flight.
type Scraper struct {
	cfg       Config
	adapters  []engine.Adapter
	snapshots engine.Snapshotter
	enricher  *enrich.Enricher
	registry  *job.Registry
	store     job.Store
	publisher job.Publisher
	log       *slog.Logger
}

// New builds a Scraper.
func New(opts ...Option) (*Scraper, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Launcher == nil {
		cfg.Launcher = browser.NewChromeLauncher(browser.DefaultChromeConfig())
	}
	if cfg.Stealth == nil {
		cfg.Stealth = stealth.NewPool(stealth.DefaultConfig())
	}
	if cfg.Registry == nil {
		cfg.Registry = job.NewRegistry()
	}
	if cfg.Store == nil {
		cfg.Store = job.NewMemoryStore(0)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = job.NopPublisher{}
	}

	adapters := slices.Clone(cfg.Adapters)
	if len(adapters) == 0 {
		paging := cfg.Paging
		paging.Stealth = cfg.Stealth
		var err error
		adapters, err = engine.Resolve(cfg.Engines, paging)
		if err != nil {
			return nil, err
		}
	}
	for i, a := range adapters {
		adapters[i] = engine.Cached(a, cfg.Cache)
	}

	var snaps engine.Snapshotter
	switch {
	case cfg.DisableSnapshots:
	case cfg.Snapshots != nil:
		snaps = cfg.Snapshots
	default:
		snaps = engine.NewDebugSnapshotter(cfg.DebugDir)
	}

	return &Scraper{
		cfg:       cfg,
		adapters:  adapters,
		snapshots: snaps,
		enricher: enrich.New(enrich.Options{
			BatchSize:    cfg.BatchSize,
			Timeout:      cfg.EnrichTimeout,
			MaxBodyBytes: cfg.MaxBodyBytes,
			Stealth:      cfg.Stealth,
		}),
		registry:  cfg.Registry,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		log:       logger.Component("prospector"),
	}, nil
}

// Registry returns the cancellation registry jobs register with.
func (s *Scraper) Registry() *job.Registry { return s.registry }

// Store returns the job status store.
func (s *Scraper) Store() job.Store { return s.store }

// Engines lists the adapters in fallback order.
func (s *Scraper) Engines() []string {
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Name()
	}
	return names
}

// Cancel tears down the running job's browser, if any.
func (s *Scraper) Cancel() error {
	return s.registry.Cancel()
}

// Run executes one search job. It returns ErrInvalidQuery for a blank query
// and *ScrapeFailure when the browser cannot be launched; every other
// failure degrades the response instead.
func (s *Scraper) Run(ctx context.Context, q prospect.SearchQuery) (*prospect.Response, error) {
	q = q.Normalize()
	if err := validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}

	j := job.Job{
		ID:        job.NewID(),
		Query:     q.Text,
		Industry:  q.Industry,
		Region:    q.Region,
		Status:    job.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	log := s.log.With("job", j.ID)
	log.Info("job started", "query", q.Text, "industry", q.Industry, "region", q.Region)
	s.record(ctx, j, job.EventStarted)

	b, err := s.cfg.Launcher.Launch(ctx)
	if err != nil {
		log.Error("browser launch failed", "launcher", s.cfg.Launcher.Name(), "error", err)
		j.Finish(job.StatusFailed, err, time.Now())
		s.record(ctx, j, job.EventFinished)
		return nil, &ScrapeFailure{JobID: j.ID, Err: err}
	}

	res := &onceCloser{b: b}
	h := s.registry.Register(j.ID, res)
	defer h.Release()
	defer func() {
		if err := res.Close(); err != nil {
			log.Warn("browser close failed", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			j.Finish(job.StatusFailed, fmt.Errorf("panic: %v", r), time.Now())
			s.record(context.WithoutCancel(ctx), j, job.EventFinished)
			panic(r)
		}
	}()

	filter := relevance.New(relevance.CriteriaFor(q))
	selector := engine.NewSelector(s.adapters, engine.SearchOptions{
		MaxPages: s.cfg.MaxPages,
		Filter:   filter.Match,
	}, s.snapshots)

	sel := selector.Select(ctx, b, q.Text)
	filtered := filter.Apply(sel.Results)
	log.Info("search stage done", "engine", sel.Engine, "raw", len(sel.Results), "relevant", len(filtered))

	prospects := s.enricher.Enrich(ctx, b, filtered)

	status := job.StatusCompleted
	if h.Cancelled() || ctx.Err() != nil {
		status = job.StatusCancelled
	}

	resp := prospect.NewResponse(q, sel.Engine, prospects)
	resp.JobID = j.ID
	resp.Status = string(status)

	j.EngineUsed = sel.Engine
	j.TotalFound = resp.TotalFound
	j.Finish(status, nil, time.Now())
	s.record(context.WithoutCancel(ctx), j, job.EventFinished)
	log.Info("job finished", "status", status, "engine", sel.Engine, "total", resp.TotalFound,
		"duration", j.FinishedAt.Sub(j.StartedAt))

	return resp, nil
}

// record stores j and publishes ev. Failures are logged only.
func (s *Scraper) record(ctx context.Context, j job.Job, ev string) {
	if err := s.store.Put(ctx, j); err != nil {
		s.log.Warn("job status write failed", "job", j.ID, "error", err)
	}
	err := s.publisher.Publish(ctx, job.Event{Type: ev, Job: j, At: time.Now().UTC()})
	if err != nil {
		s.log.Warn("job event publish failed", "job", j.ID, "event", ev, "error", err)
	}
}

// onceCloser lets the registry and the job both close the browser while
// the browser sees a single Close.
type onceCloser struct {
	b    browser.Browser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.b.Close()
	})
	return c.err
}
