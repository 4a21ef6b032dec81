// Package engine harvests organic results from public search engines.
//
// Every supported engine is a Descriptor: URL layout, pagination stride and
// result selectors. A single Engine type runs the paging and retry state
// machine for any descriptor, so adding an engine is a data change. The set
// of engines is closed and selected by name from the registry in
// registry.go.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

var (
	// ErrSessionUnavailable means no tab could be opened on the browser;
	// the adapter gives up and returns what it has.
	ErrSessionUnavailable = errors.New("browser session unavailable")
	// ErrBotChallenge marks a results page replaced by an anti-bot check.
	ErrBotChallenge = errors.New("bot challenge detected")
	// ErrUnknownEngine is returned by the registry for unsupported names.
	ErrUnknownEngine = errors.New("unknown search engine")
)

// Adapter harvests raw results for one search engine.
type Adapter interface {
	Name() string
	// SearchURL returns the results URL for a zero-based page.
	SearchURL(query string, page int) string
	// Search pages through results. It returns an error only when no
	// session can be opened or ctx ends; partial results accompany it.
	Search(ctx context.Context, b browser.Browser, query string, opts SearchOptions) ([]prospect.RawResult, error)
}

// SearchOptions tune one Search call.
type SearchOptions struct {
	// MaxPages caps pagination; zero uses the descriptor's cap.
	MaxPages int
	// Filter drops results per page before they are accumulated.
	Filter func(prospect.RawResult) bool
}

// Fingerprinter prepares a fresh session before its first navigation.
type Fingerprinter interface {
	Apply(ctx context.Context, s browser.Session) error
}

// Options configures the paging state machine shared by all engines.
type Options struct {
	// Attempts per page, including the first. Default 3.
	Attempts int
	// Backoff returns the delay before retry number attempt (1-based).
	Backoff BackoffFunc
	// Sleep waits for d or until ctx ends. Tests replace it.
	Sleep SleepFunc
	// PageInterval spaces consecutive page loads. Zero disables.
	PageInterval time.Duration
	// NavigateTimeout bounds each page load. Default 30s.
	NavigateTimeout time.Duration
	Stealth         Fingerprinter
}

// DefaultOptions returns the production paging policy.
func DefaultOptions() Options {
	return Options{
		Attempts:        3,
		Backoff:         JitterBackoff(2*time.Second, 1500*time.Millisecond),
		Sleep:           SleepContext,
		PageInterval:    1500 * time.Millisecond,
		NavigateTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.Backoff == nil {
		o.Backoff = def.Backoff
	}
	if o.Sleep == nil {
		o.Sleep = def.Sleep
	}
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = def.NavigateTimeout
	}
	return o
}

// Descriptor is the static definition of a search engine.
type Descriptor struct {
	Name        string
	BaseURL     string
	QueryParam  string
	OffsetParam string
	// Offset of page p is FirstOffset + p*Stride.
	FirstOffset int
	Stride      int
	MaxPages    int
	Params      url.Values

	WaitSelector string
	// Prepare runs in the page before parsing, e.g. to dismiss a consent
	// banner. It must evaluate to a boolean. Failures are ignored.
	Prepare string

	Selectors Selectors
}

// SearchURL renders the results URL of page for query.
func (d Descriptor) SearchURL(query string, page int) string {
	q := url.Values{}
	for k, vs := range d.Params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set(d.QueryParam, query)
	if d.OffsetParam != "" {
		q.Set(d.OffsetParam, strconv.Itoa(d.FirstOffset+page*d.Stride))
	}
	return d.BaseURL + "?" + q.Encode()
}

// Engine runs the paging state machine for one Descriptor. It holds no
// per-search state and is safe for concurrent use.
type Engine struct {
	desc Descriptor
	opts Options
	log  *slog.Logger
}

// New builds an Engine for desc.
func New(desc Descriptor, opts Options) *Engine {
	return &Engine{
		desc: desc,
		opts: opts.withDefaults(),
		log:  logger.Component("engine").With("engine", desc.Name),
	}
}

// Name returns the engine's registry name.
func (e *Engine) Name() string { return e.desc.Name }

// Descriptor returns the static definition the engine runs.
func (e *Engine) Descriptor() Descriptor { return e.desc }

// SearchURL renders the results URL of a zero-based page.
func (e *Engine) SearchURL(query string, page int) string {
	return e.desc.SearchURL(query, page)
}

// Search walks result pages until one parses empty, the page cap is hit,
// or a page exhausts its retries.
func (e *Engine) Search(ctx context.Context, b browser.Browser, query string, opts SearchOptions) ([]prospect.RawResult, error) {
	maxPages := e.desc.MaxPages
	if opts.MaxPages > 0 && (maxPages == 0 || opts.MaxPages < maxPages) {
		maxPages = opts.MaxPages
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var limiter *rate.Limiter
	if e.opts.PageInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(e.opts.PageInterval), 1)
	}

	var acc []prospect.RawResult
	for page := 0; page < maxPages; page++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return acc, err
			}
		}

		results, more, err := e.harvestPage(ctx, b, query, page)
		if err != nil {
			return acc, err
		}
		for _, r := range results {
			if opts.Filter == nil || opts.Filter(r) {
				acc = append(acc, r)
			}
		}
		if !more {
			break
		}
	}

	e.log.Debug("search finished", "query", query, "results", len(acc))
	return acc, nil
}

// harvestPage fetches one page with retries. more is false when pagination
// must stop after this page.
func (e *Engine) harvestPage(ctx context.Context, b browser.Browser, query string, page int) (results []prospect.RawResult, more bool, err error) {
	for attempt := 1; ; attempt++ {
		results, outcome, err := e.fetchPage(ctx, b, query, page)

		switch outcome {
		case pageOK:
			return results, true, nil
		case pageEmpty:
			e.log.Debug("no results on page, stopping", "page", page)
			return nil, false, nil
		case pageFatal:
			return nil, false, err
		}

		// pageChallenge or pageFailed
		if attempt >= e.opts.Attempts {
			e.log.Warn("page retries exhausted, stopping pagination",
				"page", page, "attempts", attempt, "error", err)
			return nil, false, nil
		}
		delay := e.opts.Backoff(attempt)
		e.log.Debug("retrying page", "page", page, "attempt", attempt, "delay", delay, "error", err)
		if err := e.opts.Sleep(ctx, delay); err != nil {
			return nil, false, err
		}
	}
}

type pageOutcome int

const (
	pageOK pageOutcome = iota
	pageEmpty
	pageChallenge
	pageFailed
	pageFatal
)

// fetchPage loads and parses one page in its own session.
func (e *Engine) fetchPage(ctx context.Context, b browser.Browser, query string, page int) ([]prospect.RawResult, pageOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, pageFatal, err
	}

	sess, err := b.NewSession(ctx)
	if err != nil {
		return nil, pageFatal, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	defer sess.Close()

	if e.opts.Stealth != nil {
		if err := e.opts.Stealth.Apply(ctx, sess); err != nil {
			if errors.Is(err, browser.ErrClosed) {
				return nil, pageFatal, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
			}
			e.log.Debug("stealth setup failed", "error", err)
		}
	}

	target := e.desc.SearchURL(query, page)
	err = sess.Navigate(ctx, target, browser.NavigateOptions{
		Timeout:      e.opts.NavigateTimeout,
		WaitSelector: e.desc.WaitSelector,
	})
	if err != nil {
		return nil, classify(ctx, err), err
	}

	if e.desc.Prepare != "" {
		var ok bool
		if err := sess.Evaluate(ctx, e.desc.Prepare, &ok); err != nil {
			e.log.Debug("prepare script failed", "error", err)
		}
	}

	html, err := browser.OuterHTML(ctx, sess)
	if err != nil {
		return nil, classify(ctx, err), err
	}

	parsed, err := Parse(e.desc, html, target)
	if err != nil {
		return nil, pageFailed, err
	}
	if parsed.Challenge != "" {
		return nil, pageChallenge, fmt.Errorf("%w: %s", ErrBotChallenge, parsed.Challenge)
	}
	if len(parsed.Results) == 0 {
		if parsed.NoResults == "" {
			e.log.Debug("no result blocks matched", "page", page, "url", target)
		}
		return nil, pageEmpty, nil
	}
	return parsed.Results, pageOK, nil
}

// classify maps a session error to a retryable or fatal outcome.
func classify(ctx context.Context, err error) pageOutcome {
	if ctx.Err() != nil || errors.Is(err, browser.ErrClosed) {
		return pageFatal
	}
	return pageFailed
}
