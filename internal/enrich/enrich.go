// Package enrich visits each candidate result's page and fills in the page
// metadata and contact details a search snippet does not carry.
//
// Results are processed in fixed-size batches. Items within a batch run
// concurrently, each in its own browser session; batches run one after the
// other so the browser never holds more than BatchSize enrichment tabs.
// A failing item degrades to its search snippet data and never affects its
// neighbours.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/contact"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

const (
	DefaultBatchSize    = 5
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 512 * 1024
)

// Fingerprinter prepares a session before its first navigation.
type Fingerprinter interface {
	Apply(ctx context.Context, s browser.Session) error
}

// Options configure an Enricher.
type Options struct {
	BatchSize int
	// Timeout bounds each page load.
	Timeout time.Duration
	// MaxBodyBytes caps the page text handed to contact extraction.
	MaxBodyBytes uint64
	Stealth      Fingerprinter
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBodyBytes == 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// Enricher turns raw results into prospects.
type Enricher struct {
	opts Options
	log  *slog.Logger
}

// New builds an Enricher, filling unset options with defaults.
func New(opts Options) *Enricher {
	return &Enricher{opts: opts.withDefaults(), log: logger.Component("enrich")}
}

// BatchSize reports the effective batch size.
func (e *Enricher) BatchSize() int { return e.opts.BatchSize }

// Enrich returns one prospect per input, in input order. Once ctx is done
// or the browser is closed, the remaining items are returned degraded
// without touching the browser. A panic while enriching an item degrades
// that item only.
func (e *Enricher) Enrich(ctx context.Context, b browser.Browser, results []prospect.RawResult) []prospect.Prospect {
	out := make([]prospect.Prospect, len(results))
	size := e.opts.BatchSize
	batches := (len(results) + size - 1) / size

	for start := 0; start < len(results); start += size {
		end := min(start+size, len(results))

		if ctx.Err() != nil {
			e.log.Info("enrichment stopped", "remaining", len(results)-start, "reason", ctx.Err())
			for i := start; i < len(results); i++ {
				out[i] = degraded(results[i])
			}
			break
		}

		e.log.Debug("processing batch", "batch", start/size+1, "of", batches, "items", end-start)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						e.log.Error("enrichment panicked", "link", results[i].Link, "panic", r)
						out[i] = degraded(results[i])
					}
				}()
				out[i] = e.enrichOne(ctx, b, results[i])
				return nil
			})
		}
		g.Wait()
	}
	return out
}

// enrichOne never fails; errors produce a degraded record.
func (e *Enricher) enrichOne(ctx context.Context, b browser.Browser, r prospect.RawResult) prospect.Prospect {
	log := e.log.With("link", r.Link)

	page, err := e.load(ctx, b, r.Link)
	if err != nil {
		if errors.Is(err, browser.ErrClosed) || ctx.Err() != nil {
			log.Debug("enrichment abandoned", "error", err)
		} else {
			log.Warn("enrichment failed", "error", err)
		}
		return degraded(r)
	}

	p := withHints(prospect.FromRaw(r), page.Body)
	p.PageTitle = page.Title
	p.PageHeading = page.Heading
	p.MetaDescription = page.MetaDescription
	p.ExtractedContent = page.Intro

	merged := contact.Merge(baseline(r), contact.Extract(page.Body))
	p.Emails = nonNil(merged.Emails)
	p.Phones = nonNil(merged.Phones)

	log.Debug("enriched", "emails", len(p.Emails), "phones", len(p.Phones))
	return p
}

// load opens a session, navigates and returns the parsed page. The session
// is closed before load returns.
func (e *Enricher) load(ctx context.Context, b browser.Browser, link string) (Page, error) {
	sess, err := b.NewSession(ctx)
	if err != nil {
		return Page{}, err
	}
	defer sess.Close()

	if e.opts.Stealth != nil {
		if err := e.opts.Stealth.Apply(ctx, sess); err != nil {
			if errors.Is(err, browser.ErrClosed) {
				return Page{}, err
			}
			e.log.Debug("stealth setup failed", "error", err)
		}
	}

	if err := sess.Navigate(ctx, link, browser.NavigateOptions{Timeout: e.opts.Timeout}); err != nil {
		return Page{}, err
	}

	html, err := browser.OuterHTML(ctx, sess)
	if err != nil {
		return Page{}, err
	}
	return ParsePage(html, link, e.opts.MaxBodyBytes)
}

// baseline is what the search result itself reveals.
func baseline(r prospect.RawResult) contact.Contacts {
	return contact.Extract(r.Title + "\n" + r.Snippet)
}

// degraded keeps the search data and snippet contacts only.
func degraded(r prospect.RawResult) prospect.Prospect {
	p := withHints(prospect.FromRaw(r), "")
	c := baseline(r)
	p.Emails = nonNil(c.Emails)
	p.Phones = nonNil(c.Phones)
	return p
}

func withHints(p prospect.Prospect, body string) prospect.Prospect {
	p.Company = contact.CompanyFromTitleOrLink(p.Title, p.Link)
	if person, ok := contact.PersonFromText(body); ok {
		p.ContactName = person.Name
		p.ContactTitle = person.Title
		return p
	}
	if role := contact.JobTitleFromSnippet(p.Snippet); role != "" {
		p.ContactName = contact.NameFromTitle(p.Title)
		p.ContactTitle = role
	}
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
