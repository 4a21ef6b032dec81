package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

// Snapshotter records what an engine served when it produced nothing.
type Snapshotter interface {
	Snapshot(ctx context.Context, b browser.Browser, a Adapter, query string) error
}

// Selection is the outcome of a fallback run. Engine is empty when every
// adapter came back empty.
type Selection struct {
	Engine  string
	Results []prospect.RawResult
}

// Selector tries adapters one at a time and keeps the first non-empty
// result set.
type Selector struct {
	Adapters []Adapter
	Options  SearchOptions
	// Snapshots is optional.
	Snapshots Snapshotter

	log *slog.Logger
}

// NewSelector tries adapters in the given order with opts. snaps may be
// nil to skip diagnostics.
func NewSelector(adapters []Adapter, opts SearchOptions, snaps Snapshotter) *Selector {
	return &Selector{
		Adapters:  adapters,
		Options:   opts,
		Snapshots: snaps,
		log:       logger.Component("selector"),
	}
}

// Select runs the adapters in order. An adapter error or empty result moves
// on to the next adapter; only ctx cancellation or a dead browser stops the
// run early, returning an empty Selection.
func (s *Selector) Select(ctx context.Context, b browser.Browser, query string) Selection {
	log := s.log
	if log == nil {
		log = logger.Component("selector")
	}

	for _, a := range s.Adapters {
		if ctx.Err() != nil {
			return Selection{}
		}

		log.Info("trying engine", "engine", a.Name(), "query", query)
		results, err := a.Search(ctx, b, query, s.Options)
		if len(results) > 0 {
			if err != nil {
				log.Warn("engine stopped early, keeping partial results",
					"engine", a.Name(), "results", len(results), "error", err)
			}
			log.Info("engine succeeded", "engine", a.Name(), "results", len(results))
			return Selection{Engine: a.Name(), Results: results}
		}

		if err != nil {
			log.Warn("engine failed", "engine", a.Name(), "error", err)
		} else {
			log.Warn("engine returned no results", "engine", a.Name())
		}
		if ctx.Err() != nil || errors.Is(err, browser.ErrClosed) {
			return Selection{}
		}
		if s.Snapshots != nil {
			if err := s.Snapshots.Snapshot(ctx, b, a, query); err != nil {
				log.Debug("snapshot failed", "engine", a.Name(), "error", err)
			}
		}
	}

	log.Warn("all engines exhausted", "query", query)
	return Selection{}
}
