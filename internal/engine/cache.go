package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

// ResultCache stores unfiltered raw results per engine and query.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]prospect.RawResult, bool, error)
	Set(ctx context.Context, key string, results []prospect.RawResult) error
}

// CacheKey identifies a search independent of the inline filter.
func CacheKey(engine, query string, pages int) string {
	raw := strings.ToLower(engine) + "|" + strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(pages)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

type cachedAdapter struct {
	Adapter
	cache ResultCache
}

// Cached wraps a so that result sets are served from c when present. The
// inline filter runs after the cache so one entry serves any criteria.
func Cached(a Adapter, c ResultCache) Adapter {
	if c == nil {
		return a
	}
	return &cachedAdapter{Adapter: a, cache: c}
}

func (c *cachedAdapter) Search(ctx context.Context, b browser.Browser, query string, opts SearchOptions) ([]prospect.RawResult, error) {
	key := CacheKey(c.Name(), query, opts.MaxPages)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("result cache read failed", "engine", c.Name(), "error", err)
	}
	if !ok {
		raw, err = c.Adapter.Search(ctx, b, query, SearchOptions{MaxPages: opts.MaxPages})
		if err != nil {
			return applyFilter(raw, opts.Filter), err
		}
		if len(raw) > 0 {
			if err := c.cache.Set(ctx, key, raw); err != nil {
				logger.Warn("result cache write failed", "engine", c.Name(), "error", err)
			}
		}
	} else {
		logger.Debug("result cache hit", "engine", c.Name(), "results", len(raw))
	}
	return applyFilter(raw, opts.Filter), nil
}

func applyFilter(results []prospect.RawResult, keep func(prospect.RawResult) bool) []prospect.RawResult {
	if keep == nil {
		return results
	}
	out := make([]prospect.RawResult, 0, len(results))
	for _, r := range results {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
