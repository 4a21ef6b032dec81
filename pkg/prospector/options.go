package prospector

import (
	"time"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/engine"
	"github.com/jmylchreest/prospector/internal/job"
	"github.com/jmylchreest/prospector/internal/stealth"
)

// Config holds all Scraper configuration.
type Config struct {
	// Browser
	Launcher browser.Launcher
	Stealth  *stealth.Pool

	// Search
	Engines  []string
	Adapters []engine.Adapter
	MaxPages int
	Paging   engine.Options
	Cache    engine.ResultCache
	DebugDir string
	// Snapshots overrides the debug-dir snapshotter. Set DisableSnapshots
	// to skip diagnostics entirely.
	Snapshots        engine.Snapshotter
	DisableSnapshots bool

	// Enrichment
	BatchSize     int
	EnrichTimeout time.Duration
	MaxBodyBytes  uint64

	// Jobs
	Registry  *job.Registry
	Store     job.Store
	Publisher job.Publisher
}

// DefaultConfig returns a chrome-backed configuration trying every engine in
// the default order.
func DefaultConfig() Config {
	return Config{
		Engines:  engine.DefaultOrder,
		MaxPages: 3,
		Paging:   engine.DefaultOptions(),
	}
}

// Option configures a Scraper.
type Option func(*Config)

// WithLauncher sets how the per-job browser is started.
func WithLauncher(l browser.Launcher) Option {
	return func(c *Config) {
		c.Launcher = l
	}
}

// WithStealth sets the fingerprint pool applied to every session.
func WithStealth(p *stealth.Pool) Option {
	return func(c *Config) {
		c.Stealth = p
	}
}

// WithEngines sets the engine fallback order by name.
func WithEngines(names ...string) Option {
	return func(c *Config) {
		c.Engines = names
	}
}

// WithAdapters replaces engine resolution with explicit adapters.
func WithAdapters(adapters ...engine.Adapter) Option {
	return func(c *Config) {
		c.Adapters = adapters
	}
}

// WithMaxPages caps pagination per engine.
func WithMaxPages(n int) Option {
	return func(c *Config) {
		c.MaxPages = n
	}
}

// WithPaging sets the retry and politeness policy of the engines.
func WithPaging(o engine.Options) Option {
	return func(c *Config) {
		c.Paging = o
	}
}

// WithCache serves repeated engine searches from rc.
func WithCache(rc engine.ResultCache) Option {
	return func(c *Config) {
		c.Cache = rc
	}
}

// WithDebugDir sets where empty-engine snapshots are written.
func WithDebugDir(dir string) Option {
	return func(c *Config) {
		c.DebugDir = dir
	}
}

// WithSnapshots sets the diagnostic snapshotter; nil disables snapshots.
func WithSnapshots(s engine.Snapshotter) Option {
	return func(c *Config) {
		c.Snapshots = s
		c.DisableSnapshots = s == nil
	}
}

// WithBatchSize sets how many pages are enriched concurrently.
func WithBatchSize(n int) Option {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithEnrichTimeout bounds each enrichment page load.
func WithEnrichTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.EnrichTimeout = d
	}
}

// WithMaxBodyBytes caps the page text scanned for contacts.
func WithMaxBodyBytes(n uint64) Option {
	return func(c *Config) {
		c.MaxBodyBytes = n
	}
}

// WithRegistry shares a cancellation registry, typically with the HTTP
// cancel endpoint.
func WithRegistry(r *job.Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithStore sets where job status records are kept.
func WithStore(s job.Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithPublisher sets the job lifecycle event sink.
func WithPublisher(p job.Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}
