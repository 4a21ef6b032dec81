package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/cache"
	"github.com/jmylchreest/prospector/internal/config"
	"github.com/jmylchreest/prospector/internal/engine"
	"github.com/jmylchreest/prospector/internal/job"
	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/internal/stealth"
	"github.com/jmylchreest/prospector/pkg/prospector"
)

// app owns the scraper and the external clients it was built with.
type app struct {
	scraper *prospector.Scraper
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp builds a scraper from cfg. Redis and Kafka are connected only when
// configured.
func newApp(ctx context.Context, cfg config.Config, extra ...prospector.Option) (*app, error) {
	a := &app{}
	opts, err := a.options(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	s, err := prospector.New(append(opts, extra...)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.scraper = s
	return a, nil
}

func (a *app) options(ctx context.Context, cfg config.Config) ([]prospector.Option, error) {
	stealthCfg := stealth.Config{}
	if cfg.Browser.UserAgent != "" {
		stealthCfg.UserAgents = []string{cfg.Browser.UserAgent}
	}

	opts := []prospector.Option{
		prospector.WithLauncher(launcherFor(cfg)),
		prospector.WithStealth(stealth.NewPool(stealthCfg)),
		prospector.WithEngines(cfg.Engines.Order...),
		prospector.WithMaxPages(cfg.Engines.MaxPages),
		prospector.WithPaging(engine.Options{
			Attempts:        cfg.Engines.Attempts,
			Backoff:         engine.JitterBackoff(cfg.Engines.BackoffBase, cfg.Engines.BackoffJitter),
			PageInterval:    cfg.Engines.PageInterval,
			NavigateTimeout: cfg.Engines.NavigationTimeout,
		}),
		prospector.WithDebugDir(cfg.DebugDir),
		prospector.WithBatchSize(cfg.Enrich.BatchSize),
		prospector.WithEnrichTimeout(cfg.Enrich.Timeout),
		prospector.WithMaxBodyBytes(cfg.Enrich.MaxBodyBytes),
	}

	if cfg.Redis.URL != "" {
		rc, err := cache.New(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix+"results:", cfg.Redis.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("result cache: %w", err)
		}
		a.closers = append(a.closers, rc)

		store, err := job.NewRedisStore(cfg.Redis.URL, cfg.Redis.KeyPrefix+"job:", cfg.Redis.StatusTTL)
		if err != nil {
			return nil, fmt.Errorf("job store: %w", err)
		}
		a.closers = append(a.closers, store)

		opts = append(opts, prospector.WithCache(rc), prospector.WithStore(store))
		logger.Info("redis enabled", "url", redactURL(cfg.Redis.URL))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := job.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, pub)
		opts = append(opts, prospector.WithPublisher(pub))
		logger.Info("kafka events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	return opts, nil
}

func launcherFor(cfg config.Config) browser.Launcher {
	if cfg.Browser.Mode == "static" {
		return browser.NewStaticLauncher(browser.StaticConfig{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   cfg.Engines.NavigationTimeout,
		})
	}
	return browser.NewChromeLauncher(browser.ChromeConfig{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ChromePath,
		UserAgent: cfg.Browser.UserAgent,
		NoSandbox: cfg.Browser.NoSandbox,
	})
}

// redactURL hides credentials before a connection string is logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
