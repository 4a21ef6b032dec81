package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/prospector/internal/logger"
)

// StaticConfig configures the colly-backed provider.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticLauncher hands out browsers that fetch raw HTML with colly. They
// run no JavaScript and understand only the Script* constants of this
// package; Screenshot is unsupported.
type StaticLauncher struct {
	cfg StaticConfig
}

// NewStaticLauncher returns a launcher for the colly-backed browser.
func NewStaticLauncher(cfg StaticConfig) *StaticLauncher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &StaticLauncher{cfg: cfg}
}

func (l *StaticLauncher) Name() string { return "static" }

func (l *StaticLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &staticBrowser{cfg: l.cfg, ctx: bctx, cancel: cancel}, nil
}

type staticBrowser struct {
	cfg    StaticConfig
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *staticBrowser) NewSession(ctx context.Context) (Session, error) {
	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticSession{browser: b, fp: Fingerprint{UserAgent: b.cfg.UserAgent}}, nil
}

func (b *staticBrowser) Close() error {
	b.cancel()
	return nil
}

type staticSession struct {
	browser *staticBrowser
	closed  atomic.Bool

	mu   sync.Mutex
	fp   Fingerprint
	html string
}

func (s *staticSession) alive() error {
	if s.closed.Load() || s.browser.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

func (s *staticSession) Navigate(ctx context.Context, target string, opts NavigateOptions) error {
	if err := s.alive(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.browser.cfg.Timeout
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(s.browser.ctx, cancel)
	defer stop()

	s.mu.Lock()
	fp := s.fp
	s.mu.Unlock()

	c := colly.NewCollector(
		colly.UserAgent(fp.UserAgent),
		colly.StdlibContext(opCtx),
	)
	c.SetRequestTimeout(timeout)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range fp.Headers {
			r.Headers.Set(k, v)
		}
		if fp.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", fp.AcceptLanguage)
		}
	})

	var (
		body     string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("status %d: %w", status, err)
	})

	logger.Debug("static navigate", "url", target)
	err := c.Visit(target)
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		if s.browser.ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, target)
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigation, target, err)
	}

	s.mu.Lock()
	s.html = body
	s.mu.Unlock()
	return nil
}

func (s *staticSession) Evaluate(_ context.Context, script string, out any) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.mu.Lock()
	html := s.html
	s.mu.Unlock()

	script = strings.TrimSpace(script)
	switch script {
	case ScriptOuterHTML:
		return assignString(out, html)
	case ScriptInnerText, ScriptTitle:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return err
		}
		if script == ScriptTitle {
			return assignString(out, strings.TrimSpace(doc.Find("title").First().Text()))
		}
		doc.Find("script, style, noscript, iframe, svg").Remove()
		return assignString(out, strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	default:
		return fmt.Errorf("%w: script evaluation", ErrUnsupported)
	}
}

func (s *staticSession) SetFingerprint(_ context.Context, fp Fingerprint) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fp.UserAgent == "" {
		fp.UserAgent = s.fp.UserAgent
	}
	s.fp = fp
	return nil
}

func (s *staticSession) Screenshot(context.Context, string) error {
	return fmt.Errorf("%w: screenshot", ErrUnsupported)
}

func (s *staticSession) Close() error {
	s.closed.Store(true)
	return nil
}
