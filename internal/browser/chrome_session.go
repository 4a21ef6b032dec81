package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	evaluateTimeout   = 15 * time.Second
	screenshotTimeout = 5 * time.Second
)

type chromeSession struct {
	browser *chromeBrowser
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
}

// run executes actions in the tab, bounded by timeout and by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	switch {
	case err == nil:
		return nil
	case s.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrClosed, err)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
	default:
		return err
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	opts = opts.withDefaults()
	err := s.run(ctx, opts.Timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery),
	)
	if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return err
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, evaluateTimeout, chromedp.Evaluate(script, out))
}

func (s *chromeSession) SetFingerprint(ctx context.Context, fp Fingerprint) error {
	apply := chromedp.ActionFunc(func(ctx context.Context) error {
		if fp.UserAgent != "" {
			ua := emulation.SetUserAgentOverride(fp.UserAgent)
			if fp.AcceptLanguage != "" {
				ua = ua.WithAcceptLanguage(fp.AcceptLanguage)
			}
			if fp.Platform != "" {
				ua = ua.WithPlatform(fp.Platform)
			}
			if err := ua.Do(ctx); err != nil {
				return fmt.Errorf("user agent: %w", err)
			}
		}

		if fp.Viewport.Width > 0 && fp.Viewport.Height > 0 {
			if err := emulation.SetDeviceMetricsOverride(fp.Viewport.Width, fp.Viewport.Height, 1.0, false).Do(ctx); err != nil {
				return fmt.Errorf("viewport: %w", err)
			}
		}

		if len(fp.Headers) > 0 {
			headers := make(network.Headers, len(fp.Headers))
			for k, v := range fp.Headers {
				headers[k] = v
			}
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network: %w", err)
			}
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("headers: %w", err)
			}
		}

		if fp.Script != "" {
			if _, err := page.AddScriptToEvaluateOnNewDocument(fp.Script).Do(ctx); err != nil {
				return fmt.Errorf("inject script: %w", err)
			}
		}
		return nil
	})
	return s.run(ctx, evaluateTimeout, apply)
}

func (s *chromeSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, screenshotTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close closes the tab. Closing an already closed tab is a no-op.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
