// Package browser defines the headless-browser capability the scraping
// pipeline is written against, and provides two implementations: a chromedp
// provider driving a real Chrome, and a colly-backed static provider for
// pages that render without JavaScript.
//
// A Browser is the expensive shared resource owned by one scrape job. Every
// page visit happens in its own Session (a tab). Closing the Browser makes
// every open and future Session fail with ErrClosed, which is how jobs are
// cancelled.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, browser.ErrClosed).
var (
	// ErrLaunch indicates the browser process could not be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrClosed indicates the browser or session has been closed.
	ErrClosed = errors.New("browser closed")
	// ErrNavigation indicates a page could not be loaded.
	ErrNavigation = errors.New("navigation failed")
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("browser operation timed out")
	// ErrUnsupported indicates the provider cannot perform the operation.
	ErrUnsupported = errors.New("operation not supported by browser provider")
)

// In-page scripts every provider understands.
const (
	ScriptOuterHTML = `document.documentElement.outerHTML`
	ScriptInnerText = `document.body ? document.body.innerText : ""`
	ScriptTitle     = `document.title`
)

// Launcher starts browser resources.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
	Name() string
}

// Browser is a launched browser shared by all sessions of one job.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one isolated tab. Sessions are not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	// Evaluate runs script against the loaded document and stores the
	// result in out, which must be a pointer.
	Evaluate(ctx context.Context, script string, out any) error
	SetFingerprint(ctx context.Context, fp Fingerprint) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// NavigateOptions bounds a single navigation.
type NavigateOptions struct {
	Timeout time.Duration
	// WaitSelector is a CSS selector that must be present before the
	// navigation is considered complete. Defaults to "body".
	WaitSelector string
}

func (o NavigateOptions) withDefaults() NavigateOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.WaitSelector == "" {
		o.WaitSelector = "body"
	}
	return o
}

// Viewport is the emulated window size in CSS pixels.
type Viewport struct {
	Width  int64
	Height int64
}

// Fingerprint is the identity a session presents to the sites it visits.
type Fingerprint struct {
	UserAgent      string
	Platform       string
	AcceptLanguage string
	Viewport       Viewport
	Headers        map[string]string
	// Script runs before any page script on every new document.
	Script string
}

// OuterHTML returns the serialized document of the page loaded in s.
func OuterHTML(ctx context.Context, s Session) (string, error) {
	var html string
	if err := s.Evaluate(ctx, ScriptOuterHTML, &html); err != nil {
		return "", err
	}
	return html, nil
}

func assignString(out any, v string) error {
	p, ok := out.(*string)
	if !ok {
		return fmt.Errorf("%w: result type %T", ErrUnsupported, out)
	}
	*p = v
	return nil
}
