// Package browsertest provides an in-memory browser.Browser for tests.
//
// Pages are served from a map or a handler func. The fake counts sessions
// opened and closed, records navigations, and honours Close the way a real
// browser does: every later operation fails with browser.ErrClosed and
// blocked navigations are released.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/prospector/internal/browser"
)

// Page is what the fake serves for one URL.
type Page struct {
	HTML string
	Err  error
	// Block makes the navigation hang until ctx is done or the browser is
	// closed.
	Block bool
}

// Browser is a fake browser.Browser. The zero value is not usable; call New.
type Browser struct {
	// Handler, when set, is consulted before Pages.
	Handler func(url string) Page
	Pages   map[string]Page

	NewSessionErr error
	CloseErr      error

	mu           sync.Mutex
	closed       bool
	done         chan struct{}
	opened       int
	sessClosed   int
	closes       int
	navigations  []string
	screenshots  []string
	fingerprints []browser.Fingerprint
}

// New returns an open fake browser with no pages.
func New() *Browser {
	return &Browser{Pages: map[string]Page{}, done: make(chan struct{})}
}

func (b *Browser) NewSession(ctx context.Context) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	if b.NewSessionErr != nil {
		return nil, b.NewSessionErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.opened++
	return &session{b: b}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return b.CloseErr
}

// Stats is a snapshot of the fake's counters.
type Stats struct {
	SessionsOpened int
	SessionsClosed int
	BrowserCloses  int
	Navigations    []string
	Screenshots    []string
	Fingerprints   int
}

// Stats snapshots the counters.
func (b *Browser) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		SessionsOpened: b.opened,
		SessionsClosed: b.sessClosed,
		BrowserCloses:  b.closes,
		Navigations:    append([]string(nil), b.navigations...),
		Screenshots:    append([]string(nil), b.screenshots...),
		Fingerprints:   len(b.fingerprints),
	}
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) page(url string) Page {
	if b.Handler != nil {
		return b.Handler(url)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.Pages[url]; ok {
		return p
	}
	return Page{Err: fmt.Errorf("%w: no fake page for %s", browser.ErrNavigation, url)}
}

type session struct {
	b      *Browser
	html   string
	closed bool
}

func (s *session) alive() error {
	if s.closed || s.b.isClosed() {
		return browser.ErrClosed
	}
	return nil
}

func (s *session) Navigate(ctx context.Context, url string, _ browser.NavigateOptions) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.navigations = append(s.b.navigations, url)
	s.b.mu.Unlock()

	p := s.b.page(url)
	if p.Block {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.b.done:
			return browser.ErrClosed
		}
	}
	// the handler may have closed the browser
	if err := s.alive(); err != nil {
		return err
	}
	if p.Err != nil {
		return p.Err
	}
	s.html = p.HTML
	return nil
}

func (s *session) Evaluate(_ context.Context, script string, out any) error {
	if err := s.alive(); err != nil {
		return err
	}
	ptr, ok := out.(*string)
	if !ok {
		return nil
	}
	switch script {
	case browser.ScriptOuterHTML:
		*ptr = s.html
	case browser.ScriptInnerText, browser.ScriptTitle:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
		if err != nil {
			return err
		}
		if script == browser.ScriptTitle {
			*ptr = strings.TrimSpace(doc.Find("title").Text())
		} else {
			*ptr = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
		}
	}
	return nil
}

func (s *session) SetFingerprint(_ context.Context, fp browser.Fingerprint) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.fingerprints = append(s.b.fingerprints, fp)
	s.b.mu.Unlock()
	return nil
}

func (s *session) Screenshot(_ context.Context, path string) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.screenshots = append(s.b.screenshots, path)
	s.b.mu.Unlock()
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.b.mu.Lock()
	s.b.sessClosed++
	s.b.mu.Unlock()
	return nil
}

// Launcher returns Browser from every Launch, or Err when set.
type Launcher struct {
	Browser *Browser
	Err     error

	mu       sync.Mutex
	launches int
}

func (l *Launcher) Name() string { return "fake" }

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.Err != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrLaunch, l.Err)
	}
	return l.Browser, nil
}

// Launches reports how many times Launch was called.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}
