package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yosssi/gohtml"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/logger"
)

// DefaultDebugDir is where snapshots land when no directory is configured.
func DefaultDebugDir() string {
	return filepath.Join(os.TempDir(), "prospector-debug")
}

// DebugSnapshotter reloads an adapter's first results page and writes a
// screenshot, or the page HTML when the browser cannot take screenshots.
type DebugSnapshotter struct {
	Dir     string
	Timeout time.Duration
	now     func() time.Time
}

// NewDebugSnapshotter writes into dir, or DefaultDebugDir when dir is empty.
func NewDebugSnapshotter(dir string) *DebugSnapshotter {
	if dir == "" {
		dir = DefaultDebugDir()
	}
	return &DebugSnapshotter{Dir: dir, Timeout: 20 * time.Second, now: time.Now}
}

// Snapshot reloads the first results page of a for query in a fresh
// session and saves it.
func (d *DebugSnapshotter) Snapshot(ctx context.Context, b browser.Browser, a Adapter, query string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}

	sess, err := b.NewSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	target := a.SearchURL(query, 0)
	if err := sess.Navigate(ctx, target, browser.NavigateOptions{Timeout: d.Timeout}); err != nil {
		return err
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	base := filepath.Join(d.Dir, fmt.Sprintf("%s-%s", a.Name(), now().UTC().Format("20060102T150405.000")))

	err = sess.Screenshot(ctx, base+".png")
	if err == nil {
		logger.Debug("saved engine snapshot", "engine", a.Name(), "path", base+".png")
		return nil
	}
	if !errors.Is(err, browser.ErrUnsupported) {
		return err
	}

	html, err := browser.OuterHTML(ctx, sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".html", []byte(gohtml.Format(html)), 0o644); err != nil {
		return err
	}
	logger.Debug("saved engine snapshot", "engine", a.Name(), "path", base+".html")
	return nil
}
