package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/browser/browsertest"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

// stubAdapter returns canned results and counts invocations.
type stubAdapter struct {
	name    string
	results []prospect.RawResult
	err     error

	mu    sync.Mutex
	calls int
	opts  SearchOptions
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) SearchURL(query string, page int) string {
	return "https://" + s.name + ".example/search?q=" + query
}

func (s *stubAdapter) Search(_ context.Context, _ browser.Browser, _ string, opts SearchOptions) ([]prospect.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.opts = opts
	return s.results, s.err
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSnapshotter struct {
	engines []string
}

func (r *recordingSnapshotter) Snapshot(_ context.Context, _ browser.Browser, a Adapter, _ string) error {
	r.engines = append(r.engines, a.Name())
	return nil
}

func raw(engine string, n int) []prospect.RawResult {
	out := make([]prospect.RawResult, n)
	for i := range out {
		out[i] = prospect.RawResult{Title: engine, Link: "https://" + engine + ".example/" + string(rune('a'+i)), SourceEngine: engine}
	}
	return out
}

// --- Selector Tests ---

func TestSelect_FirstNonEmptyWins(t *testing.T) {
	a := &stubAdapter{name: "a"}
	b := &stubAdapter{name: "b", results: raw("b", 4)}
	c := &stubAdapter{name: "c", results: raw("c", 9)}
	snaps := &recordingSnapshotter{}

	sel := NewSelector([]Adapter{a, b, c}, SearchOptions{MaxPages: 2}, snaps)
	got := sel.Select(context.Background(), browsertest.New(), "q")

	if got.Engine != "b" || len(got.Results) != 4 {
		t.Errorf("expected 4 results from b, got %q with %d", got.Engine, len(got.Results))
	}
	if c.callCount() != 0 {
		t.Errorf("expected engine c never invoked, got %d calls", c.callCount())
	}
	if len(snaps.engines) != 1 || snaps.engines[0] != "a" {
		t.Errorf("expected a snapshot for a only, got %v", snaps.engines)
	}
	if b.opts.MaxPages != 2 {
		t.Errorf("expected search options forwarded, got %+v", b.opts)
	}
}

func TestSelect_ErrorFallsThrough(t *testing.T) {
	a := &stubAdapter{name: "a", err: ErrSessionUnavailable}
	b := &stubAdapter{name: "b", results: raw("b", 1)}

	got := NewSelector([]Adapter{a, b}, SearchOptions{}, nil).Select(context.Background(), browsertest.New(), "q")
	if got.Engine != "b" {
		t.Errorf("expected fallback to b, got %q", got.Engine)
	}
}

func TestSelect_PartialResultsWithErrorAreKept(t *testing.T) {
	a := &stubAdapter{name: "a", results: raw("a", 2), err: ErrSessionUnavailable}
	b := &stubAdapter{name: "b", results: raw("b", 5)}

	got := NewSelector([]Adapter{a, b}, SearchOptions{}, nil).Select(context.Background(), browsertest.New(), "q")
	if got.Engine != "a" || len(got.Results) != 2 {
		t.Errorf("expected partial results from a, got %q with %d", got.Engine, len(got.Results))
	}
	if b.callCount() != 0 {
		t.Error("expected b not invoked")
	}
}

func TestSelect_AllEmpty(t *testing.T) {
	a := &stubAdapter{name: "a"}
	b := &stubAdapter{name: "b"}
	snaps := &recordingSnapshotter{}

	got := NewSelector([]Adapter{a, b}, SearchOptions{}, snaps).Select(context.Background(), browsertest.New(), "q")
	if got.Engine != "" || len(got.Results) != 0 {
		t.Errorf("expected empty selection, got %+v", got)
	}
	if len(snaps.engines) != 2 {
		t.Errorf("expected a snapshot per failed engine, got %v", snaps.engines)
	}
}

func TestSelect_StopsWhenBrowserClosed(t *testing.T) {
	a := &stubAdapter{name: "a", err: browser.ErrClosed}
	b := &stubAdapter{name: "b", results: raw("b", 1)}

	got := NewSelector([]Adapter{a, b}, SearchOptions{}, nil).Select(context.Background(), browsertest.New(), "q")
	if got.Engine != "" {
		t.Errorf("expected empty selection after browser close, got %q", got.Engine)
	}
	if b.callCount() != 0 {
		t.Error("expected no further engines tried after browser close")
	}
}

func TestSelect_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &stubAdapter{name: "a", results: raw("a", 1)}

	got := NewSelector([]Adapter{a}, SearchOptions{}, nil).Select(ctx, browsertest.New(), "q")
	if got.Engine != "" || a.callCount() != 0 {
		t.Errorf("expected no engine run on cancelled context, got %+v", got)
	}
}

// --- Snapshot Tests ---

func TestDebugSnapshotter_Screenshot(t *testing.T) {
	dir := t.TempDir()
	a := &stubAdapter{name: "a"}
	b := browsertest.New()
	b.Pages[a.SearchURL("q", 0)] = browsertest.Page{HTML: "<html></html>"}

	snap := NewDebugSnapshotter(dir)
	snap.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := snap.Snapshot(context.Background(), b, a, "q"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	st := b.Stats()
	if len(st.Screenshots) != 1 || st.Screenshots[0] != filepath.Join(dir, "a-20250102T030405.000.png") {
		t.Errorf("unexpected screenshots %v", st.Screenshots)
	}
	assertSessionsBalanced(t, b)
}

func TestDebugSnapshotter_FallsBackToHTML(t *testing.T) {
	srvHTML := "<html><body>blocked page</body></html>"
	dir := t.TempDir()
	a := &stubAdapter{name: "a"}

	snap := NewDebugSnapshotter(dir)
	b := &noScreenshotBrowser{Browser: browsertest.New()}
	b.Browser.Pages[a.SearchURL("q", 0)] = browsertest.Page{HTML: srvHTML}

	if err := snap.Snapshot(context.Background(), b, a, "q"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".html") {
		t.Fatalf("expected one html snapshot, got %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if !strings.Contains(string(data), "blocked page") {
		t.Errorf("unexpected snapshot contents %q", data)
	}
}

// noScreenshotBrowser mimics the static provider, which cannot screenshot.
type noScreenshotBrowser struct {
	*browsertest.Browser
}

func (b *noScreenshotBrowser) NewSession(ctx context.Context) (browser.Session, error) {
	s, err := b.Browser.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return noScreenshotSession{s}, nil
}

type noScreenshotSession struct {
	browser.Session
}

func (noScreenshotSession) Screenshot(context.Context, string) error {
	return fmt.Errorf("%w: screenshot", browser.ErrUnsupported)
}
