package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/prospector/internal/browser"
	"github.com/jmylchreest/prospector/internal/browser/browsertest"
	"github.com/jmylchreest/prospector/pkg/prospect"
)

// resultsPage renders a bing-style results page with n results whose links
// carry the given tag.
func resultsPage(tag string, n int) string {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>results</title></head><body><ol id="b_results">`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `<li class="b_algo"><h2><a href="https://%s-%d.example.com/">%s result %d</a></h2><div class="b_caption"><p>snippet %d</p></div></li>`,
			tag, i, tag, i, i)
	}
	sb.WriteString(`</ol></body></html>`)
	return sb.String()
}

const emptyPage = `<html><head><title>results</title></head><body><ol id="b_results"></ol></body></html>`

// recorder counts sleeps instead of waiting.
type recorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sleeps)
}

func testEngine(t *testing.T, rec *recorder, maxPages int) *Engine {
	t.Helper()
	desc := mustLookup(t, "bing")
	desc.MaxPages = maxPages
	return New(desc, Options{
		Attempts: 3,
		Backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		Sleep:    rec.sleep,
	})
}

// pageServer serves scripted responses per page URL; each call pops the
// next response, repeating the last one.
type pageServer struct {
	mu    sync.Mutex
	pages map[string][]browsertest.Page
	hits  map[string]int
}

func newPageServer() *pageServer {
	return &pageServer{pages: map[string][]browsertest.Page{}, hits: map[string]int{}}
}

func (s *pageServer) set(url string, pages ...browsertest.Page) {
	s.pages[url] = pages
}

func (s *pageServer) handle(url string) browsertest.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.pages[url]
	if !ok {
		return browsertest.Page{HTML: emptyPage}
	}
	i := s.hits[url]
	s.hits[url]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i]
}

func (s *pageServer) hitCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[url]
}

func assertSessionsBalanced(t *testing.T, b *browsertest.Browser) {
	t.Helper()
	st := b.Stats()
	if st.SessionsOpened != st.SessionsClosed {
		t.Errorf("expected every session closed: opened %d, closed %d", st.SessionsOpened, st.SessionsClosed)
	}
}

// --- Pagination Tests ---

func TestSearch_PaginatesUntilEmpty(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 10)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: resultsPage("p0", 3)})
	srv.set(e.SearchURL("q", 1), browsertest.Page{HTML: resultsPage("p1", 2)})
	srv.set(e.SearchURL("q", 2), browsertest.Page{HTML: emptyPage})

	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if got := srv.hitCount(e.SearchURL("q", 2)); got != 1 {
		t.Errorf("expected empty page fetched once, got %d", got)
	}
	if got := srv.hitCount(e.SearchURL("q", 3)); got != 0 {
		t.Errorf("expected pagination to stop after empty page, page 3 fetched %d times", got)
	}
	if rec.count() != 0 {
		t.Errorf("expected no backoff for an empty page, got %d sleeps", rec.count())
	}
	assertSessionsBalanced(t, b)
	if st := b.Stats(); st.SessionsOpened != 3 {
		t.Errorf("expected one session per page, got %d", st.SessionsOpened)
	}
}

func TestSearch_PageCap(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 10)
	srv := newPageServer()
	for p := 0; p < 5; p++ {
		srv.set(e.SearchURL("q", p), browsertest.Page{HTML: resultsPage(fmt.Sprintf("p%d", p), 2)})
	}
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{MaxPages: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 results from 2 pages, got %d", len(results))
	}
	if got := srv.hitCount(e.SearchURL("q", 2)); got != 0 {
		t.Errorf("expected page cap respected, page 2 fetched %d times", got)
	}
}

func TestSearch_InlineFilter(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 1)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: resultsPage("keep", 4)})
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{
		Filter: func(r prospect.RawResult) bool { return !strings.Contains(r.Link, "keep-1") },
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results after filter, got %d", len(results))
	}
	for _, r := range results {
		if strings.Contains(r.Link, "keep-1") {
			t.Errorf("filtered result leaked: %s", r.Link)
		}
	}
}

// --- Retry Tests ---

func TestSearch_ChallengeRetriesThenSucceeds(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 1)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0),
		browsertest.Page{HTML: fixture(t, "challenge.html")},
		browsertest.Page{HTML: resultsPage("ok", 2)},
	)
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results after retry, got %d", len(results))
	}
	if rec.count() != 1 || rec.sleeps[0] != time.Second {
		t.Errorf("expected one backoff of 1s, got %v", rec.sleeps)
	}
	assertSessionsBalanced(t, b)
}

func TestSearch_ResultsMentioningCaptchaAreNotRetried(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 1)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: fixture(t, "bing_quoting_markers.html")})
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	if rec.count() != 0 {
		t.Errorf("expected no backoff, got %v", rec.sleeps)
	}
	if got := srv.hitCount(e.SearchURL("q", 0)); got != 1 {
		t.Errorf("expected page fetched once, got %d", got)
	}
}

func TestSearch_NavigationErrorRetries(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 1)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0),
		browsertest.Page{Err: browser.ErrTimeout},
		browsertest.Page{Err: browser.ErrNavigation},
		browsertest.Page{HTML: resultsPage("ok", 1)},
	)
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result on third attempt, got %d", len(results))
	}
	if rec.count() != 2 || rec.sleeps[1] != 2*time.Second {
		t.Errorf("expected backoffs [1s 2s], got %v", rec.sleeps)
	}
}

func TestSearch_RetriesExhaustedKeepsPartial(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 5)
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: resultsPage("first", 3)})
	srv.set(e.SearchURL("q", 1), browsertest.Page{HTML: fixture(t, "challenge.html")})
	b := browsertest.New()
	b.Handler = srv.handle

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if err != nil {
		t.Fatalf("expected nil error on exhausted retries, got %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected partial results from page 0, got %d", len(results))
	}
	if got := srv.hitCount(e.SearchURL("q", 1)); got != 3 {
		t.Errorf("expected 3 attempts on challenged page, got %d", got)
	}
	if got := srv.hitCount(e.SearchURL("q", 2)); got != 0 {
		t.Errorf("expected pagination to stop, page 2 fetched %d times", got)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 backoffs between 3 attempts, got %d", rec.count())
	}
	assertSessionsBalanced(t, b)
}

// --- Failure Tests ---

func TestSearch_SessionUnavailable(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 3)
	b := browsertest.New()
	b.NewSessionErr = errors.New("target crashed")

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if rec.count() != 0 {
		t.Errorf("expected no retries when sessions cannot open, got %d", rec.count())
	}
}

func TestSearch_BrowserClosedMidSearch(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 5)
	b := browsertest.New()
	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: resultsPage("first", 2)})
	b.Handler = func(url string) browsertest.Page {
		if url == e.SearchURL("q", 1) {
			b.Close()
		}
		return srv.handle(url)
	}

	results, err := e.Search(context.Background(), b, "q", SearchOptions{})
	if !errors.Is(err, browser.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected partial results, got %d", len(results))
	}
	if rec.count() != 0 {
		t.Errorf("expected no retries against a closed browser, got %d", rec.count())
	}
	assertSessionsBalanced(t, b)
}

func TestSearch_ContextCancelled(t *testing.T) {
	rec := &recorder{}
	e := testEngine(t, rec, 3)
	b := browsertest.New()
	b.Handler = func(string) browsertest.Page { return browsertest.Page{Block: true} }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Search(ctx, b, "q", SearchOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	assertSessionsBalanced(t, b)
}

// --- Stealth Tests ---

type countingStealth struct {
	mu sync.Mutex
	n  int
}

func (c *countingStealth) Apply(ctx context.Context, s browser.Session) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return s.SetFingerprint(ctx, browser.Fingerprint{UserAgent: "test"})
}

func TestSearch_StealthPerSession(t *testing.T) {
	desc := mustLookup(t, "bing")
	desc.MaxPages = 3
	st := &countingStealth{}
	e := New(desc, Options{Sleep: (&recorder{}).sleep, Stealth: st})

	srv := newPageServer()
	srv.set(e.SearchURL("q", 0), browsertest.Page{HTML: resultsPage("a", 1)})
	srv.set(e.SearchURL("q", 1), browsertest.Page{HTML: resultsPage("b", 1)})
	b := browsertest.New()
	b.Handler = srv.handle

	if _, err := e.Search(context.Background(), b, "q", SearchOptions{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if st.n != 3 {
		t.Errorf("expected stealth applied to each of 3 sessions, got %d", st.n)
	}
	if got := b.Stats().Fingerprints; got != 3 {
		t.Errorf("expected 3 fingerprints, got %d", got)
	}
}

// --- Backoff Tests ---

func TestJitterBackoff(t *testing.T) {
	backoff := JitterBackoff(time.Second, 500*time.Millisecond)
	for attempt := 1; attempt <= 3; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			lo := time.Duration(attempt) * time.Second
			hi := lo + time.Duration(attempt)*500*time.Millisecond
			if d < lo || d >= hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", attempt, d, lo, hi)
			}
		}
	}
	if d := JitterBackoff(time.Second, 0)(2); d != 2*time.Second {
		t.Errorf("expected 2s without jitter, got %v", d)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
