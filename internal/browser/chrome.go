package browser

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/prospector/internal/logger"
)

// DefaultUserAgent is presented by the browser process itself. Sessions
// usually override it with a rotated fingerprint.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns the first Chrome or Chromium binary found on PATH
// or in a well-known install location, or "" when there is none.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// ChromeConfig configures the chromedp provider.
type ChromeConfig struct {
	Headless  bool
	ExecPath  string // auto-detected when empty
	UserAgent string
	Window    Viewport
	NoSandbox bool
}

// DefaultChromeConfig returns a headless configuration with a desktop window.
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		Headless:  true,
		UserAgent: DefaultUserAgent,
		Window:    Viewport{Width: 1920, Height: 1080},
		NoSandbox: true,
	}
}

// ChromeLauncher starts one Chrome process per Launch call.
type ChromeLauncher struct {
	cfg ChromeConfig
}

// NewChromeLauncher returns a launcher for headless Chrome.
func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	def := DefaultChromeConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		cfg.Window = def.Window
	}
	return &ChromeLauncher{cfg: cfg}
}

func (l *ChromeLauncher) Name() string { return "chrome" }

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", "en-US,en"),
		chromedp.WindowSize(int(l.cfg.Window.Width), int(l.cfg.Window.Height)),
		chromedp.UserAgent(l.cfg.UserAgent),
	)

	path := l.cfg.ExecPath
	if path == "" {
		path = FindChromePath()
	}
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

// Launch starts Chrome and waits until the first target is attached.
// The browser outlives ctx; it is stopped only by Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// the first Run allocates the process; it must use browserCtx itself or
	// the browser would die with a derived context
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	logger.Debug("chrome launched", "headless", l.cfg.Headless)

	return &chromeBrowser{
		ctx:         browserCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeBrowser) NewSession(ctx context.Context) (Session, error) {
	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.ctx)
	// Run with no actions opens the tab
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		if b.ctx.Err() != nil {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromeSession{browser: b, ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts Chrome down and waits for the process to exit.
// It is safe to call more than once; later calls return the first result.
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancelAlloc()
		if b.closeErr != nil {
			b.closeErr = fmt.Errorf("close chrome: %w", b.closeErr)
		}
	})
	return b.closeErr
}
