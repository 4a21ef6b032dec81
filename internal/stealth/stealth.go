// Package stealth builds per-session browser fingerprints that make each tab
// look like an ordinary desktop Chrome: a rotated user agent with a matching
// navigator.platform, a realistic viewport, browser-like request headers and
// a navigator patch script run before any page script.
package stealth

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/prospector/internal/browser"
)

// DefaultUserAgents are desktop Chrome builds. Non-Chrome agents are left out
// because the injected script impersonates Chrome internals.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// DefaultViewports are common desktop resolutions.
var DefaultViewports = []browser.Viewport{
	{Width: 1920, Height: 1080},
	{Width: 1536, Height: 864},
	{Width: 1440, Height: 900},
	{Width: 1366, Height: 768},
	{Width: 1280, Height: 800},
}

// Config controls fingerprint generation.
type Config struct {
	UserAgents []string
	Viewports  []browser.Viewport
	Languages  []string
	Referer    string
	// Seed makes the rotation reproducible. Zero seeds from the runtime.
	Seed uint64
}

// DefaultConfig returns the built-in identity pool.
func DefaultConfig() Config {
	return Config{
		UserAgents: DefaultUserAgents,
		Viewports:  DefaultViewports,
		Languages:  []string{"en-US", "en"},
		Referer:    "https://www.google.com/",
	}
}

// Pool hands out randomized fingerprints. It is safe for concurrent use.
type Pool struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPool fills unset fields of cfg from DefaultConfig.
func NewPool(cfg Config) *Pool {
	def := DefaultConfig()
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = def.UserAgents
	}
	if len(cfg.Viewports) == 0 {
		cfg.Viewports = def.Viewports
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = def.Languages
	}
	if cfg.Referer == "" {
		cfg.Referer = def.Referer
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Pool{cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns a fresh fingerprint.
func (p *Pool) Next() browser.Fingerprint {
	p.mu.Lock()
	ua := p.cfg.UserAgents[p.rng.IntN(len(p.cfg.UserAgents))]
	vp := p.cfg.Viewports[p.rng.IntN(len(p.cfg.Viewports))]
	cores := []int{4, 8, 12, 16}[p.rng.IntN(4)]
	p.mu.Unlock()

	platform := PlatformFor(ua)
	acceptLang := AcceptLanguage(p.cfg.Languages)

	return browser.Fingerprint{
		UserAgent:      ua,
		Platform:       platform,
		AcceptLanguage: acceptLang,
		Viewport:       vp,
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           acceptLang,
			"Referer":                   p.cfg.Referer,
			"Upgrade-Insecure-Requests": "1",
		},
		Script: Script(platform, p.cfg.Languages, cores),
	}
}

// Apply gives s a fresh fingerprint. It must run before the first navigation.
func (p *Pool) Apply(ctx context.Context, s browser.Session) error {
	return s.SetFingerprint(ctx, p.Next())
}

// PlatformFor returns the navigator.platform value consistent with ua.
func PlatformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}

// AcceptLanguage renders languages as an Accept-Language header with
// descending q-values: en-US,en;q=0.9.
func AcceptLanguage(langs []string) string {
	var sb strings.Builder
	for i, l := range langs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l)
		if i > 0 {
			q := 10 - i
			if q < 1 {
				q = 1
			}
			sb.WriteString(";q=0.")
			sb.WriteByte(byte('0' + q))
		}
	}
	return sb.String()
}

// Script returns the navigator patch for the given identity.
func Script(platform string, languages []string, cores int) string {
	plat, _ := json.Marshal(platform)
	langs, _ := json.Marshal(languages)
	return strings.NewReplacer(
		"__PLATFORM__", string(plat),
		"__LANGUAGES__", string(langs),
		"__CORES__", strconv.Itoa(cores),
	).Replace(navigatorPatch)
}

const navigatorPatch = `(() => {
  const define = (obj, key, value) => {
    try { Object.defineProperty(obj, key, { get: () => value, configurable: true }); } catch (e) {}
  };

  define(navigator, 'webdriver', undefined);
  try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}

  define(navigator, 'platform', __PLATFORM__);
  define(navigator, 'languages', Object.freeze(__LANGUAGES__));
  define(navigator, 'hardwareConcurrency', __CORES__);
  if (!navigator.deviceMemory) define(navigator, 'deviceMemory', 8);

  const plugins = ['Chrome PDF Plugin', 'Chrome PDF Viewer', 'Native Client'].map((name) => ({
    name, filename: name.toLowerCase().replace(/ /g, '-'), description: '', length: 1,
  }));
  define(navigator, 'plugins', Object.assign(plugins, {
    item: (i) => plugins[i] || null,
    namedItem: (n) => plugins.find((p) => p.name === n) || null,
    refresh: () => {},
  }));

  if (!window.chrome) window.chrome = {};
  if (!window.chrome.runtime) {
    window.chrome.runtime = { connect: () => {}, sendMessage: () => {}, get id() { return undefined; } };
  }

  if (window.Permissions && Permissions.prototype.query) {
    const query = Permissions.prototype.query;
    Permissions.prototype.query = function (params) {
      if (params && params.name === 'notifications') {
        return Promise.resolve({ state: Notification.permission });
      }
      return query.call(this, params);
    };
  }

  const spoofGL = (proto) => {
    if (!proto) return;
    const getParameter = proto.getParameter;
    proto.getParameter = function (param) {
      if (param === 37445) return 'Intel Inc.';
      if (param === 37446) return 'Intel Iris OpenGL Engine';
      return getParameter.call(this, param);
    };
  };
  try { spoofGL(window.WebGLRenderingContext && WebGLRenderingContext.prototype); } catch (e) {}
  try { spoofGL(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype); } catch (e) {}
})();`
