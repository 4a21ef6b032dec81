package engine

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// DefaultOrder is the fallback sequence used when no engines are configured.
var DefaultOrder = []string{"bing", "duck", "brave", "mojeek", "ecosia"}

// ecosiaConsent dismisses the cookie notice if present.
const ecosiaConsent = `(() => {
  const btn = document.querySelector('button.cookie-notice__accept');
  if (!btn) return false;
  btn.click();
  return true;
})()`

var descriptors = map[string]Descriptor{
	"bing": {
		Name:         "bing",
		BaseURL:      "https://www.bing.com/search",
		QueryParam:   "q",
		OffsetParam:  "first",
		FirstOffset:  1,
		Stride:       10,
		MaxPages:     10,
		WaitSelector: "#b_results",
		Selectors: Selectors{
			Block:   "li.b_algo",
			Title:   "h2",
			Link:    "h2 a",
			Snippet: ".b_caption p",
			NoResults: []string{
				"there are no results for",
			},
		},
	},
	"duck": {
		Name:       "duck",
		BaseURL:    "https://html.duckduckgo.com/html/",
		QueryParam: "q",
		// The html endpoint paginates through form posts only.
		MaxPages:     1,
		WaitSelector: "body",
		Selectors: Selectors{
			Block:     ".result",
			Title:     ".result__a",
			Link:      ".result__a",
			Snippet:   ".result__snippet",
			NoResults: []string{"no results."},
			Unwrap:    unwrapDuck,
		},
	},
	"brave": {
		Name:         "brave",
		BaseURL:      "https://search.brave.com/search",
		QueryParam:   "q",
		OffsetParam:  "offset",
		Stride:       10,
		MaxPages:     20,
		WaitSelector: "#results",
		Selectors: Selectors{
			Block:     "#results > .snippet[data-type=\"web\"], ul#results > li",
			Title:     ".title, h2",
			Link:      "a",
			Snippet:   ".snippet-description, p",
			NoResults: []string{"didn't find any results", "not many great matches"},
		},
	},
	"mojeek": {
		Name:         "mojeek",
		BaseURL:      "https://www.mojeek.com/search",
		QueryParam:   "q",
		OffsetParam:  "s",
		Stride:       10,
		MaxPages:     10,
		WaitSelector: ".results",
		Selectors: Selectors{
			Block:     ".results-standard li, .result",
			Title:     "h2",
			Link:      "h2 a",
			Snippet:   "p.s, p",
			NoResults: []string{"no pages found matching"},
		},
	},
	"ecosia": {
		Name:         "ecosia",
		BaseURL:      "https://www.ecosia.org/search",
		QueryParam:   "q",
		OffsetParam:  "p",
		Stride:       1,
		MaxPages:     20,
		WaitSelector: `div[data-test-id="mainline-result-web"]`,
		Prepare:      ecosiaConsent,
		Selectors: Selectors{
			Block:   `div[data-test-id="mainline-result-web"]`,
			Title:   ".result-title",
			Link:    "a.result-title, .result-title a, a",
			Snippet: "p",
		},
	},
}

// unwrapDuck follows the //duckduckgo.com/l/?uddg= redirect wrapper.
func unwrapDuck(u *url.URL) *url.URL {
	if !strings.HasSuffix(u.Hostname(), "duckduckgo.com") || !strings.HasPrefix(u.Path, "/l/") {
		return nil
	}
	dest, err := url.Parse(u.Query().Get("uddg"))
	if err != nil || !dest.IsAbs() {
		return nil
	}
	return dest
}

// Names lists every supported engine, sorted.
func Names() []string {
	names := make([]string, 0, len(descriptors))
	for n := range descriptors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	d, ok := descriptors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return d, nil
}

// Resolve builds adapters for names in order, skipping duplicates. An empty
// list resolves DefaultOrder.
func Resolve(names []string, opts Options) ([]Adapter, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	seen := make(map[string]bool, len(names))
	adapters := make([]Adapter, 0, len(names))
	for _, n := range names {
		d, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		adapters = append(adapters, New(d, opts))
	}
	return adapters, nil
}
