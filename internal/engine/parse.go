package engine

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

// Selectors locate organic results inside a results page.
type Selectors struct {
	// Block matches one organic result.
	Block   string
	Title   string
	Link    string
	Snippet string
	// NoResults are lowercase phrases the engine prints for an empty page.
	NoResults []string
	// Unwrap rewrites an engine redirect link to its destination.
	Unwrap func(*url.URL) *url.URL
}

// Page is a parsed results page.
type Page struct {
	Results []prospect.RawResult
	// Challenge names the anti-bot page kind; empty for a real page.
	Challenge string
	// NoResults is the engine's empty-page phrase found on a page without
	// results. Empty when no block matched and no phrase was printed.
	NoResults string
}

// Parse extracts organic results from html served at pageURL. A page that
// yields results is never reported as a challenge or an empty page.
func Parse(desc Descriptor, html, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, err
	}

	sel := desc.Selectors
	blocks := doc.Find(sel.Block)

	var page Page
	seen := make(map[string]bool)
	blocks.Each(func(_ int, s *goquery.Selection) {
		titleSel := s
		if sel.Title != "" {
			titleSel = s.Find(sel.Title).First()
		}
		linkSel := s.Find(sel.Link).First()

		href, ok := linkSel.Attr("href")
		if !ok {
			return
		}
		link := resolveLink(base, href, sel.Unwrap)
		if link == "" || seen[link] {
			return
		}

		t := collapse(titleSel.Text())
		if t == "" {
			t = collapse(linkSel.Text())
		}
		if t == "" {
			return
		}
		seen[link] = true

		var snippet string
		if sel.Snippet != "" {
			snippet = collapse(s.Find(sel.Snippet).First().Text())
		}

		page.Results = append(page.Results, prospect.RawResult{
			Title:        t,
			Link:         link,
			Snippet:      snippet,
			SourceEngine: desc.Name,
		})
	})
	if len(page.Results) > 0 {
		return page, nil
	}

	// Organic results may quote challenge or empty-page phrases, so the
	// markers are only looked for outside them.
	blocks.Remove()
	rest, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return Page{}, err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if kind := DetectChallenge(title, rest); kind != "" {
		return Page{Challenge: kind}, nil
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, marker := range sel.NoResults {
		if strings.Contains(text, marker) {
			return Page{NoResults: marker}, nil
		}
	}
	return Page{}, nil
}

// resolveLink makes href absolute against base and keeps only http(s)
// destinations.
func resolveLink(base *url.URL, href string, unwrap func(*url.URL) *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if unwrap != nil {
		if dest := unwrap(u); dest != nil {
			u = dest
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
