package enrich

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// introLimit caps ExtractedContent when it comes from the readability
// fallback.
const introLimit = 500

// Page is what enrichment reads from a prospect's site.
type Page struct {
	Title           string
	Heading         string
	MetaDescription string
	// Intro is the first heading and paragraph, or the start of the main
	// article text when the page has neither.
	Intro string
	// Body is the visible text, whitespace collapsed.
	Body string
}

// ParsePage extracts page metadata and visible text from html.
func ParsePage(html, link string, maxBody uint64) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, err
	}

	var p Page
	p.Title = collapse(doc.Find("title").First().Text())
	p.Heading = collapse(doc.Find("h1").First().Text())
	if desc, ok := doc.Find(`meta[name="description"], meta[property="og:description"]`).First().Attr("content"); ok {
		p.MetaDescription = collapse(desc)
	}

	firstP := collapse(doc.Find("p").First().Text())
	p.Intro = strings.TrimSpace(p.Heading + " " + firstP)

	body := doc.Find("body")
	body.Find("script, style, noscript, template").Remove()
	p.Body = truncate(collapse(body.Text()), int(maxBody))

	if p.Intro == "" {
		p.Intro = truncate(mainText(html, link), introLimit)
	}
	return p, nil
}

// mainText runs readability over html, returning "" when no article is found.
func mainText(html, link string) string {
	base, err := url.Parse(link)
	if err != nil {
		base = nil
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), base)
	if err != nil || article.Node == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return collapse(buf.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	s = s[:n]
	for i := 0; i < utf8.UTFMax-1 && len(s) > 0; i++ {
		if r, size := utf8.DecodeLastRuneInString(s); r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
