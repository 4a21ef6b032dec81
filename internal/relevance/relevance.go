// Package relevance decides which raw search results are worth enriching.
//
// Filtering is a pure function of the result and the criteria: it never
// re-orders its input and applying it twice yields the same output.
package relevance

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

// Blacklist lists hosts that never yield prospects: video, social and forum
// sites. Subdomains of an entry are blocked too.
var Blacklist = []string{
	"youtube.com",
	"youtu.be",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
	"twitter.com",
	"x.com",
	"pinterest.com",
	"reddit.com",
	"quora.com",
	"wikipedia.org",
	"vimeo.com",
}

// Criteria are the user-supplied relevance constraints. Empty fields do not
// constrain.
type Criteria struct {
	Keyword  string
	Industry string
	Region   string
}

// CriteriaFor builds criteria from a search query.
func CriteriaFor(q prospect.SearchQuery) Criteria {
	return Criteria{Keyword: q.Text, Industry: q.Industry, Region: q.Region}
}

// Filter evaluates results against a fixed set of criteria.
// It is safe for concurrent use.
type Filter struct {
	terms    []string
	required int
	industry string
	region   string

	mu      sync.Mutex
	matcher *search.Matcher
}

// New compiles c into a Filter.
func New(c Criteria) *Filter {
	terms := strings.Fields(c.Keyword)
	return &Filter{
		terms:    terms,
		required: (len(terms) + 1) / 2,
		industry: strings.TrimSpace(c.Industry),
		region:   strings.TrimSpace(c.Region),
		matcher:  search.New(language.English, search.IgnoreCase),
	}
}

// Apply filters results with c. The output preserves input order.
func Apply(results []prospect.RawResult, c Criteria) []prospect.RawResult {
	return New(c).Apply(results)
}

// Apply returns the results that pass, in input order.
func (f *Filter) Apply(results []prospect.RawResult) []prospect.RawResult {
	out := make([]prospect.RawResult, 0, len(results))
	for _, r := range results {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether r passes the blacklist, keyword, industry and region
// gates.
func (f *Filter) Match(r prospect.RawResult) bool {
	if Blocked(r.Link) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.required > 0 {
		hits := 0
		for _, term := range f.terms {
			if f.contains(r.Title, term) || f.contains(r.Snippet, term) {
				hits++
			}
		}
		if hits < f.required {
			return false
		}
	}
	if f.industry != "" && !f.contains(r.Title, f.industry) && !f.contains(r.Snippet, f.industry) {
		return false
	}
	if f.region != "" && !f.contains(r.Title, f.region) && !f.contains(r.Snippet, f.region) {
		return false
	}
	return true
}

func (f *Filter) contains(text, term string) bool {
	if text == "" {
		return false
	}
	start, _ := f.matcher.IndexString(text, term)
	return start >= 0
}

// Blocked reports whether link points at a blacklisted host. Links without a
// parseable host are blocked as well.
func Blocked(link string) bool {
	host := prospect.RawResult{Link: link}.Host()
	if host == "" {
		return true
	}
	for _, d := range Blacklist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
