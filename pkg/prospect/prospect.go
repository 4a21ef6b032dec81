// Package prospect defines the records that flow through the
// search → filter → enrich pipeline and the response returned to callers.
package prospect

import (
	"net/url"
	"strings"
)

// SearchQuery is the user's request. It is passed by value so a running job
// cannot observe later modifications.
type SearchQuery struct {
	Text     string `json:"q" validate:"required"`
	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (q SearchQuery) Normalize() SearchQuery {
	return SearchQuery{
		Text:     strings.TrimSpace(q.Text),
		Industry: strings.TrimSpace(q.Industry),
		Region:   strings.TrimSpace(q.Region),
	}
}

// RawResult is one organic result harvested from a search engine page.
// Title and Link are always non-empty; Link is absolute.
type RawResult struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	SourceEngine string `json:"sourceEngine"`
}

// Host returns the lower-cased hostname of the result link, or "" when the
// link does not parse.
func (r RawResult) Host() string {
	u, err := url.Parse(r.Link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Prospect is a RawResult enriched with data read from the linked page.
type Prospect struct {
	Title            string   `json:"title" yaml:"title"`
	Link             string   `json:"link" yaml:"link"`
	Snippet          string   `json:"snippet" yaml:"snippet"`
	SourceEngine     string   `json:"sourceEngine,omitempty" yaml:"sourceEngine,omitempty"`
	Emails           []string `json:"emails" yaml:"emails"`
	Phones           []string `json:"phones" yaml:"phones"`
	ExtractedContent string   `json:"extractedContent" yaml:"extractedContent"`
	PageTitle        string   `json:"pageTitle" yaml:"pageTitle"`
	PageHeading      string   `json:"pageHeading" yaml:"pageHeading"`
	MetaDescription  string   `json:"metaDescription" yaml:"metaDescription"`

	Company      string `json:"company,omitempty" yaml:"company,omitempty"`
	ContactName  string `json:"contactName,omitempty" yaml:"contactName,omitempty"`
	ContactTitle string `json:"contactTitle,omitempty" yaml:"contactTitle,omitempty"`
}

// FromRaw seeds a Prospect with the search result fields and empty contact
// sets.
func FromRaw(r RawResult) Prospect {
	return Prospect{
		Title:        r.Title,
		Link:         r.Link,
		Snippet:      r.Snippet,
		SourceEngine: r.SourceEngine,
		Emails:       []string{},
		Phones:       []string{},
	}
}

// Response is the result of one scrape job.
type Response struct {
	JobID      string     `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	Query      string     `json:"query" yaml:"query"`
	Industry   string     `json:"industry,omitempty" yaml:"industry,omitempty"`
	Region     string     `json:"region,omitempty" yaml:"region,omitempty"`
	EngineUsed *string    `json:"engineUsed" yaml:"engineUsed"`
	Engine     *string    `json:"engine" yaml:"engine"`
	TotalFound int        `json:"totalFound" yaml:"totalFound"`
	Status     string     `json:"status,omitempty" yaml:"status,omitempty"`
	Results    []Prospect `json:"results" yaml:"results"`
}

// NewResponse builds a response for q. An empty engine is reported as null.
func NewResponse(q SearchQuery, engine string, results []Prospect) *Response {
	if results == nil {
		results = []Prospect{}
	}
	resp := &Response{
		Query:      q.Text,
		Industry:   q.Industry,
		Region:     q.Region,
		TotalFound: len(results),
		Results:    results,
	}
	if engine != "" {
		resp.EngineUsed = &engine
		resp.Engine = &engine
	}
	return resp
}
