package relevance

import (
	"reflect"
	"sync"
	"testing"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

func result(title, link, snippet string) prospect.RawResult {
	return prospect.RawResult{Title: title, Link: link, Snippet: snippet, SourceEngine: "bing"}
}

var sample = []prospect.RawResult{
	result("Acme SEO Agency London", "https://acme.co.uk", "Search engine optimisation for retail brands"),
	result("Best pizza in town", "https://pizza.example", "Wood fired pizza delivered"),
	result("SEO tips video", "https://www.youtube.com/watch?v=1", "Learn SEO agency secrets"),
	result("Digital Marketing Agency", "https://digital.example/about", "We are an seo-first agency in Manchester"),
	result("Marketing jobs", "https://m.facebook.com/groups/seo", "seo agency jobs"),
}

// --- Keyword Gate Tests ---

func TestApply_KeywordHalfRoundedUp(t *testing.T) {
	// three terms -> two must match
	got := Apply(sample, Criteria{Keyword: "seo agency manchester"})

	want := []prospect.RawResult{sample[0], sample[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", titles(want), titles(got))
	}
}

func TestApply_KeywordCaseInsensitive(t *testing.T) {
	got := Apply(sample, Criteria{Keyword: "PIZZA"})
	if len(got) != 1 || got[0].Title != "Best pizza in town" {
		t.Errorf("expected pizza result, got %v", titles(got))
	}
}

func TestApply_SingleTermMustMatch(t *testing.T) {
	got := Apply(sample, Criteria{Keyword: "plumbing"})
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", titles(got))
	}
}

// --- Facet Tests ---

func TestApply_IndustryAndRegion(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"industry only", Criteria{Industry: "Marketing"}, []string{"Digital Marketing Agency"}},
		{"region only", Criteria{Region: "london"}, []string{"Acme SEO Agency London"}},
		{"both must hold", Criteria{Industry: "seo", Region: "manchester"}, []string{"Digital Marketing Agency"}},
		{"no match", Criteria{Region: "paris"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(Apply(sample, tt.criteria))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// --- Blacklist Tests ---

func TestApply_EmptyCriteriaPassesNonBlacklisted(t *testing.T) {
	got := Apply(sample, Criteria{})
	want := []prospect.RawResult{sample[0], sample[1], sample[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", titles(want), titles(got))
	}
}

func TestBlocked(t *testing.T) {
	tests := []struct {
		link string
		want bool
	}{
		{"https://youtube.com/x", true},
		{"https://m.youtube.com/x", true},
		{"https://notyoutube.com/x", false},
		{"https://en.wikipedia.org/wiki/SEO", true},
		{"https://acme.io", false},
		{"not a url", true},
	}
	for _, tt := range tests {
		if got := Blocked(tt.link); got != tt.want {
			t.Errorf("Blocked(%q): expected %v, got %v", tt.link, tt.want, got)
		}
	}
}

// --- Property Tests ---

func TestApply_Idempotent(t *testing.T) {
	criteria := []Criteria{
		{},
		{Keyword: "seo agency"},
		{Keyword: "seo agency manchester", Industry: "marketing"},
		{Region: "london"},
	}
	for _, c := range criteria {
		once := Apply(sample, c)
		twice := Apply(once, c)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("criteria %+v: expected idempotent result, got %v then %v", c, titles(once), titles(twice))
		}
	}
}

func TestFilter_ConcurrentMatch(t *testing.T) {
	f := New(Criteria{Keyword: "seo agency"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !f.Match(sample[0]) {
				t.Error("expected match")
			}
		}()
	}
	wg.Wait()
}

func titles(rs []prospect.RawResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Title)
	}
	return out
}
