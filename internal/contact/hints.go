package contact

import (
	"net/url"
	"regexp"
	"strings"
)

var jobKeywords = []string{"CEO", "Founder", "Director", "Manager", "Consultant", "Engineer", "Developer", "President"}

// "Maria Santos, Marketing Director" / "John Dela Cruz is the IT Manager"
var personPattern = regexp.MustCompile(
	`([A-Z][a-z]+(?: [A-Z][a-z]+)+)[,\s]+(?:(?:is|serves as|works as|has been)\s+)?(?:the\s+)?(?:[A-Za-z]+\s+)?(CEO|Founder|Manager|Director|Consultant|Engineer|Developer|President)\b`)

// NameFromTitle returns the part of a page title before the first '|' or '-'.
func NameFromTitle(title string) string {
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	if i := strings.Index(title, "-"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// CompanyFromTitleOrLink guesses an organization name. The link host wins;
// otherwise the second segment of a "Person - Company" style title is used.
func CompanyFromTitleOrLink(title, link string) string {
	if u, err := url.Parse(link); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	parts := strings.FieldsFunc(title, func(r rune) bool { return r == '-' || r == '|' })
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// JobTitleFromSnippet returns the first known job keyword mentioned in snippet.
func JobTitleFromSnippet(snippet string) string {
	lower := strings.ToLower(snippet)
	for _, kw := range jobKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

// Person is a named individual with a role, as found in running text.
type Person struct {
	Name  string
	Title string
}

// PersonFromText finds the first "Firstname Lastname, Role" mention in text.
func PersonFromText(text string) (Person, bool) {
	m := personPattern.FindStringSubmatch(text)
	if m == nil {
		return Person{}, false
	}
	return Person{Name: strings.TrimSpace(m[1]), Title: strings.TrimSpace(m[2])}, true
}
