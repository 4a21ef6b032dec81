// Package contact pulls email addresses and phone numbers out of free text.
//
// Both patterns are deliberately loose. Search snippets and scraped page
// bodies are noisy and a missed contact costs more than a spurious one, so
// callers should expect the occasional date or reference number in Phones.
package contact

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)

	// optional +, optional country prefix, optional (area), then digit groups
	// separated by space, dash or dot
	phonePattern = regexp.MustCompile(`\+?(?:\d{1,4}[\s.\-]?)?(?:\(\d{1,4}\)[\s.\-]?)?\d{1,4}(?:[\s.\-]?\d{2,4}){2,}`)
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Contacts holds normalized, de-duplicated contact details in first-seen order.
type Contacts struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// Empty reports whether no contact was found.
func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0
}

// Extract returns every email and phone number found in text.
func Extract(text string) Contacts {
	return Contacts{
		Emails: Emails(text),
		Phones: Phones(text),
	}
}

// Emails returns lower-cased unique email addresses.
func Emails(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, m := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(strings.TrimRight(m, "."))
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

// Phones returns unique normalized phone numbers.
func Phones(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, m := range phonePattern.FindAllString(text, -1) {
		phone, ok := NormalizePhone(m)
		if !ok {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		out = append(out, phone)
	}
	return out
}

// NormalizePhone strips every non-digit except a leading '+'.
// It reports false when the digit count is outside the plausible range.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	var sb strings.Builder
	if strings.HasPrefix(raw, "+") {
		sb.WriteByte('+')
	}
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			digits++
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", false
	}
	return sb.String(), true
}

// Merge returns extracted values that override base only when non-empty.
func Merge(base, extracted Contacts) Contacts {
	out := base
	if len(extracted.Emails) > 0 {
		out.Emails = extracted.Emails
	}
	if len(extracted.Phones) > 0 {
		out.Phones = extracted.Phones
	}
	return out
}
