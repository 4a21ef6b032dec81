package engine

import "strings"

// DetectChallenge returns the kind of anti-bot page html is, or "" for an
// ordinary document. Title and body are matched case-insensitively. Parse
// passes html with the organic result blocks already removed.
func DetectChallenge(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	switch {
	case strings.Contains(titleLower, "just a moment"),
		strings.Contains(titleLower, "attention required"),
		strings.Contains(htmlLower, "cf-challenge"),
		strings.Contains(htmlLower, "cf_chl_opt"):
		return "cloudflare"

	case strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile"),
		strings.Contains(htmlLower, "cf-turnstile"):
		return "cloudflare-turnstile"

	case strings.Contains(htmlLower, "hcaptcha.com"),
		strings.Contains(htmlLower, "h-captcha"):
		return "hcaptcha"

	case strings.Contains(htmlLower, "google.com/recaptcha"),
		strings.Contains(htmlLower, "g-recaptcha"):
		return "recaptcha"

	// Search engines serve these instead of results when rate limited.
	case strings.Contains(htmlLower, "unusual traffic"),
		strings.Contains(htmlLower, "are you a robot"),
		strings.Contains(htmlLower, "robot or human"),
		strings.Contains(titleLower, "access denied"),
		strings.Contains(titleLower, "bot detection"):
		return "anti-bot"
	}
	return ""
}
