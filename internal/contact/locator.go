package contact

import (
	"net/url"
	"strings"
)

// DefaultContactKeywords drive the locator when none are configured.
var DefaultContactKeywords = []string{"contact", "contact-us", "get-in-touch", "support"}

// Locator finds the most likely contact page among a document's
// anchors.
type Locator struct {
	keywords []string
}

// NewLocator builds a Locator. Keywords are trimmed, lowercased and
// de-duplicated; an empty list falls back to DefaultContactKeywords.
func NewLocator(keywords []string) *Locator {
	cleaned := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		cleaned = append(cleaned, kw)
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultContactKeywords...)
	}
	return &Locator{keywords: cleaned}
}

// Locate returns the resolved target of the first anchor, in document
// order, whose href or visible text contains a keyword. Anchors that
// cannot navigate (mailto:, tel:, javascript:, empty, fragment-only)
// are skipped even when their text matches. Without any match the
// base URL itself is returned.
func (l *Locator) Locate(links []Link, base *url.URL) string {
	for _, link := range links {
		if !navigable(link.Href) {
			continue
		}
		if !l.matches(link) {
			continue
		}
		ref, err := url.Parse(link.Href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		resolved.Fragment = ""
		return resolved.String()
	}
	return base.String()
}

func (l *Locator) matches(link Link) bool {
	href := strings.ToLower(link.Href)
	text := strings.ToLower(link.Text)
	for _, kw := range l.keywords {
		if strings.Contains(href, kw) || strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func navigable(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(href, prefix) {
			return false
		}
	}
	return true
}
