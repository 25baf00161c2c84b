// Package detector flags pages that need a browser to render.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leadfinch/contact-crawler/internal/contact"
)

// Heuristic inspects a fetched page for signals that the served HTML
// is an empty JS-application shell: a tiny body, a known framework
// marker, or none of the expected content selectors present.
type Heuristic struct {
	minHTMLBytes     int
	requiredSelector string
	keywords         [][]byte
}

// New constructs a Heuristic with the configured thresholds. The
// required selector may be a comma-separated group; the page passes
// when any alternative matches.
func New(minHTMLBytes int, requiredSelector string, keywords []string) *Heuristic {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &Heuristic{
		minHTMLBytes:     minHTMLBytes,
		requiredSelector: strings.TrimSpace(requiredSelector),
		keywords:         lowered,
	}
}

// NeedsJS reports whether the page should be re-fetched with the
// browser strategy.
func (d *Heuristic) NeedsJS(page contact.Page) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(page.Body):
		return true
	case d.containsKeywords(page.Body):
		return true
	default:
		return d.missingSelector(page.Body)
	}
}

func (d *Heuristic) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Heuristic) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Heuristic) missingSelector(body []byte) bool {
	if d.requiredSelector == "" || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	return doc.Find(d.requiredSelector).Length() == 0
}
