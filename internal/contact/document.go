package contact

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseDocument parses HTML into the views the extractor and locator
// work on. Text keeps the raw source so patterns embedded in markup
// and scripts are still seen; Links carry the anchors in document
// order with their visible text.
func ParseDocument(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	parsed := Document{Text: string(body)}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		parsed.Links = append(parsed.Links, Link{
			Href: strings.TrimSpace(href),
			Text: strings.TrimSpace(sel.Text()),
		})
	})

	return parsed, nil
}
