// Package contact defines the core types and analysis stages of the
// contact extraction pipeline.
package contact

import "time"

// Page is a fetched document plus retrieval metadata. FinalURL is the
// address after redirects and is the base for link resolution.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Link is one anchor from a parsed document, in document order.
type Link struct {
	Href string
	Text string
}

// Document is the parsed view of a fetched page. Text is the raw page
// source scanned by the pattern extractor; Links carry the anchors.
type Document struct {
	Text  string
	Links []Link
}

// Result is the terminal outcome for one input URL. A Result is either
// a success (Error empty, Emails/Phones populated or empty) or a
// failure (Error set, no data); never both.
type Result struct {
	URL          string    `json:"url"`
	ContactPage  string    `json:"contact_page,omitempty"`
	Emails       []string  `json:"emails"`
	Phones       []string  `json:"phones"`
	Error        string    `json:"error,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	DurationMs   int64     `json:"duration_ms"`
	UsedHeadless bool      `json:"used_headless"`
}

// Failed reports whether the Result is a failure row.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Report is the outcome of one bulk run: one row per input URL, in
// input order, plus the stored CSV artifact reference.
type Report struct {
	Artifact string   `json:"artifact"`
	URI      string   `json:"uri"`
	Rows     []Result `json:"rows"`
	Retried  int      `json:"retried"`
}

// Succeeded counts rows without an error.
func (r Report) Succeeded() int {
	n := 0
	for _, row := range r.Rows {
		if !row.Failed() {
			n++
		}
	}
	return n
}

// Failed counts rows that ended in an error.
func (r Report) Failed() int {
	return len(r.Rows) - r.Succeeded()
}

// Contacts sums the emails and phone numbers found across all rows.
func (r Report) Contacts() (emails, phones int) {
	for _, row := range r.Rows {
		emails += len(row.Emails)
		phones += len(row.Phones)
	}
	return emails, phones
}
