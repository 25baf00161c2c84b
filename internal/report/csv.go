// Package report renders extraction results as CSV artifacts and reads
// URL lists submitted for extraction.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/leadfinch/contact-crawler/internal/contact"
)

// Header is the artifact's fixed first row.
var Header = []string{"URL", "Contact Page", "Emails", "Phones", "Error"}

// headerAliases are first-column values that mark an input row as a
// header rather than a URL.
var headerAliases = map[string]struct{}{
	"url":     {},
	"urls":    {},
	"website": {},
	"site":    {},
	"domain":  {},
}

// Filename names the artifact for a report ID. UUID dashes drop out
// so the name is a single hex token.
func Filename(id string) string {
	return fmt.Sprintf("results_%s.csv", strings.ReplaceAll(id, "-", ""))
}

// WriteCSV renders rows in input order behind the fixed header.
// Multi-valued cells join with ", ".
func WriteCSV(w io.Writer, rows []contact.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.URL,
			row.ContactPage,
			strings.Join(row.Emails, ", "),
			strings.Join(row.Phones, ", "),
			row.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row for %s: %w", row.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadURLColumn extracts the first column of a CSV or line-per-URL
// stream, skipping blank rows and a leading header row.
func ReadURLColumn(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	urls := make([]string, 0, 16)
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read url list: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if first {
			first = false
			if _, isHeader := headerAliases[strings.ToLower(value)]; isHeader {
				continue
			}
		}
		if value == "" {
			continue
		}
		urls = append(urls, value)
	}
	return urls, nil
}
