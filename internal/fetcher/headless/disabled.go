package headless

import (
	"context"

	"github.com/leadfinch/contact-crawler/internal/contact"
)

// Disabled stands in for the browser fetcher when rendering is turned
// off. Every call reports ErrDisabled.
type Disabled struct{}

// NewDisabled creates the stub fetcher.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Fetch always fails with ErrDisabled.
func (*Disabled) Fetch(context.Context, string) (contact.Page, error) {
	return contact.Page{}, ErrDisabled
}

// Close is a no-op so callers can tear down either implementation.
func (*Disabled) Close() {}
