// Package fetcher composes the page acquisition strategies behind a
// single contact.Fetcher.
package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/metrics"
)

// Detector decides whether a fetched page needs a JavaScript pass.
type Detector interface {
	NeedsJS(page contact.Page) bool
}

// Chain fetches with the primary fetcher and upgrades to the rendered
// fetcher when the detector flags the page. A failed render keeps the
// plain page, so rendering only ever adds information.
type Chain struct {
	primary  contact.Fetcher
	rendered contact.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewChain wires the strategies together. rendered and detector may be
// nil, which turns the chain into a passthrough for the primary.
func NewChain(primary, rendered contact.Fetcher, detector Detector, logger *zap.Logger) *Chain {
	return &Chain{
		primary:  primary,
		rendered: rendered,
		detector: detector,
		logger:   logger,
	}
}

// Fetch implements contact.Fetcher.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (contact.Page, error) {
	page, err := c.primary.Fetch(ctx, rawURL)
	metrics.ObservePageFetch("plain", err)
	if err != nil {
		return contact.Page{}, err
	}
	if c.rendered == nil || c.detector == nil || !c.detector.NeedsJS(page) {
		return page, nil
	}

	c.logger.Debug("page looks script-rendered, upgrading fetch", zap.String("url", rawURL))
	rendered, err := c.rendered.Fetch(ctx, rawURL)
	metrics.ObservePageFetch("headless", err)
	if err != nil {
		c.logger.Warn("headless render failed, keeping plain page",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return page, nil
	}
	return rendered, nil
}
