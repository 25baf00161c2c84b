package contact

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ReasonUnreachable is the Result error for sites whose home page
// could not be fetched.
const ReasonUnreachable = "Site not reachable"

// SiteScraper runs the per-site pipeline: fetch the home page, locate
// the contact page, fetch it when it is a different resource, and
// extract contact data from every document seen. Failures never
// escape as errors or panics; they land in the Result.
type SiteScraper struct {
	fetcher   Fetcher
	locator   *Locator
	extractor *Extractor
	clock     Clock
	logger    *zap.Logger
}

// NewSiteScraper wires the pipeline stages together.
func NewSiteScraper(fetcher Fetcher, locator *Locator, extractor *Extractor, clock Clock, logger *zap.Logger) *SiteScraper {
	return &SiteScraper{
		fetcher:   fetcher,
		locator:   locator,
		extractor: extractor,
		clock:     clock,
		logger:    logger,
	}
}

// Scrape produces the terminal Result for one input URL. Result.URL
// always carries the caller's original string, even after redirects.
func (s *SiteScraper) Scrape(ctx context.Context, rawURL string) (res Result) {
	start := time.Now()
	res = Result{
		URL:       rawURL,
		Emails:    []string{},
		Phones:    []string{},
		FetchedAt: s.clock.Now(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scrape panic",
				zap.String("url", rawURL),
				zap.Any("panic", rec))
			res = Result{
				URL:       rawURL,
				Emails:    []string{},
				Phones:    []string{},
				FetchedAt: res.FetchedAt,
				Error:     fmt.Sprintf("internal error: %v", rec),
			}
		}
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	home, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("home fetch failed", zap.String("url", rawURL), zap.Error(err))
		res.Error = ReasonUnreachable
		return res
	}
	res.UsedHeadless = home.UsedHeadless

	homeDoc, err := ParseDocument(home.Body)
	if err != nil {
		s.logger.Warn("home parse failed", zap.String("url", rawURL), zap.Error(err))
	}

	base, err := url.Parse(home.FinalURL)
	if err != nil || base.Host == "" {
		base, err = url.Parse(EnsureScheme(rawURL))
		if err != nil {
			res.Error = fmt.Sprintf("internal error: unresolvable base for %q", rawURL)
			return res
		}
	}

	contactURL := s.locator.Locate(homeDoc.Links, base)
	res.ContactPage = contactURL

	emails, phones := s.extractor.Extract(homeDoc)

	if !SameResource(contactURL, home.FinalURL) {
		contactPage, err := s.fetcher.Fetch(ctx, contactURL)
		if err != nil {
			s.logger.Warn("contact page fetch failed, keeping home page data",
				zap.String("url", rawURL),
				zap.String("contact_page", contactURL),
				zap.Error(err))
		} else {
			res.UsedHeadless = res.UsedHeadless || contactPage.UsedHeadless
			contactDoc, perr := ParseDocument(contactPage.Body)
			if perr != nil {
				s.logger.Warn("contact page parse failed",
					zap.String("contact_page", contactURL),
					zap.Error(perr))
			}
			contactEmails, contactPhones := s.extractor.Extract(contactDoc)
			emails = mergeUnique(emails, contactEmails)
			phones = mergeUnique(phones, contactPhones)
		}
	}

	res.Emails = emails
	res.Phones = phones

	s.logger.Info("site scraped",
		zap.String("url", rawURL),
		zap.String("contact_page", res.ContactPage),
		zap.Int("emails", len(res.Emails)),
		zap.Int("phones", len(res.Phones)),
		zap.Bool("used_headless", res.UsedHeadless))
	return res
}

// mergeUnique appends b to a, dropping values already present and
// preserving first-appearance order.
func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
