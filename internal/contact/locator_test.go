package contact

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestLocateFirstMatchWins(t *testing.T) {
	t.Parallel()

	l := NewLocator(nil)
	base := mustParse(t, "https://example.com/")
	links := []Link{
		{Href: "/about", Text: "About"},
		{Href: "/contact-us", Text: "Reach us"},
		{Href: "/contact", Text: "Contact"},
	}

	require.Equal(t, "https://example.com/contact-us", l.Locate(links, base))
}

func TestLocateMatchesVisibleText(t *testing.T) {
	t.Parallel()

	l := NewLocator(nil)
	base := mustParse(t, "https://example.com/")
	links := []Link{
		{Href: "/about", Text: "About"},
		{Href: "/reach", Text: "Get in Touch / Contact"},
	}

	require.Equal(t, "https://example.com/reach", l.Locate(links, base))
}

func TestLocateResolvesRelativeAndStripsFragment(t *testing.T) {
	t.Parallel()

	l := NewLocator(nil)
	base := mustParse(t, "https://example.com/en/home")
	links := []Link{{Href: "../contact#form", Text: "Contact"}}

	require.Equal(t, "https://example.com/contact", l.Locate(links, base))
}

func TestLocateSkipsNonNavigableAnchors(t *testing.T) {
	t.Parallel()

	l := NewLocator(nil)
	base := mustParse(t, "https://example.com/")
	links := []Link{
		{Href: "mailto:contact@example.com", Text: "Contact"},
		{Href: "tel:+919876543210", Text: "Contact by phone"},
		{Href: "javascript:void(0)", Text: "Contact popup"},
		{Href: "#contact", Text: "Contact section"},
		{Href: "", Text: "Contact"},
		{Href: "/contact", Text: "Contact page"},
	}

	require.Equal(t, "https://example.com/contact", l.Locate(links, base))
}

func TestLocateFallsBackToBase(t *testing.T) {
	t.Parallel()

	l := NewLocator([]string{"kontakt"})
	base := mustParse(t, "https://example.com/")
	links := []Link{{Href: "/contact", Text: "Contact"}}

	require.Equal(t, "https://example.com/", l.Locate(links, base))
}

func TestLocateAbsoluteHref(t *testing.T) {
	t.Parallel()

	l := NewLocator(nil)
	base := mustParse(t, "https://example.com/")
	links := []Link{{Href: "https://other.example.com/contact", Text: "Contact"}}

	require.Equal(t, "https://other.example.com/contact", l.Locate(links, base))
}

func TestNewLocatorNormalizesKeywords(t *testing.T) {
	t.Parallel()

	l := NewLocator([]string{" Kontakt ", "KONTAKT", ""})
	require.Equal(t, []string{"kontakt"}, l.keywords)

	l = NewLocator(nil)
	require.Equal(t, DefaultContactKeywords, l.keywords)
}
