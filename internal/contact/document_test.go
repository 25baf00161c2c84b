package contact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Acme</title></head><body>
	<nav><a href=" /about ">About</a><a href="/contact-us"> Contact Us </a></nav>
	<p>Write to hello@acme.example</p>
	<a href="mailto:hello@acme.example">mail</a>
	<a>no href</a>
	</body></html>`

	doc, err := ParseDocument([]byte(html))
	require.NoError(t, err)

	require.Equal(t, html, doc.Text)
	require.Equal(t, []Link{
		{Href: "/about", Text: "About"},
		{Href: "/contact-us", Text: "Contact Us"},
		{Href: "mailto:hello@acme.example", Text: "mail"},
	}, doc.Links)
}

func TestParseDocumentBrokenMarkup(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument([]byte(`<div><a href="/contact">Contact<p>hello@x.example`))
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)
	require.Equal(t, "/contact", doc.Links[0].Href)
}
