package contact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJunkDomainsMatches(t *testing.T) {
	t.Parallel()

	junk := newJunkDomains([]string{"sentry.io", "Wixpress.com", "  ", "sentry.io"})

	tests := []struct {
		domain string
		want   bool
	}{
		{"sentry.io", true},
		{"o123.sentry.io", true},
		{"sentry.wixpress.com", true},
		{"WIXPRESS.COM", true},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, junk.Matches(tt.domain), "domain %q", tt.domain)
	}
}

func TestJunkDomainsEmpty(t *testing.T) {
	t.Parallel()

	junk := newJunkDomains(nil)
	require.False(t, junk.Matches("sentry.io"))

	var nilJunk *junkDomains
	require.False(t, nilJunk.Matches("sentry.io"))
}
