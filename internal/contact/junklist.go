package contact

import "strings"

// junkDomains filters email addresses whose domain matches a
// configured junk entry. Matching is substring based so a single
// entry catches subdomain variants.
type junkDomains struct {
	entries []string
}

func newJunkDomains(entries []string) *junkDomains {
	cleaned := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		cleaned = append(cleaned, entry)
	}
	return &junkDomains{entries: cleaned}
}

// Matches reports whether the domain contains any junk entry.
func (j *junkDomains) Matches(domain string) bool {
	if j == nil || len(j.entries) == 0 {
		return false
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	for _, entry := range j.entries {
		if strings.Contains(domain, entry) {
			return true
		}
	}
	return false
}
