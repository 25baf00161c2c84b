package contact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

const (
	emailPattern        = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	defaultPhonePattern = `\b(?:\+91[-\s]?|0)?([6-9]\d{9})\b`

	defaultPhoneRegion    = "IN"
	defaultPhoneMinDigits = 10
	maxPhoneDigits        = 15
)

// assetSuffixes mark email-shaped matches that are really file
// references (logo@2x.png and friends) pulled out of page source.
var assetSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".woff", ".woff2",
}

// ExtractorConfig tunes pattern extraction. Zero values fall back to
// the defaults above; PhonePattern overrides the built-in scan regex.
type ExtractorConfig struct {
	JunkEmailDomains []string
	PhoneRegion      string
	PhoneMinDigits   int
	PhonePattern     string
}

// Extractor pulls email addresses and phone numbers out of parsed
// documents. It is pure and safe for concurrent use.
type Extractor struct {
	emailRe   *regexp.Regexp
	phoneRe   *regexp.Regexp
	junk      *junkDomains
	region    string
	minDigits int
}

// NewExtractor builds an Extractor, compiling the phone pattern
// override when one is configured.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	pattern := cfg.PhonePattern
	if pattern == "" {
		pattern = defaultPhonePattern
	}
	phoneRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile phone pattern: %w", err)
	}

	region := strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	minDigits := cfg.PhoneMinDigits
	if minDigits <= 0 {
		minDigits = defaultPhoneMinDigits
	}

	return &Extractor{
		emailRe:   regexp.MustCompile(emailPattern),
		phoneRe:   phoneRe,
		junk:      newJunkDomains(cfg.JunkEmailDomains),
		region:    region,
		minDigits: minDigits,
	}, nil
}

// Extract returns the emails and phones found in one document.
// mailto: and tel: anchors are taken first, then the text patterns;
// both lists keep first-appearance order without duplicates.
func (e *Extractor) Extract(doc Document) (emails, phones []string) {
	emails = make([]string, 0, 4)
	phones = make([]string, 0, 4)
	seenEmails := make(map[string]struct{})
	seenPhones := make(map[string]struct{})

	for _, link := range doc.Links {
		href := strings.ToLower(link.Href)
		switch {
		case strings.HasPrefix(href, "mailto:"):
			for _, match := range e.emailRe.FindAllString(link.Href, -1) {
				if addr, ok := e.cleanEmail(match); ok {
					appendUnique(&emails, seenEmails, addr)
				}
			}
		case strings.HasPrefix(href, "tel:"):
			if num, ok := e.normalizePhone(link.Href[len("tel:"):]); ok {
				appendUnique(&phones, seenPhones, num)
			}
		}
	}

	for _, match := range e.emailRe.FindAllString(doc.Text, -1) {
		if addr, ok := e.cleanEmail(match); ok {
			appendUnique(&emails, seenEmails, addr)
		}
	}

	for _, match := range e.phoneRe.FindAllStringSubmatch(doc.Text, -1) {
		candidate := match[0]
		if len(match) > 1 && match[1] != "" {
			candidate = match[1]
		}
		if num, ok := e.normalizePhone(candidate); ok {
			appendUnique(&phones, seenPhones, num)
		}
	}

	return emails, phones
}

// cleanEmail validates a raw email candidate. The address keeps its
// original casing; filtering on the domain is case-insensitive.
func (e *Extractor) cleanEmail(raw string) (string, bool) {
	addr := strings.TrimSpace(raw)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", false
	}
	domain := strings.ToLower(addr[at+1:])
	if !strings.Contains(domain, ".") {
		return "", false
	}
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return "", false
		}
	}
	if e.junk.Matches(domain) {
		return "", false
	}
	if _, err := idna.Lookup.ToASCII(domain); err != nil {
		return "", false
	}
	return addr, true
}

// normalizePhone validates a raw phone candidate and formats it to
// E.164 under the configured default region.
func (e *Extractor) normalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	digits := countDigits(raw)
	if digits < e.minDigits || digits > maxPhoneDigits {
		return "", false
	}

	num, err := phonenumbers.Parse(raw, e.region)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsPossibleNumber(num) || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func appendUnique(list *[]string, seen map[string]struct{}, value string) {
	if _, ok := seen[value]; ok {
		return
	}
	seen[value] = struct{}{}
	*list = append(*list, value)
}
