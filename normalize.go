package spfeval

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// normalizeDomain returns the form of domain used for loop detection:
// lower case, no trailing dot, and A-labels for internationalized names.
func normalizeDomain(domain string) string {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	if isASCII(domain) {
		return domain
	}
	a, err := idna.ToASCII(norm.NFC.String(domain))
	if err != nil {
		return domain
	}
	return a
}

// toASCIIDomain converts a top-level domain to the form DNS queries are made
// with. ok is false when the name cannot be converted or is not a valid
// domain name.
func toASCIIDomain(domain string) (string, bool) {
	domain = strings.ToLower(domain)
	if !isASCII(domain) {
		var err error
		domain, err = idna.Lookup.ToASCII(norm.NFC.String(domain))
		if err != nil {
			return "", false
		}
	}
	return domain, isDomainName(domain)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// truncateDomain removes left-side labels of an expanded domain-spec until
// it fits in 253 characters (RFC 7208 section 7.3).
func truncateDomain(s string) string {
	limit := 253
	if strings.HasSuffix(s, ".") {
		limit++
	}
	for len(s) > limit {
		i := strings.IndexByte(s, '.')
		if i < 0 {
			break
		}
		s = s[i+1:]
	}
	return s
}
