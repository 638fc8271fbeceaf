package spfeval

import (
	"context"
	"regexp"
	"strings"
)

// reVersion matches the version section RFC 7208 section 4.5 requires as the
// very first term of an SPF record.
var reVersion = regexp.MustCompile(`(?i)^v=spf1($|\s.+)`)

// reCandidate matches strings that were likely meant to be SPF records:
// [WS* v] WS* (=|:) WS* spf, case-insensitive. Whatever precedes the
// separator is irrelevant.
var reCandidate = regexp.MustCompile(`(?i)[=:][ \t]*spf`)

// IsSPFCandidate reports whether s looks like an attempt at an SPF record,
// valid or not.
func IsSPFCandidate(s string) bool {
	return reCandidate.MatchString(s)
}

// HasSPFPrefix reports whether s starts with a valid SPF version section.
func HasSPFPrefix(s string) bool {
	return reVersion.MatchString(s)
}

// FilterSPFCandidates splits lines into valid SPF policies and strings that
// merely look like SPF records. Identical policies are reported once.
func FilterSPFCandidates(lines []string) (candidates, policies []string) {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if HasSPFPrefix(line) {
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			policies = append(policies, line)
			continue
		}
		if IsSPFCandidate(line) {
			candidates = append(candidates, line)
		}
	}
	return
}

// normalizeRecord collapses whitespace runs into single spaces and lowers
// the case of the whole record.
func normalizeRecord(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// fetchRecord looks up the single SPF record published at domain.
func (e *evaluation) fetchRecord(ctx context.Context, domain string) (string, error) {
	txts, err := e.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return "", err
	}
	candidates, policies := FilterSPFCandidates(txts)
	for _, c := range candidates {
		e.logf("SPF-like candidate discarded at %s: %q", domain, c)
	}
	switch len(policies) {
	case 0:
		return "", ErrSPFNotFound
	case 1:
		return normalizeRecord(policies[0]), nil
	default:
		return "", ErrTooManySPFRecords
	}
}
