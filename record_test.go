package spfeval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foxcpp/go-mockdns"
	"github.com/stretchr/testify/assert"
)

func TestFetchRecord(t *testing.T) {
	zones := map[string]mockdns.Zone{
		"single.example.": {TXT: []string{"google-site-verification=abc", "v=spf1  IP4:10.0.0.0/8\t-ALL"}},
		"dup.example.":    {TXT: []string{"v=spf1 -all", "v=spf1 -all"}},
		"multi.example.":  {TXT: []string{"v=spf1 -all", "v=spf1 +all"}},
		"none.example.":   {TXT: []string{"v=spf10", "spf2.0/pra -all"}},
		"empty.example.":  {A: []string{"192.0.2.1"}},
		"temp.example.":   {Err: errTemporary},
	}

	tests := []struct {
		domain  string
		want    string
		wantErr error
	}{
		{"single.example", "v=spf1 ip4:10.0.0.0/8 -all", nil},
		{"dup.example", "v=spf1 -all", nil},
		{"multi.example", "", ErrTooManySPFRecords},
		{"none.example", "", ErrSPFNotFound},
		{"empty.example", "", ErrSPFNotFound},
		{"nxdomain.example", "", ErrDNSNotFound},
		{"temp.example", "", ErrDNSTemperror},
	}

	e := NewChecker(WithResolver(mockResolver(zones))).newEvaluation(newBudget())
	for _, test := range tests {
		t.Run(test.domain, func(t *testing.T) {
			got, err := e.fetchRecord(context.Background(), test.domain)
			assert.Equal(t, test.want, got)
			if test.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, test.wantErr), "err=%v, want %v", err, test.wantErr)
		})
	}
}

func TestFetchRecord_LogsCandidates(t *testing.T) {
	var lines []string
	logger := LoggerFunc(func(line string) { lines = append(lines, line) })
	zones := map[string]mockdns.Zone{
		"typo.example.": {TXT: []string{"v:spf1 -all"}},
	}

	e := NewChecker(WithResolver(mockResolver(zones)), WithLogger(logger)).newEvaluation(newBudget())
	_, err := e.fetchRecord(context.Background(), "typo.example")
	assert.ErrorIs(t, err, ErrSPFNotFound)
	if assert.Len(t, lines, 1) {
		assert.True(t, strings.Contains(lines[0], `"v:spf1 -all"`), lines[0])
	}
}

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"v=spf1 -all", "v=spf1 -all"},
		{"V=SPF1   A\t\tMX  -ALL", "v=spf1 a mx -all"},
		{"v=spf1 -all ", "v=spf1 -all"},
		{"v=spf1 include:Example.ORG ~all", "v=spf1 include:example.org ~all"},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			assert.Equal(t, test.want, normalizeRecord(test.in))
		})
	}
}
