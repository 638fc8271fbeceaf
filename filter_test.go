package spfeval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redsift/spfeval"
)

func TestIsSPFCandidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "simple valid case",
			input:    "v=spf1",
			expected: true,
		},
		{
			name:     "valid with colon separator",
			input:    "v:spf1",
			expected: true,
		},
		{
			name:     "valid with whitespace after v",
			input:    "v  =spf1",
			expected: true,
		},
		{
			name:     "valid with whitespace around separator",
			input:    "v = spf1",
			expected: true,
		},
		{
			name:     "valid with mixed case",
			input:    "V=sPf1",
			expected: true,
		},
		{
			name:     "valid with text before pattern",
			input:    "text v=spf1",
			expected: true,
		},
		{
			name:     "empty string",
			input:    "",
			expected: false,
		},
		{
			name:     "missing v",
			input:    "=spf1",
			expected: true,
		},
		{
			name:     "missing separator",
			input:    "vspf1",
			expected: false,
		},
		{
			name:     "missing spf",
			input:    "v=",
			expected: false,
		},
		{
			name:     "wrong separator",
			input:    "v-spf1",
			expected: false,
		},
		{
			name:     "only spf",
			input:    "spf",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, spfeval.IsSPFCandidate(tt.input))
		})
	}
}

func TestHasSPFPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"v=spf1", true},
		{"V=SPF1 -all", true},
		{"v=spf1\t-all", true},
		{"v=spf1 ", false},
		{"v=spf10 -all", false},
		{" v=spf1 -all", false},
		{"v=spf1-all", false},
		{"spf2.0/pra -all", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, spfeval.HasSPFPrefix(tt.input))
		})
	}
}

func TestFilterSPFCandidates(t *testing.T) {
	candidates, policies := spfeval.FilterSPFCandidates([]string{
		"google-site-verification=abc",
		"v=spf1 -all",
		"v = spf1 include:_spf.example.com",
		"v=spf1 -all",
		"v=spf1 +mx -all",
	})
	assert.Equal(t, []string{"v = spf1 include:_spf.example.com"}, candidates)
	assert.Equal(t, []string{"v=spf1 -all", "v=spf1 +mx -all"}, policies)

	candidates, policies = spfeval.FilterSPFCandidates(nil)
	assert.Empty(t, candidates)
	assert.Empty(t, policies)
}

func BenchmarkIsSPFCandidate(b *testing.B) {
	testCases := map[string]string{
		"Empty":            "",
		"Simple":           "v=spf1",
		"Complex":          "v=SPF1 include:_spf.example.com ~all",
		"NoSPF":            "This is a long string without any SPF information in it at all",
		"ExcessWhitespace": "   v   =   spf1   ",
	}

	for name, tc := range testCases {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				spfeval.IsSPFCandidate(tc)
			}
		})
	}
}
