package spfeval

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

// reMacro matches a single macro-expand term:
// "%{" macro-letter [ *DIGIT ] [ "r" ] [ delimiter ] "}"
var reMacro = regexp.MustCompile(`(?i)%\{([slodipvh])(\d*r?)([-.+,/_=])?\}`)

// reInvalidMacro finds a '%' that does not start one of the accepted
// sequences. "%+" is let through on purpose: records using it were always
// accepted.
var reInvalidMacro = regexp.MustCompile(`%([^{%+-]|$)`)

// macroEscapes are applied one after the other once every %{...} term
// is expanded; "%%_" thus yields " ".
var macroEscapes = [...][2]string{
	{"%%", "%"},
	{"%_", " "},
	{"%-", "%20"},
}

func validMacroString(s string) bool {
	return !reInvalidMacro.MatchString(s)
}

// expandMacros replaces macro terms of s with values from the evaluation.
// A term whose value is empty is kept verbatim.
func (e *evaluation) expandMacros(s string) string {
	s = reMacro.ReplaceAllStringFunc(s, func(term string) string {
		m := reMacro.FindStringSubmatch(term)
		v := e.macroValue(strings.ToLower(m[1])[0])
		if v == "" {
			return term
		}
		return transformMacro(v, m[2], m[3])
	})
	for _, esc := range macroEscapes {
		s = strings.ReplaceAll(s, esc[0], esc[1])
	}
	return s
}

func (e *evaluation) macroValue(letter byte) string {
	switch letter {
	case 's':
		return e.mailFrom
	case 'l':
		return strings.Split(e.mailFrom, "@")[0]
	case 'o':
		if parts := strings.Split(e.mailFrom, "@"); len(parts) > 1 {
			return parts[1]
		}
		return ""
	case 'd':
		return e.domain
	case 'i':
		if e.ip.To4() != nil {
			return e.ip.To4().String()
		}
		return toDottedNibbles(e.ip)
	case 'p':
		// validated domain name of IP is not resolved
		return "unknown"
	case 'v':
		if e.ip.To4() != nil {
			return "in-addr"
		}
		return "ip6"
	case 'h':
		return e.helo
	}
	return ""
}

// transformMacro splits v on delimiter, keeps the first N parts, reverses
// them when asked and joins the result with dots. Without N and "r" the
// value is returned untouched.
func transformMacro(v, transformers, delimiter string) string {
	digits := strings.TrimRight(transformers, "rR")
	reverse := digits != transformers
	if digits == "" && !reverse {
		return v
	}
	if delimiter == "" {
		delimiter = "."
	}
	parts := strings.Split(v, delimiter)
	if digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil || n > len(parts) {
			n = len(parts)
		}
		parts = parts[:n]
	}
	if reverse {
		for first, last := 0, len(parts)-1; first < last; first, last = first+1, last-1 {
			parts[first], parts[last] = parts[last], parts[first]
		}
	}
	return strings.Join(parts, ".")
}

const hexDigit = "0123456789abcdef"

// toDottedNibbles formats an IPv6 address the way RFC 7208 section 7.3
// wants it for %{i}: 32 dot-separated hex nibbles.
func toDottedNibbles(ip net.IP) string {
	ip = ip.To16()
	if ip == nil {
		return ""
	}
	b := make([]byte, 0, 2*2*net.IPv6len)
	for i := 0; i < net.IPv6len; i++ {
		if i > 0 {
			b = append(b, '.')
		}
		b = append(b, hexDigit[ip[i]>>4], '.', hexDigit[ip[i]&0xf])
	}
	return string(b)
}
