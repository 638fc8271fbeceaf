package spfeval

import (
	"net"
	"strconv"
	"strings"
)

type tokenType int

const (
	tErr tokenType = iota

	mechanismBeg

	tAll     // all
	tA       // a
	tIP4     // ip4
	tIP6     // ip6
	tMX      // mx
	tPTR     // ptr
	tInclude // include
	tExists  // exists

	mechanismEnd

	modifierBeg

	tVersion         // v=spf1
	tRedirect        // redirect
	tExp             // explanation
	tUnknownModifier // unknown modifier

	modifierEnd

	qPlus
	qMinus
	qTilde
	qQuestionMark
)

var qualifiers = map[byte]tokenType{
	'+': qPlus,
	'-': qMinus,
	'?': qQuestionMark,
	'~': qTilde,
}

func (tok tokenType) String() string {
	switch tok {
	case tVersion:
		return "v"
	case tAll:
		return "all"
	case tA:
		return "a"
	case tIP4:
		return "ip4"
	case tIP6:
		return "ip6"
	case tMX:
		return "mx"
	case tPTR:
		return "ptr"
	case tInclude:
		return "include"
	case tRedirect:
		return "redirect"
	case tExists:
		return "exists"
	case tExp:
		return "exp"
	case qPlus:
		return "+"
	case qMinus:
		return "-"
	case qQuestionMark:
		return "?"
	case qTilde:
		return "~"
	default:
		return ":" + strconv.Itoa(int(tok))
	}
}

func mechanismFromString(s string) tokenType {
	switch s {
	case "all":
		return tAll
	case "a":
		return tA
	case "ip4":
		return tIP4
	case "ip6":
		return tIP6
	case "mx":
		return tMX
	case "ptr":
		return tPTR
	case "include":
		return tInclude
	case "exists":
		return tExists
	default:
		return tErr
	}
}

func modifierFromString(s string) tokenType {
	switch s {
	case "v":
		return tVersion
	case "redirect":
		return tRedirect
	case "exp":
		return tExp
	default:
		return tUnknownModifier
	}
}

func (tok tokenType) isMechanism() bool {
	return tok > mechanismBeg && tok < mechanismEnd
}

func (tok tokenType) isModifier() bool {
	return tok > modifierBeg && tok < modifierEnd
}

// consumesLookup tells whether evaluating the term costs one slot of the
// shared DNS lookup budget.
func (tok tokenType) consumesLookup() bool {
	switch tok {
	case tA, tMX, tPTR, tExists, tInclude, tRedirect:
		return true
	default:
		return false
	}
}

// token represents SPF term (modifier or mechanism) like all, include, a, mx,
// ptr, ip4, ip6, exists, redirect etc. All arguments are validated and
// macro expanded by the time a token is built.
type token struct {
	mechanism tokenType // all, include, a, mx, ptr, ip4, ip6, exists etc.
	qualifier tokenType // +, -, ~, ?, defaults to +
	key       string    // modifier name as written
	value     string    // argument as written in the record

	domain string // expanded domain-spec; empty means the current domain
	cidr4  int    // a, mx: IPv4 prefix length, -1 if absent
	cidr6  int    // a, mx: IPv6 prefix length, -1 if absent
	ipnet  *net.IPNet
}

func (t *token) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	if t.mechanism.isMechanism() {
		if t.qualifier != qPlus {
			b.WriteString(t.qualifier.String())
		}
		b.WriteString(t.mechanism.String())
		b.WriteString(t.value)
		return b.String()
	}
	b.WriteString(t.key)
	b.WriteByte('=')
	b.WriteString(t.value)
	return b.String()
}

// IsKnownMechanism reports whether s names one of the RFC 7208 mechanisms.
func IsKnownMechanism(s string) bool {
	return mechanismFromString(strings.ToLower(s)) != tErr
}

// mechanismName returns the term name: the mechanism for mechanisms, the
// modifier name as written for modifiers.
func (t *token) mechanismName() string {
	if t.mechanism.isModifier() {
		return t.key
	}
	return t.mechanism.String()
}

// result maps a qualifier to the result of a matching mechanism.
func (tok tokenType) result() Result {
	switch tok {
	case qMinus:
		return Fail
	case qTilde:
		return Softfail
	case qQuestionMark:
		return Neutral
	default:
		return Pass
	}
}
