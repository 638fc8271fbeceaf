package spfeval

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/redsift/spfeval/spferr"
)

var (
	// mechanisms allowed without argument
	reMechanism = regexp.MustCompile(`^([-+~?])?(all|a|mx|ptr)$`)
	// mechanisms with ":domain-spec", "/cidr" or both
	reMechanismArgs = regexp.MustCompile(`^([-+~?])?(a|mx|ptr|ip4|ip6|include|exists)((?::[^/ ]+(?:/\d+(?://\d+)?)?)|/\d+(?://\d+)?)$`)
	reModifier      = regexp.MustCompile(`^([^ =]+)=([a-z0-9:/._-]+)$`)

	reIPSpec   = regexp.MustCompile(`^:([^/ ]+)(?:/([^ ]+))?$`)
	reDualCIDR = regexp.MustCompile(`/(\d+)(?://(\d+))?$`)
)

// SyntaxError represents parsing error, it holds reference to faulty term
// as well as error describing fault
type SyntaxError struct {
	term string
	err  error
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf(`error checking '%s': %s`, e.term, e.err.Error())
}

func (e SyntaxError) Unwrap() error { return e.err }

func (e SyntaxError) Kind() spferr.Kind { return spferr.KindSyntax }

// TokenString returns the offending term.
func (e SyntaxError) TokenString() string { return e.term }

// lex splits a normalized SPF record into mechanisms and modifiers, keeping
// their order. Every term is validated and its arguments are macro expanded
// before lex returns: a broken term anywhere in the record fails the whole
// record, before any lookup is done.
func (e *evaluation) lex(record string) (mechanisms, modifiers []*token, err error) {
	for _, term := range strings.Split(record, " ") {
		if term == "" {
			continue
		}

		m := reMechanism.FindStringSubmatch(term)
		if m == nil {
			m = reMechanismArgs.FindStringSubmatch(term)
		}
		if m != nil {
			t, err := e.scanMechanism(term, m)
			if err != nil {
				e.logf("%s", err)
				return nil, nil, err
			}
			e.logf("found mechanism: %s", t)
			mechanisms = append(mechanisms, t)
			continue
		}

		if m = reModifier.FindStringSubmatch(term); m != nil {
			t := &token{mechanism: modifierFromString(m[1]), qualifier: qPlus, key: m[1], value: m[2]}
			if t.mechanism == tUnknownModifier {
				e.logf("skipping unknown modifier: %s", m[1])
				continue
			}
			if t.mechanism == tRedirect {
				t.domain = truncateDomain(e.expandMacros(t.value))
			}
			e.logf("found modifier: %s", t)
			modifiers = append(modifiers, t)
			continue
		}

		e.logf("syntax error: %s", term)
		return nil, nil, SyntaxError{term, ErrSyntaxError}
	}
	return mechanisms, modifiers, nil
}

// scanMechanism builds a mechanism token from the submatches of
// reMechanism or reMechanismArgs.
func (e *evaluation) scanMechanism(term string, m []string) (*token, error) {
	t := &token{
		mechanism: mechanismFromString(m[2]),
		qualifier: qPlus,
		cidr4:     -1,
		cidr6:     -1,
	}
	if m[1] != "" {
		t.qualifier = qualifiers[m[1][0]]
	}
	if len(m) > 3 {
		t.value = m[3]
	}

	switch t.mechanism {
	case tIP4, tIP6:
		ipnet, err := parseIPSpec(t.value)
		if err != nil {
			return nil, SyntaxError{term, err}
		}
		t.ipnet = ipnet
		return t, nil
	}

	if t.value == "" {
		return t, nil
	}
	if !validMacroString(t.value) {
		return nil, SyntaxError{term, ErrInvalidMacro}
	}

	spec := t.value
	if loc := reDualCIDR.FindStringSubmatchIndex(spec); loc != nil {
		// dual-cidr-length belongs to address mechanisms only
		if t.mechanism != tA && t.mechanism != tMX {
			return nil, SyntaxError{term, ErrSyntaxError}
		}
		var err error
		if t.cidr4, err = parseCIDRLength(spec[loc[2]:loc[3]], 8*net.IPv4len); err != nil {
			return nil, SyntaxError{term, err}
		}
		if loc[4] >= 0 {
			if t.cidr6, err = parseCIDRLength(spec[loc[4]:loc[5]], 8*net.IPv6len); err != nil {
				return nil, SyntaxError{term, err}
			}
		}
		spec = spec[:loc[0]]
	}

	if strings.HasPrefix(spec, ":") {
		t.domain = truncateDomain(e.expandMacros(spec[1:]))
	}
	return t, nil
}

// parseIPSpec parses ":address[/length]" of ip4 and ip6 mechanisms.
// The prefix length defaults to the full width of the address family.
func parseIPSpec(s string) (*net.IPNet, error) {
	m := reIPSpec.FindStringSubmatch(s)
	if m == nil {
		return nil, ErrInvalidIP
	}
	ip := net.ParseIP(m[1])
	if ip == nil {
		return nil, ErrInvalidIP
	}
	bits := 8 * net.IPv6len
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
		bits = 8 * net.IPv4len
	}
	ones := bits
	if m[2] != "" {
		var err error
		if ones, err = parseCIDRLength(m[2], bits); err != nil {
			return nil, err
		}
	}
	mask := net.CIDRMask(ones, bits)
	return &net.IPNet{IP: ip.Mask(mask), Mask: mask}, nil
}

func parseCIDRLength(s string, bits int) (int, error) {
	if s == "" {
		return 0, ErrInvalidCIDRLength
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidCIDRLength
		}
	}
	l, err := strconv.Atoi(s)
	if err != nil || l > bits {
		return 0, ErrInvalidCIDRLength
	}
	return l, nil
}
