package spfeval

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/redsift/spfeval/spferr"
)

// Errors could be used for root cause analysis
var (
	ErrDNSTemperror      = spferr.Sentinel(spferr.KindDNS, "temporary DNS error")
	ErrDNSNotFound       = spferr.Sentinel(spferr.KindDNS, "domain not found or no data")
	ErrSPFNotFound       = spferr.Sentinel(spferr.KindDNS, "SPF record not found")
	ErrDNSLimitExceeded  = spferr.Sentinel(spferr.KindLimit, "lookup limit exceeded")
	ErrTooManyMXRecords  = spferr.Sentinel(spferr.KindLimit, "too many MX records")
	ErrTooManyPTRRecords = spferr.Sentinel(spferr.KindLimit, "too many PTR records")
	ErrLoopDetected      = spferr.Sentinel(spferr.KindLimit, "circular reference detected")
	ErrTooManySPFRecords = spferr.Sentinel(spferr.KindValidation, "too many SPF records")
	ErrSyntaxError       = spferr.Sentinel(spferr.KindSyntax, "wrong syntax")
	ErrInvalidMacro      = spferr.Sentinel(spferr.KindSyntax, "invalid macro string")
	ErrInvalidIP         = spferr.Sentinel(spferr.KindSyntax, "invalid IP address")
	ErrInvalidCIDRLength = spferr.Sentinel(spferr.KindSyntax, "invalid CIDR length")
	ErrInvalidPTRPattern = spferr.Sentinel(spferr.KindSyntax, "invalid ptr domain pattern")
)

// DomainError represents a domain check error
type DomainError struct {
	Err    string // description of the error
	Domain string // domain checked
}

func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Domain == "" {
		return e.Err
	}
	return e.Err + ": " + e.Domain
}

func (e *DomainError) Kind() spferr.Kind { return spferr.KindValidation }

func newInvalidDomainError(domain string) error {
	return &DomainError{
		Err:    "invalid domain name",
		Domain: domain,
	}
}

// Resolver provides an abstraction for DNS layer operations.
//
// Implementations classify failures: "name not found", "no data" and
// NXDOMAIN answers must wrap ErrDNSNotFound, everything else is reported as
// (or wraps) ErrDNSTemperror. Any other error is treated as temporary.
type Resolver interface {
	// LookupTXT returns the TXT records of name, each one with its
	// character-strings concatenated.
	LookupTXT(ctx context.Context, name string) ([]string, error)
	// LookupA returns the IPv4 addresses of name.
	LookupA(ctx context.Context, name string) ([]net.IP, error)
	// LookupAAAA returns the IPv6 addresses of name.
	LookupAAAA(ctx context.Context, name string) ([]net.IP, error)
	// LookupMX returns the exchange host names of name.
	LookupMX(ctx context.Context, name string) ([]string, error)
	// LookupPTR returns the names the address reverse-resolves to.
	LookupPTR(ctx context.Context, ip net.IP) ([]string, error)
}

// Option sets an optional parameter of the Checker
type Option func(*Checker)

// WithResolver replaces the default resolver (system resolver).
func WithResolver(r Resolver) Option {
	return func(c *Checker) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithLogger sets a sink for debug lines produced during evaluation.
func WithLogger(l Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithListener(l Listener) Option {
	return func(c *Checker) {
		c.listener = l
	}
}

// HeloDomain sets the HELO/EHLO identity used by the %{h} macro.
func HeloDomain(s string) Option {
	return func(c *Checker) {
		if s != "" {
			c.helo = s
		}
	}
}

// MXConcurrency limits the number of exchanges resolved at once by the "mx"
// mechanism. Anything less than 1 means one goroutine per exchange.
func MXConcurrency(n int) Option {
	return func(c *Checker) {
		c.mxConcurrency = n
	}
}

// Result represents result of SPF evaluation as it defined by RFC7208
// https://tools.ietf.org/html/rfc7208#section-2.6
type Result int

const (
	_ Result = iota

	// None means either (a) no syntactically valid DNS
	// domain name was extracted from the SMTP session that could be used
	// as the one to be authorized, or (b) no SPF records were retrieved
	// from the DNS.
	None
	// Neutral result means the ADMD has explicitly stated that it
	// is not asserting whether the IP address is authorized.
	Neutral
	// Pass result is an explicit statement that the client
	// is authorized to inject mail with the given identity.
	Pass
	// Fail result is an explicit statement that the client
	// is not authorized to use the domain in the given identity.
	Fail
	// Softfail result is a weak statement by the publishing ADMD
	// that the host is probably not authorized.
	Softfail
	// Temperror result means the SPF verifier encountered a transient
	// (generally DNS) error while performing the check.
	Temperror
	// Permerror result means the domain's published records could
	// not be correctly interpreted.
	Permerror
)

// String returns string form of the result as defined by RFC7208
// https://tools.ietf.org/html/rfc7208#section-2.6
func (r Result) String() string {
	switch r {
	case None:
		return "none"
	case Neutral:
		return "neutral"
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Softfail:
		return "softfail"
	case Temperror:
		return "temperror"
	case Permerror:
		return "permerror"
	default:
		return strconv.Itoa(int(r))
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts the RFC labels in any letter case, so both
// "softfail" and "SoftFail" decode to Softfail.
func (r *Result) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = 0
		return nil
	}
	switch s := strings.ToLower(string(text)); s {
	case "none":
		*r = None
	case "neutral":
		*r = Neutral
	case "pass":
		*r = Pass
	case "fail":
		*r = Fail
	case "softfail":
		*r = Softfail
	case "temperror":
		*r = Temperror
	case "permerror":
		*r = Permerror
	default:
		i, err := strconv.Atoi(s)
		*r = Result(i)
		return err
	}
	return nil
}

// Checker evaluates SPF policies. A Checker is immutable once created and
// safe for concurrent use: every CheckHost call owns its lookup budget.
type Checker struct {
	resolver      Resolver
	logger        Logger
	listener      Listener
	helo          string
	mxConcurrency int
}

// NewChecker returns a Checker using the system resolver, a no-op logger and
// "unknown" as HELO identity unless overridden by opts.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		resolver: NewDNSResolver(nil),
		logger:   nopLogger{},
		helo:     "unknown",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckHost is a main entrypoint function evaluating e-mail with regard to
// SPF. As per RFC 7208 it accepts 3 parameters:
// <ip> - IP{4,6} address of the connected client
// <domain> - domain portion of the MAIL FROM or HELO identity
// <mailFrom> - MAIL FROM or HELO identity, postmaster@<domain> when empty
//
// CheckHost returns the result of verification, the SPF record found for
// domain and an error describing the cause of non-conclusive results.
// The error is informational, the decision must be taken on the Result.
//
// CheckHost never sets its own deadline; cancel ctx to abandon evaluation.
func (c *Checker) CheckHost(ctx context.Context, ip net.IP, domain, mailFrom string) (Result, string, error) {
	if ip == nil {
		return None, "", ErrInvalidIP
	}
	e := c.newEvaluation(newBudget())
	r, err := e.checkHost(ctx, ip, domain, mailFrom)
	return r, e.record, err
}

// CheckHost evaluates with a one-off Checker built from opts.
func CheckHost(ctx context.Context, ip net.IP, domain, mailFrom string, opts ...Option) (Result, string, error) {
	return NewChecker(opts...).CheckHost(ctx, ip, domain, mailFrom)
}

func (c *Checker) logf(format string, args ...interface{}) {
	c.logger.Log(fmt.Sprintf(format, args...))
}

// isDomainName checks if a string is a presentation-format domain name
// (currently restricted to hostname-compatible "preferred name" LDH labels and
// SRV-like "underscore labels"; see golang.org/issue/12421).
//
// Copied from https://github.com/golang/go/blob/8a16c71067ca2cfd09281a82ee150a408095f0bc/src/net/dnsclient.go#L60
func isDomainName(s string) bool {
	// See RFC 1035, RFC 3696.
	// Presentation format has dots before every label except the first, and the
	// terminal empty label is optional here because we assume fully-qualified
	// (absolute) input. We must therefore reserve space for the first and last
	// labels' length octets in wire format, where they are necessary and the
	// maximum total length is 255.
	// So our _effective_ maximum is 253, but 254 is not rejected if the last
	// character is a dot.
	l := len(s)
	if l == 0 || l > 254 || l == 254 && s[l-1] != '.' {
		return false
	}

	last := byte('.')
	ok := false // Ok once we've seen a letter.
	partlen := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		default:
			return false
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_':
			ok = true
			partlen++
		case '0' <= c && c <= '9':
			// fine
			partlen++
		case c == '-':
			// Byte before dash cannot be dot.
			if last == '.' {
				return false
			}
			partlen++
		case c == '.':
			// Byte before dot cannot be dot, dash.
			if last == '.' || last == '-' {
				return false
			}
			if partlen > 63 || partlen == 0 {
				return false
			}
			partlen = 0
		}
		last = c
	}
	if last == '-' || partlen > 63 {
		return false
	}

	return ok
}
