package spfeval

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// matchIP evaluates ip4 and ip6 mechanisms. A network of the other address
// family never matches.
func (e *evaluation) matchIP(t *token) (Result, error) {
	if (t.ipnet.IP.To4() != nil) != (e.ip.To4() != nil) {
		e.logf("mech_ip: %s => %s: SKIP", e.ip, t.ipnet)
		return None, nil
	}
	if t.ipnet.Contains(e.ip) {
		e.logf("mech_ip: %s => %s: MATCH!", e.ip, t.ipnet)
		return t.qualifier.result(), nil
	}
	e.logf("mech_ip: %s => %s: NO MATCH", e.ip, t.ipnet)
	return None, nil
}

func (e *evaluation) matchA(ctx context.Context, t *token) (Result, error) {
	e.charge(t)
	domain := e.target(t)
	ips, err := e.lookupIP(ctx, domain)
	if err != nil {
		e.logf("mech_a: %s", err)
		return dnsResult(err)
	}
	if e.matchAddrs(t, ips) {
		e.logf("mech_a: %s => %s: MATCH!", e.ip, domain)
		return t.qualifier.result(), nil
	}
	e.logf("mech_a: %s => %s: NO MATCH", e.ip, domain)
	return None, nil
}

func (e *evaluation) matchMX(ctx context.Context, t *token) (Result, error) {
	e.charge(t)
	domain := e.target(t)
	exchanges, err := e.resolver.LookupMX(ctx, domain)
	if err != nil {
		e.logf("mech_mx: %s", err)
		return dnsResult(err)
	}

	// implicit MX: an exchange that is an address literal needs no lookup
	hosts := exchanges[:0:0]
	for _, mx := range exchanges {
		if net.ParseIP(strings.TrimSuffix(mx, ".")) == nil {
			hosts = append(hosts, mx)
		}
	}
	if len(hosts) > lookupLimit {
		return Permerror, ErrTooManyMXRecords
	}

	ips, err := e.lookupIPs(ctx, hosts)
	if err != nil {
		e.logf("mech_mx: %s", err)
		return Temperror, temporary(err)
	}
	e.logf("mech_mx: mx=%s addresses=%v", strings.Join(hosts, ","), ips)
	if len(ips) == 0 {
		return None, nil
	}
	if e.matchAddrs(t, ips) {
		e.logf("mech_mx: %s => %s: MATCH!", e.ip, domain)
		return t.qualifier.result(), nil
	}
	e.logf("mech_mx: %s => %s: NO MATCH", e.ip, domain)
	return None, nil
}

func (e *evaluation) matchPTR(ctx context.Context, t *token) (Result, error) {
	e.charge(t)
	domain := strings.TrimSuffix(e.target(t), ".")

	names, err := e.resolver.LookupPTR(ctx, e.ip)
	if err != nil {
		e.logf("mech_ptr: lookup=%s => %s", e.ip, err)
		return None, nil
	}
	if len(names) > lookupLimit {
		return Permerror, ErrTooManyPTRRecords
	}
	validated := e.validatedNames(ctx, names)

	// patterns like ptr:*.example.com do not compile
	re, err := regexp.Compile(`(?i)` + strings.ReplaceAll(domain, ".", `\.`) + `$`)
	if err != nil {
		e.logf("mech_ptr: domain=%s: %s", domain, err)
		return Permerror, SyntaxError{t.String(), ErrInvalidPTRPattern}
	}

	for _, name := range validated {
		if re.MatchString(name) {
			e.logf("mech_ptr: %s => %s: MATCH!", name, domain)
			return t.qualifier.result(), nil
		}
		e.logf("mech_ptr: %s => %s: NO MATCH", name, domain)
	}
	return None, nil
}

// validatedNames returns the PTR names resolving back to the connecting IP,
// lowercased and without the trailing dot.
func (e *evaluation) validatedNames(ctx context.Context, names []string) []string {
	validated := make([]string, 0, len(names))
	for _, name := range names {
		ips, err := e.lookupIP(ctx, name)
		if err != nil {
			e.logf("mech_ptr: lookup=%s => %s", name, err)
			continue
		}
		for _, ip := range ips {
			if ip.Equal(e.ip) {
				validated = append(validated, strings.TrimSuffix(strings.ToLower(name), "."))
				break
			}
		}
	}
	return validated
}

func (e *evaluation) matchExists(ctx context.Context, t *token) (Result, error) {
	e.charge(t)
	domain := e.target(t)
	if _, err := e.resolver.LookupA(ctx, domain); err != nil {
		e.logf("mech_exists: %s", err)
		return dnsResult(err)
	}
	e.logf("mech_exists: %s: MATCH!", domain)
	return t.qualifier.result(), nil
}

// include evaluates the included domain against the shared budget. Only a
// Pass is conclusive; an included policy that fails or is neutral lets the
// outer evaluation go on.
func (e *evaluation) include(ctx context.Context, t *token) (Result, error) {
	domain := e.target(t)
	if !e.budget.visit(domain) {
		e.logf("circular reference detected: %s", domain)
		e.fireLoopDetected(domain)
		return None, ErrLoopDetected
	}
	e.charge(t)

	r, err := e.newEvaluation(e.budget).checkHost(ctx, e.ip, domain, e.mailFrom)
	e.logf("mech_include: domain=%s returned=%s", domain, r)
	switch r {
	case Pass:
		return Pass, nil
	case Fail, Softfail, Neutral:
		return None, nil
	case Temperror:
		return Temperror, err
	default:
		return Permerror, err
	}
}

// redirect replaces the current evaluation with the one of the target
// domain.
func (e *evaluation) redirect(ctx context.Context, t *token) (Result, error) {
	domain := e.target(t)
	if !e.budget.visit(domain) {
		e.logf("circular reference detected: %s", domain)
		e.fireLoopDetected(domain)
		return None, ErrLoopDetected
	}
	e.charge(t)
	return e.newEvaluation(e.budget).checkHost(ctx, e.ip, domain, e.mailFrom)
}

// charge accounts for t in the shared lookup budget.
func (e *evaluation) charge(t *token) {
	if t.mechanism.consumesLookup() {
		e.budget.consume()
	}
}

// lookupIP resolves host to addresses of the connecting IP's family.
func (e *evaluation) lookupIP(ctx context.Context, host string) ([]net.IP, error) {
	if e.ip.To4() != nil {
		return e.resolver.LookupA(ctx, host)
	}
	return e.resolver.LookupAAAA(ctx, host)
}

// lookupIPs resolves every host concurrently. Hosts without addresses are
// skipped; any other failure aborts the whole resolution.
func (e *evaluation) lookupIPs(ctx context.Context, hosts []string) ([]net.IP, error) {
	g, gctx := errgroup.WithContext(ctx)
	if e.mxConcurrency > 0 {
		g.SetLimit(e.mxConcurrency)
	}
	found := make([][]net.IP, len(hosts))
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			ips, err := e.lookupIP(gctx, host)
			if errors.Is(err, ErrDNSNotFound) {
				return nil
			}
			found[i] = ips
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, f := range found {
		ips = append(ips, f...)
	}
	return ips, nil
}

// matchAddrs reports whether the connecting IP equals one of ips or, when
// the term carries a prefix length for the connecting IP's family, falls
// into the network of one of them.
func (e *evaluation) matchAddrs(t *token, ips []net.IP) bool {
	ones, bits := t.cidr6, 8*net.IPv6len
	if e.ip.To4() != nil {
		ones, bits = t.cidr4, 8*net.IPv4len
	}
	for _, ip := range ips {
		if ones < 0 {
			if ip.Equal(e.ip) {
				return true
			}
			continue
		}
		mask := net.CIDRMask(ones, bits)
		n := net.IPNet{IP: ip.Mask(mask), Mask: mask}
		if n.IP != nil && n.Contains(e.ip) {
			return true
		}
	}
	return false
}
