package spfeval

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// evaluation holds the state of a single check_host() run. Nested include
// and redirect runs get their own evaluation sharing the parent's budget.
type evaluation struct {
	*Checker
	budget *budget

	ip       net.IP
	domain   string
	mailFrom string
	record   string
}

func (c *Checker) newEvaluation(b *budget) *evaluation {
	return &evaluation{Checker: c, budget: b}
}

// checkHost implements check_host() as defined in RFC 7208 section 4.
func (e *evaluation) checkHost(ctx context.Context, ip net.IP, domain, mailFrom string) (r Result, err error) {
	e.fireCheckHost(ip, domain, mailFrom)
	defer func() {
		e.logf("check_host(%s, %s) = %s", ip, domain, r)
		e.fireCheckHostResult(r, e.record, err)
	}()

	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	e.ip = ip
	e.domain = strings.ToLower(domain)
	e.mailFrom = strings.ToLower(mailFrom)
	if e.mailFrom == "" {
		e.mailFrom = "postmaster@" + e.domain
	}
	e.logf("ip=%s domain=%s mail_from=%s", e.ip, e.domain, e.mailFrom)

	fqdn, ok := toASCIIDomain(e.domain)
	if !ok {
		return None, newInvalidDomainError(domain)
	}

	if err := ctx.Err(); err != nil {
		return Temperror, fmt.Errorf("%w: %w", ErrDNSTemperror, err)
	}
	record, err := e.fetchRecord(ctx, fqdn)
	switch {
	case err == nil:
	case errors.Is(err, ErrSPFNotFound), errors.Is(err, ErrDNSNotFound):
		e.logf("no SPF record for %s: %s", fqdn, err)
		return None, err
	case errors.Is(err, ErrTooManySPFRecords):
		return Permerror, err
	default:
		e.logf("error looking up TXT record: %s", err)
		return Temperror, temporary(err)
	}

	e.record = record
	e.fireSPFRecord(record)

	mechanisms, modifiers, err := e.lex(record)
	if err != nil {
		return Permerror, err
	}
	e.logf("SPF record for '%s' validated OK", e.domain)

	for _, t := range mechanisms {
		if r, err := e.checkpoint(ctx); r != None {
			return r, err
		}
		e.logf("running mechanism: %s domain=%s", t, e.domain)
		e.fireDirective(t)
		r, err := e.evaluateMechanism(ctx, t)
		if r != None {
			e.fireMatch(t, r, err)
			return r, err
		}
		e.fireNonMatch(t, r, err)
	}

	for _, t := range modifiers {
		if t.mechanism != tRedirect {
			// v and exp carry no behavior
			continue
		}
		if r, err := e.checkpoint(ctx); r != None {
			return r, err
		}
		e.logf("running modifier: %s domain=%s", t, e.domain)
		e.fireDirective(t)
		r, err := e.redirect(ctx, t)
		if r == None && errors.Is(err, ErrLoopDetected) {
			// nothing was evaluated, fall back to the default result
			e.fireNonMatch(t, r, err)
			continue
		}
		if r != None {
			e.fireMatch(t, r, err)
		} else {
			e.fireNonMatch(t, r, err)
		}
		return r, err
	}

	return Neutral, nil
}

// checkpoint runs before every term. It returns a result other than None
// once the caller gave up or the lookup budget is spent.
func (e *evaluation) checkpoint(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Temperror, fmt.Errorf("%w: %w", ErrDNSTemperror, err)
	}
	if e.budget.exceeded() {
		e.logf("lookup limit reached")
		return Permerror, ErrDNSLimitExceeded
	}
	return None, nil
}

func (e *evaluation) evaluateMechanism(ctx context.Context, t *token) (Result, error) {
	switch t.mechanism {
	case tAll:
		return t.qualifier.result(), nil
	case tIP4, tIP6:
		return e.matchIP(t)
	case tA:
		return e.matchA(ctx, t)
	case tMX:
		return e.matchMX(ctx, t)
	case tPTR:
		return e.matchPTR(ctx, t)
	case tExists:
		return e.matchExists(ctx, t)
	case tInclude:
		return e.include(ctx, t)
	}
	return Permerror, SyntaxError{t.String(), ErrSyntaxError}
}

// target returns the domain a term applies to.
func (e *evaluation) target(t *token) string {
	if t.domain != "" {
		return t.domain
	}
	return e.domain
}

// dnsResult classifies a failed lookup: absent data means no opinion,
// anything else is temporary.
func dnsResult(err error) (Result, error) {
	if errors.Is(err, ErrDNSNotFound) {
		return None, err
	}
	return Temperror, temporary(err)
}

// temporary makes sure err is recognized as ErrDNSTemperror.
func temporary(err error) error {
	if errors.Is(err, ErrDNSTemperror) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDNSTemperror, err)
}
