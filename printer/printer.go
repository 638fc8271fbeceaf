// Package printer renders an SPF evaluation as an indented trace. A Printer
// is both the spfeval.Listener and a decorator of the spfeval.Resolver used
// for the evaluation, so lookups show up under the term issuing them.
package printer

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/redsift/spfeval"
)

func New(w io.Writer, r spfeval.Resolver) *Printer {
	return &Printer{
		w: w,
		r: r,
	}
}

type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	c       int
	r       spfeval.Resolver
	lookups int
}

func (p *Printer) printf(extra string, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s%s", strings.Repeat("  ", p.c), extra)
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) CheckHost(ip net.IP, domain, sender string) {
	p.printf("", "CHECK_HOST(%q, %q, %q)\n", ip, domain, sender)
	p.mu.Lock()
	p.c++
	p.mu.Unlock()
}

func (p *Printer) SPFRecord(s string) {
	p.printf("", "SPF: %s\n", s)
}

func (p *Printer) CheckHostResult(r spfeval.Result, record string, err error) {
	p.mu.Lock()
	if p.c > 0 {
		p.c--
	}
	p.mu.Unlock()
	p.printf("", "= %s, %v\n", r, err)
}

func (p *Printer) Directive(qualifier, mechanism, value, effectiveValue string) {
	if qualifier == "+" {
		qualifier = ""
	}
	if !spfeval.IsKnownMechanism(mechanism) {
		// modifier values are printed as written
		value = "=" + value
	}
	if effectiveValue != "" {
		effectiveValue = " (" + effectiveValue + ")"
	}
	p.printf("", "%s%s%s%s\n", qualifier, mechanism, value, effectiveValue)
}

func (p *Printer) NonMatch(qualifier, mechanism, value string, result spfeval.Result, err error) {
	if err != nil {
		p.printf("  ", "no match: %v\n", err)
	}
}

func (p *Printer) Match(qualifier, mechanism, value string, result spfeval.Result, err error) {
	p.printf("  ", "match: %s\n", result)
}

func (p *Printer) LoopDetected(domain string) {
	p.printf("  ", "loop: %s\n", domain)
}

// LookupsCount returns the number of DNS lookups made through p.
func (p *Printer) LookupsCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups
}

func (p *Printer) lookup(qType, name string) {
	p.mu.Lock()
	p.lookups++
	p.mu.Unlock()
	p.printf("  ", "lookup(%s) %s\n", qType, name)
}

func (p *Printer) LookupTXT(ctx context.Context, name string) ([]string, error) {
	p.lookup("TXT", name)
	return p.r.LookupTXT(ctx, name)
}

func (p *Printer) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	p.lookup("A", name)
	return p.r.LookupA(ctx, name)
}

func (p *Printer) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	p.lookup("AAAA", name)
	return p.r.LookupAAAA(ctx, name)
}

func (p *Printer) LookupMX(ctx context.Context, name string) ([]string, error) {
	p.lookup("MX", name)
	return p.r.LookupMX(ctx, name)
}

func (p *Printer) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	p.lookup("PTR", ip.String())
	return p.r.LookupPTR(ctx, ip)
}
