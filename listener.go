package spfeval

import (
	"net"
)

// Listener receives structured events of an evaluation. Nested include and
// redirect evaluations report their own CheckHost/CheckHostResult pair.
type Listener interface {
	CheckHost(ip net.IP, domain, sender string)
	CheckHostResult(r Result, record string, err error)
	SPFRecord(s string)
	// Directive is called before a term is evaluated; effectiveValue is the
	// macro expanded target, if any.
	Directive(qualifier, mechanism, value, effectiveValue string)
	NonMatch(qualifier, mechanism, value string, result Result, err error)
	Match(qualifier, mechanism, value string, result Result, err error)
	LoopDetected(domain string)
}

func (e *evaluation) fireCheckHost(ip net.IP, domain, sender string) {
	if e.listener == nil {
		return
	}
	e.listener.CheckHost(ip, domain, sender)
}

func (e *evaluation) fireCheckHostResult(r Result, record string, err error) {
	if e.listener == nil {
		return
	}
	e.listener.CheckHostResult(r, record, err)
}

func (e *evaluation) fireSPFRecord(s string) {
	if e.listener == nil {
		return
	}
	e.listener.SPFRecord(s)
}

func (e *evaluation) fireDirective(t *token) {
	if e.listener == nil {
		return
	}
	e.listener.Directive(t.qualifier.String(), t.mechanismName(), t.value, t.domain)
}

func (e *evaluation) fireMatch(t *token, r Result, err error) {
	if e.listener == nil {
		return
	}
	e.listener.Match(t.qualifier.String(), t.mechanismName(), t.value, r, err)
}

func (e *evaluation) fireNonMatch(t *token, r Result, err error) {
	if e.listener == nil {
		return
	}
	e.listener.NonMatch(t.qualifier.String(), t.mechanismName(), t.value, r, err)
}

func (e *evaluation) fireLoopDetected(domain string) {
	if e.listener == nil {
		return
	}
	e.listener.LoopDetected(domain)
}
