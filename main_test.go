package spfeval

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/foxcpp/go-mockdns"
	"github.com/miekg/dns"

	testing2 "github.com/redsift/spfeval/testing"
)

var (
	testResolver Resolver
	// testTCP reports whether a TCP server listens next to the UDP one
	testTCP bool
)

func TestMain(m *testing.M) {
	s, err := testing2.StartDNSServer("udp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Errorf("unable to run local DNS server: %w", err))
	}
	addr := s.PacketConn.LocalAddr().String()

	// same port over TCP for truncated answers; tests needing it skip otherwise
	ts, err := testing2.StartDNSServer("tcp", addr)
	testTCP = err == nil

	dns.HandleFunc(".", testing2.RootZone)

	testResolver, _ = NewMiekgDNSResolver(addr)

	code := m.Run()

	dns.HandleRemove(".")
	_ = s.Shutdown()
	if testTCP {
		_ = ts.Shutdown()
	}
	os.Exit(code)
}

var errTemporary = &net.DNSError{Err: "server misbehaving", Name: "servfail", IsTemporary: true}

func mockResolver(zones map[string]mockdns.Zone) Resolver {
	return NewDNSResolver(&mockdns.Resolver{Zones: zones})
}

// countingResolver counts queries passed to the wrapped Resolver.
type countingResolver struct {
	Resolver
	txt, a, aaaa, mx, ptr int32
}

func (r *countingResolver) total() int32 {
	return atomic.LoadInt32(&r.txt) + atomic.LoadInt32(&r.a) + atomic.LoadInt32(&r.aaaa) +
		atomic.LoadInt32(&r.mx) + atomic.LoadInt32(&r.ptr)
}

func (r *countingResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	atomic.AddInt32(&r.txt, 1)
	return r.Resolver.LookupTXT(ctx, name)
}

func (r *countingResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	atomic.AddInt32(&r.a, 1)
	return r.Resolver.LookupA(ctx, name)
}

func (r *countingResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	atomic.AddInt32(&r.aaaa, 1)
	return r.Resolver.LookupAAAA(ctx, name)
}

func (r *countingResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	atomic.AddInt32(&r.mx, 1)
	return r.Resolver.LookupMX(ctx, name)
}

func (r *countingResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	atomic.AddInt32(&r.ptr, 1)
	return r.Resolver.LookupPTR(ctx, ip)
}

// recordingListener keeps every event as a line of text.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *recordingListener) CheckHost(ip net.IP, domain, sender string) {
	l.add("check_host %s %s %s", ip, domain, sender)
}

func (l *recordingListener) CheckHostResult(r Result, record string, err error) {
	l.add("result %s %q", r, record)
}

func (l *recordingListener) SPFRecord(s string) {
	l.add("record %s", s)
}

func (l *recordingListener) Directive(qualifier, mechanism, value, effectiveValue string) {
	l.add("directive %s%s%s %s", qualifier, mechanism, value, effectiveValue)
}

func (l *recordingListener) NonMatch(qualifier, mechanism, value string, result Result, err error) {
	l.add("nonmatch %s%s%s", qualifier, mechanism, value)
}

func (l *recordingListener) Match(qualifier, mechanism, value string, result Result, err error) {
	l.add("match %s%s%s %s", qualifier, mechanism, value, result)
}

func (l *recordingListener) LoopDetected(domain string) {
	l.add("loop %s", domain)
}
