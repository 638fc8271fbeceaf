package spfeval

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StdResolver is the subset of *net.Resolver methods used by DNSResolver.
// Test doubles such as github.com/foxcpp/go-mockdns satisfy it as well.
type StdResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// DNSResolver implements Resolver on top of a StdResolver, the system
// resolver by default.
type DNSResolver struct {
	r StdResolver
}

// NewDNSResolver wraps r. A nil r means net.DefaultResolver.
func NewDNSResolver(r StdResolver) *DNSResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSResolver{r: r}
}

// errDNS classifies errors of the standard resolver.
//
// Upon RCODE 3 return code we should return None result and pretend no
// records were found. From RFC7208:
// If the server returns "Name Error" (RCODE 3), then evaluation of
// the mechanism continues as if the server returned no error (RCODE
// 0) and zero answer records.
func errDNS(e error) error {
	if e == nil {
		return nil
	}
	var dnsErr *net.DNSError
	if errors.As(e, &dnsErr) && (dnsErr.IsNotFound || dnsErr.Err == "no such host") {
		return fmt.Errorf("%w: %w", ErrDNSNotFound, e)
	}
	return fmt.Errorf("%w: %w", ErrDNSTemperror, e)
}

// LookupTXT returns the DNS TXT records for the given domain name.
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	txts, err := r.r.LookupTXT(ctx, name)
	if err != nil {
		return nil, errDNS(err)
	}
	return txts, nil
}

func (r *DNSResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	return r.lookupIP(ctx, name, true)
}

func (r *DNSResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	return r.lookupIP(ctx, name, false)
}

// lookupIP keeps the addresses of a single family; an answer holding none
// of them is reported as no data.
func (r *DNSResolver) lookupIP(ctx context.Context, name string, v4 bool) ([]net.IP, error) {
	addrs, err := r.r.LookupIPAddr(ctx, name)
	if err != nil {
		return nil, errDNS(err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if (a.IP.To4() != nil) == v4 {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses of the requested family", ErrDNSNotFound, name)
	}
	return ips, nil
}

// LookupMX returns the exchange names of the domain.
func (r *DNSResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	mxs, err := r.r.LookupMX(ctx, name)
	if err != nil {
		return nil, errDNS(err)
	}
	hosts := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		hosts = append(hosts, mx.Host)
	}
	return hosts, nil
}

// LookupPTR returns the names ip reverse-resolves to.
func (r *DNSResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	names, err := r.r.LookupAddr(ctx, ip.String())
	if err != nil {
		return nil, errDNS(err)
	}
	return names, nil
}
