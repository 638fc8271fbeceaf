package spfeval

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

type MiekgDNSResolverOption func(r *miekgDNSResolver)

// MiekgDNSClient replaces the client used for the network c.Net ("udp" or
// "tcp").
func MiekgDNSClient(c *dns.Client) MiekgDNSResolverOption {
	return func(r *miekgDNSResolver) {
		if c == nil {
			return
		}
		if r.dnsClients == nil {
			r.dnsClients = make(map[string]*dns.Client)
		}
		if c.Net == "" {
			c.Net = "udp"
		}
		r.dnsClients[c.Net] = c
	}
}

// MiekgDNSTimeout sets the timeout of a single exchange of every client.
// Options are applied in order, so it affects clients set before it only.
func MiekgDNSTimeout(d time.Duration) MiekgDNSResolverOption {
	return func(r *miekgDNSResolver) {
		if d <= 0 {
			return
		}
		for _, c := range r.dnsClients {
			c.Timeout = d
		}
	}
}

// NewMiekgDNSResolver returns new instance of Resolver querying the server
// at addr (host:port) with github.com/miekg/dns clients.
func NewMiekgDNSResolver(addr string, opts ...MiekgDNSResolverOption) (Resolver, error) {
	if _, _, e := net.SplitHostPort(addr); e != nil {
		return nil, e
	}
	r := &miekgDNSResolver{
		dnsClients: map[string]*dns.Client{
			"udp": {Net: "udp"},
			"tcp": {Net: "tcp"},
		},
		serverAddr: addr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// miekgDNSResolver implements Resolver using github.com/miekg/dns
type miekgDNSResolver struct {
	dnsClients map[string]*dns.Client
	serverAddr string
}

// If the DNS lookup returns a server failure (RCODE 2) or some other
// error (RCODE other than 0 or 3), or if the lookup times out, then
// check_host() terminates immediately with the result "temperror".
// From RFC 7208:
// Several mechanisms rely on information fetched from the DNS.  For
// these DNS queries, except where noted, if the DNS server returns an
// error (RCODE other than 0 or 3) or the query times out, the mechanism
// stops and the topmost check_host() returns "temperror".  If the
// server returns "Name Error" (RCODE 3), then evaluation of the
// mechanism continues as if the server returned no error (RCODE 0) and
// zero answer records.
func (r *miekgDNSResolver) exchange(ctx context.Context, name string, qType uint16) (*dns.Msg, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qType)
	req.SetEdns0(dns.DefaultMsgSize, false)

	var (
		res *dns.Msg
		err error
	)
	for _, n := range []string{"udp", "tcp"} {
		dnsClient, found := r.dnsClients[n]
		if !found {
			continue
		}
		res, _, err = dnsClient.ExchangeContext(ctx, req, r.serverAddr)
		var nErr net.Error
		if errors.As(err, &nErr) && nErr.Timeout() && ctx.Err() == nil {
			continue
		}
		if err == nil && res.Truncated {
			continue
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDNSTemperror, err)
	}
	switch res.Rcode {
	case dns.RcodeSuccess:
		return res, nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s %s: NXDOMAIN", ErrDNSNotFound, dns.TypeToString[qType], name)
	default:
		return nil, fmt.Errorf("%w: %s %s: %s", ErrDNSTemperror, dns.TypeToString[qType], name, dns.RcodeToString[res.Rcode])
	}
}

func noData(qType uint16, name string) error {
	return fmt.Errorf("%w: %s %s: no data", ErrDNSNotFound, dns.TypeToString[qType], name)
}

// LookupTXT returns the DNS TXT records for the given domain name. The
// character-strings of a record are concatenated.
func (r *miekgDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	res, err := r.exchange(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	txts := make([]string, 0, len(res.Answer))
	for _, a := range res.Answer {
		if r, ok := a.(*dns.TXT); ok {
			txts = append(txts, strings.Join(r.Txt, ""))
		}
	}
	if len(txts) == 0 {
		return nil, noData(dns.TypeTXT, name)
	}
	return txts, nil
}

func (r *miekgDNSResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	res, err := r.exchange(ctx, name, dns.TypeA)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(res.Answer))
	for _, rr := range res.Answer {
		// CNAMEs are followed by the server
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}
	if len(ips) == 0 {
		return nil, noData(dns.TypeA, name)
	}
	return ips, nil
}

func (r *miekgDNSResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	res, err := r.exchange(ctx, name, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(res.Answer))
	for _, rr := range res.Answer {
		if a, ok := rr.(*dns.AAAA); ok {
			ips = append(ips, a.AAAA)
		}
	}
	if len(ips) == 0 {
		return nil, noData(dns.TypeAAAA, name)
	}
	return ips, nil
}

// LookupMX returns the exchange names of the domain, in answer order.
func (r *miekgDNSResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	res, err := r.exchange(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(res.Answer))
	for _, rr := range res.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			hosts = append(hosts, mx.Mx)
		}
	}
	if len(hosts) == 0 {
		return nil, noData(dns.TypeMX, name)
	}
	return hosts, nil
}

// LookupPTR returns the DNS PTR records for the given IP.
func (r *miekgDNSResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	name, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIP, err)
	}
	res, err := r.exchange(ctx, name, dns.TypePTR)
	if err != nil {
		return nil, err
	}

	ptrs := make([]string, 0, len(res.Answer))
	for _, a := range res.Answer {
		if r, ok := a.(*dns.PTR); ok {
			ptrs = append(ptrs, r.Ptr)
		}
	}
	if len(ptrs) == 0 {
		return nil, noData(dns.TypePTR, name)
	}
	return ptrs, nil
}
