// Package testing runs an in-process DNS server with handlers answering
// from static zones, for resolver tests.
package testing

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// StartDNSServer serves dns.DefaultServeMux on laddr and returns once the
// server accepts queries.
func StartDNSServer(network string, laddr string) (*dns.Server, error) {
	var server *dns.Server
	switch network {
	case "tcp", "tcp4", "tcp6":
		l, err := net.Listen(network, laddr)
		if err != nil {
			return nil, err
		}
		server = &dns.Server{Listener: l, ReadTimeout: time.Second, WriteTimeout: time.Second}
	default:
		pc, err := net.ListenPacket(network, laddr)
		if err != nil {
			return nil, err
		}
		server = &dns.Server{PacketConn: pc, ReadTimeout: time.Second, WriteTimeout: time.Second}
	}

	waitLock := sync.Mutex{}
	waitLock.Lock()
	server.NotifyStartedFunc = waitLock.Unlock

	go func() {
		_ = server.ActivateAndServe()
	}()

	waitLock.Lock()
	return server, nil
}

// RootZone answers "." with a SOA and anything else with NXDOMAIN.
func RootZone(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	switch req.Question[0].Name {
	case ".":
		m.SetReply(req)
		rr, _ := dns.NewRR(". 0 IN SOA a.root-servers.net. nstld.verisign-grs.com. 2016110600 1800 900 604800 86400")
		m.Ns = []dns.RR{rr}
	default:
		m.SetRcode(req, dns.RcodeNameError)
	}
	_ = w.WriteMsg(m)
}

func WithDelay(f dns.HandlerFunc, d time.Duration) dns.HandlerFunc {
	return func(writer dns.ResponseWriter, msg *dns.Msg) {
		time.Sleep(d)
		f(writer, msg)
	}
}

// Rcode answers every query with the given response code and no records.
func Rcode(rcode int) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(req, rcode)
		_ = w.WriteMsg(m)
	}
}

// TruncatedOverUDP answers UDP queries with an empty truncated reply and
// lets f answer queries arriving over TCP.
func TruncatedOverUDP(f dns.HandlerFunc) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		if _, ok := w.RemoteAddr().(*net.UDPAddr); ok {
			m := new(dns.Msg)
			m.SetReply(req)
			m.Truncated = true
			_ = w.WriteMsg(m)
			return
		}
		f(w, req)
	}
}

// Zone answers from records in presentation format, keyed by query type.
// Records not owned by the query name are left out.
func Zone(zone map[uint16][]string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)

		rr, ok := zone[req.Question[0].Qtype]
		if !ok {
			_ = w.WriteMsg(m)
			return
		}
		m.Answer = make([]dns.RR, 0, len(rr))
		for _, r := range rr {
			if !strings.HasPrefix(r, req.Question[0].Name) {
				continue
			}
			a, err := dns.NewRR(r)
			if err != nil {
				fmt.Printf("unable to prepare dns response: %s\n", err)
				continue
			}
			m.Answer = append(m.Answer, a)
		}
		_ = w.WriteMsg(m)
	}
}
