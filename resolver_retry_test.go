package spfeval

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// brokenResolver fails c times with a temporary error, then returns e.
type brokenResolver struct {
	d   time.Duration
	c   int
	e   error
	try *int
}

func (r *brokenResolver) error() error {
	*r.try++
	if r.c == 0 {
		return r.e
	}
	time.Sleep(r.d)
	r.c--
	return ErrDNSTemperror
}

func (r *brokenResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if err := r.error(); err != nil {
		return nil, err
	}
	return []string{"v=spf1 -all"}, nil
}

func (r *brokenResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	if err := r.error(); err != nil {
		return nil, err
	}
	return []net.IP{net.IPv4(192, 0, 2, 1)}, nil
}

func (r *brokenResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	return nil, r.error()
}

func (r *brokenResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	return nil, r.error()
}

func (r *brokenResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	return nil, r.error()
}

func TestRetryResolver_LookupA(t *testing.T) {
	lastErr := errors.New("last error")

	var tries int
	tests := []struct {
		name  string
		r     Resolver
		d     time.Duration
		e     error
		tries int
	}{
		{"non temporary error is returned", NewRetryResolver([]Resolver{
			&brokenResolver{c: 1, e: lastErr, try: &tries},
			&brokenResolver{c: 1, e: lastErr, try: &tries},
		}), time.Second, lastErr, 3},
		{"not found is not retried", NewRetryResolver([]Resolver{
			&brokenResolver{c: 0, e: ErrDNSNotFound, try: &tries},
			&brokenResolver{c: 0, e: nil, try: &tries},
		}), 100 * time.Millisecond, ErrDNSNotFound, 1},
		{"second resolver answers", NewRetryResolver([]Resolver{
			&brokenResolver{c: 5, e: nil, try: &tries},
			&brokenResolver{c: 0, e: nil, try: &tries},
		}), 100 * time.Millisecond, nil, 2},
		{"expired", NewRetryResolver([]Resolver{
			&brokenResolver{c: 100, d: 100 * time.Millisecond, try: &tries},
			&brokenResolver{c: 100, d: 100 * time.Millisecond, try: &tries},
		}, BackoffTimeout(300*time.Millisecond), BackoffJitter(false)), time.Second, ErrDNSTemperror, 6},
		{"no resolvers", NewRetryResolver(nil), 100 * time.Millisecond, ErrDNSTemperror, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tries = 0
			start := time.Now()
			_, err := tt.r.LookupA(context.Background(), "domain.")
			if !errors.Is(err, tt.e) || (tt.e == nil) != (err == nil) {
				t.Errorf("LookupA() error = %v, wantErr %v", err, tt.e)
				return
			}
			if d := time.Since(start); d > tt.d {
				t.Errorf("LookupA() timeout = %v, want %v", d, tt.d)
			}
			if tries > tt.tries {
				t.Errorf("LookupA() tries = %v, want %v", tries, tt.tries)
			}
		})
	}
}

func TestRetryResolver_ContextDone(t *testing.T) {
	var tries int
	r := NewRetryResolver([]Resolver{
		&brokenResolver{c: 1000, try: &tries},
	}, BackoffDelayMin(50*time.Millisecond), BackoffTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.LookupTXT(ctx, "domain.")
	assert.ErrorIs(t, err, ErrDNSTemperror)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, tries, 1)
}

func TestRetryResolver_CheckHost(t *testing.T) {
	var tries int
	r := NewRetryResolver([]Resolver{
		&brokenResolver{c: 1, try: &tries},
		&brokenResolver{c: 0, try: &tries},
	}, BackoffDelayMin(10*time.Millisecond))

	got, _, err := CheckHost(context.Background(), net.ParseIP("192.0.2.1"), "example.org", "", WithResolver(r))
	assert.Equal(t, Fail, got)
	assert.NoError(t, err)
}

func TestRetryResolver_Backoff(t *testing.T) {
	r := NewRetryResolver(nil,
		BackoffDelayMin(100*time.Millisecond),
		BackoffFactor(2),
		BackoffJitter(false),
		BackoffTimeout(time.Second),
	).(*retryResolver)

	assert.Equal(t, 100*time.Millisecond, r.backoff(0))
	assert.Equal(t, 200*time.Millisecond, r.backoff(1))
	assert.Equal(t, 800*time.Millisecond, r.backoff(3))
	assert.Equal(t, time.Second, r.backoff(10))
}
