package spfeval

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

type retryResolver struct {
	min    time.Duration
	max    time.Duration
	factor float64
	jitter bool
	rr     []Resolver
}

type RetryResolverOption func(r *retryResolver)

func BackoffDelayMin(d time.Duration) RetryResolverOption {
	return func(r *retryResolver) {
		if d <= 0 {
			return
		}
		r.min = d
	}
}

func BackoffFactor(f float64) RetryResolverOption {
	return func(r *retryResolver) {
		if f <= 0 {
			return
		}
		r.factor = f
	}
}

func BackoffJitter(b bool) RetryResolverOption {
	return func(r *retryResolver) {
		r.jitter = b
	}
}

// BackoffTimeout bounds the time spent retrying a single lookup.
func BackoffTimeout(d time.Duration) RetryResolverOption {
	return func(r *retryResolver) {
		if d <= 0 {
			d = 2 * time.Second
		}
		r.max = d
	}
}

// NewRetryResolver implements round-robin retry with backoff delay.
// Only temporary errors are retried; a done context stops retrying at once.
func NewRetryResolver(rr []Resolver, opts ...RetryResolverOption) Resolver {
	resolver := &retryResolver{
		min:    100 * time.Millisecond,
		max:    2 * time.Second,
		factor: 2,
		jitter: true,
		rr:     rr,
	}

	for _, opt := range opts {
		opt(resolver)
	}
	return resolver
}

// retry calls lookup with every resolver in turn until one of them returns
// something other than a temporary error, the time budget is spent or ctx
// is done.
func retry[T any](ctx context.Context, r *retryResolver, lookup func(Resolver) (T, error)) (T, error) {
	expired := r.expiredFunc()
	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		for _, next := range r.rr {
			v, err = lookup(next)
			if !errors.Is(err, ErrDNSTemperror) || expired() || ctx.Err() != nil {
				return v, err
			}
		}
		if len(r.rr) == 0 {
			return v, ErrDNSTemperror
		}
		t := time.NewTimer(r.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return v, err
		case <-t.C:
		}
	}
}

// LookupTXT returns the DNS TXT records for the given domain name.
func (r *retryResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return retry(ctx, r, func(next Resolver) ([]string, error) {
		return next.LookupTXT(ctx, name)
	})
}

func (r *retryResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	return retry(ctx, r, func(next Resolver) ([]net.IP, error) {
		return next.LookupA(ctx, name)
	})
}

func (r *retryResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	return retry(ctx, r, func(next Resolver) ([]net.IP, error) {
		return next.LookupAAAA(ctx, name)
	})
}

func (r *retryResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	return retry(ctx, r, func(next Resolver) ([]string, error) {
		return next.LookupMX(ctx, name)
	})
}

func (r *retryResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	return retry(ctx, r, func(next Resolver) ([]string, error) {
		return next.LookupPTR(ctx, ip)
	})
}

func (r *retryResolver) expiredFunc() func() bool {
	start := time.Now()
	return func() bool {
		return time.Since(start) > r.max
	}
}

// backoff calculates timeout for the next attempt. Attempt should be zero based.
// Adapted from https://github.com/jpillora/backoff/blob/master/backoff.go
func (r *retryResolver) backoff(attempt int) time.Duration {
	if r.min >= r.max {
		// short-circuit
		return r.max
	}
	const maxInt64 = float64(math.MaxInt64 - 512)

	// calculate this duration
	minf := float64(r.min)
	durf := minf * math.Pow(r.factor, float64(attempt))
	if r.jitter {
		durf = rand.Float64()*(durf-minf) + minf
	}
	// ensure float64 wont overflow int64
	if durf > maxInt64 {
		return r.max
	}
	dur := time.Duration(durf)
	// keep within bounds
	if dur < r.min {
		return r.min
	} else if dur > r.max {
		return r.max
	}
	return dur
}
