package crawl

import (
	"context"
	"sync"

	"github.com/fwojciec/sitemd"
	"golang.org/x/time/rate"
)

var _ sitemd.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces out requests to each host with a token bucket of
// burst 1. Hosts are compared including the port, matching the crawler's
// same-domain rule. A non-positive rate disables limiting.
type DomainLimiter struct {
	rps float64

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewDomainLimiter creates a DomainLimiter allowing rps requests per second
// to each host.
func NewDomainLimiter(rps float64) *DomainLimiter {
	return &DomainLimiter{rps: rps, hosts: make(map[string]*rate.Limiter)}
}

// Wait blocks until host may be requested again or ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d.rps <= 0 {
		return ctx.Err()
	}
	return d.limiter(host).Wait(ctx)
}

func (d *DomainLimiter) limiter(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.hosts[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.rps), 1)
		d.hosts[host] = l
	}
	return l
}
