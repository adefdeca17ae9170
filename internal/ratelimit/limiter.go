// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter limits HTTP requests per host with a token bucket per host.
// The ajax offer source uses it so polling several items never bursts
// requests at the storefront.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing requestsPerSecond per host.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1.0
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL may proceed.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		// unparseable urls fail in the client
		return nil
	}
	return l.limiter(host).Wait(ctx)
}

// Allow reports whether a request to rawURL may proceed now.
func (l *HostLimiter) Allow(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return true
	}
	return l.limiter(host).Allow()
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.perHost, l.burst)
	l.limiters[host] = lim
	return lim
}

// SetLimit changes the rate for one host.
func (l *HostLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	host = strings.ToLower(host)
	if lim, ok := l.limiters[host]; ok {
		lim.SetLimit(rate.Limit(requestsPerSecond))
		lim.SetBurst(burst)
		return
	}
	l.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
