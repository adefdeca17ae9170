// Package proxy rotates the browser through a list of proxy servers.
package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a proxy is skipped after it failed.
const DefaultCooldown = 5 * time.Minute

// Pool hands out proxies round robin, skipping ones that failed recently.
type Pool struct {
	proxies  []string
	index    int
	cooldown time.Duration
	failed   map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewPool returns a pool over proxies. Blank entries are dropped.
func NewPool(proxies []string) *Pool {
	var list []string
	for _, p := range proxies {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return &Pool{
		proxies:  list,
		cooldown: DefaultCooldown,
		failed:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Parse splits a comma separated proxy list.
func Parse(list string) *Pool {
	return NewPool(strings.Split(list, ","))
}

// Len returns the number of proxies.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the next proxy not cooling down. When every proxy failed
// recently it returns the next one in order anyway. It returns "" for an
// empty pool.
func (p *Pool) Next() string {
	if p.Len() == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	first := p.proxies[p.index]
	for range p.proxies {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		failedAt, ok := p.failed[proxy]
		if !ok {
			return proxy
		}
		if p.now().Sub(failedAt) >= p.cooldown {
			delete(p.failed, proxy)
			return proxy
		}
	}
	return first
}

// MarkFailed puts proxy on cooldown.
func (p *Pool) MarkFailed(proxy string) {
	if p.Len() == 0 || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *Pool) MarkHealthy(proxy string) {
	if p.Len() == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
