package http1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Resolver turns a host name into an IP address. Results are pinned per
// pin ID so that one client connection keeps dialing the same address
// across reconnects.
type Resolver interface {
	Resolve(ctx context.Context, host, pinID string) (string, error)
	Release(pinID string)
}

// resolvedHost holds one lookup result.
type resolvedHost struct {
	host     string
	ips      []string
	pinnedIP string
	cachedAt time.Time
	ttl      time.Duration
}

func (r *resolvedHost) isExpired(now time.Time) bool {
	return now.After(r.cachedAt.Add(r.ttl))
}

// CachingResolver resolves hosts with a TTL cache and per-pin results.
type CachingResolver struct {
	cache      map[string]*resolvedHost            // host -> cached resolution
	pins       map[string]map[string]*resolvedHost // pinID -> host -> pinned resolution
	mu         sync.RWMutex
	lookupFunc func(ctx context.Context, host string) ([]string, error)
	defaultTTL time.Duration
	logger     *slog.Logger
}

// ResolverOption configures a CachingResolver.
type ResolverOption func(*CachingResolver)

// WithLookupFunc sets the lookup function (useful for testing).
func WithLookupFunc(fn func(ctx context.Context, host string) ([]string, error)) ResolverOption {
	return func(r *CachingResolver) {
		r.lookupFunc = fn
	}
}

// WithDefaultTTL sets the cache TTL.
func WithDefaultTTL(ttl time.Duration) ResolverOption {
	return func(r *CachingResolver) {
		r.defaultTTL = ttl
	}
}

// NewCachingResolver creates a resolver backed by net.DefaultResolver.
func NewCachingResolver(logger *slog.Logger, opts ...ResolverOption) *CachingResolver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &CachingResolver{
		cache:      make(map[string]*resolvedHost),
		pins:       make(map[string]map[string]*resolvedHost),
		lookupFunc: net.DefaultResolver.LookupHost,
		defaultTTL: 30 * time.Second,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the IP for host. IP literals are returned unchanged.
// For a given pinID and host the same IP is returned until Release, even
// if the cache entry has since expired or changed.
func (r *CachingResolver) Resolve(ctx context.Context, host, pinID string) (string, error) {
	if host == "" {
		return "", errors.New("dns: empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	r.mu.RLock()
	if pins, ok := r.pins[pinID]; ok {
		if pinned, ok := pins[host]; ok {
			r.mu.RUnlock()
			return pinned.pinnedIP, nil
		}
	}
	if cached, ok := r.cache[host]; ok && !cached.isExpired(time.Now()) {
		r.mu.RUnlock()
		r.pin(pinID, host, cached)
		return cached.pinnedIP, nil
	}
	r.mu.RUnlock()

	ips, err := r.lookupFunc(ctx, host)
	if err != nil {
		return "", fmt.Errorf("dns: lookup %q failed: %w", host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("dns: lookup %q returned no results", host)
	}

	resolved := &resolvedHost{
		host:     host,
		ips:      ips,
		pinnedIP: ips[0],
		cachedAt: time.Now(),
		ttl:      r.defaultTTL,
	}

	r.mu.Lock()
	r.cache[host] = resolved
	r.mu.Unlock()

	r.pin(pinID, host, resolved)

	r.logger.Debug("dns resolved",
		"host", host,
		"ips", ips,
		"pinned_ip", resolved.pinnedIP,
		"pin_id", pinID,
	)

	return resolved.pinnedIP, nil
}

func (r *CachingResolver) pin(pinID, host string, resolved *resolvedHost) {
	if pinID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pins[pinID]; !ok {
		r.pins[pinID] = make(map[string]*resolvedHost)
	}
	r.pins[pinID][host] = resolved
}

// Release drops every result pinned to pinID.
func (r *CachingResolver) Release(pinID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pins, pinID)
}

// CleanExpired removes expired cache entries. Pinned results stay.
func (r *CachingResolver) CleanExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for host, entry := range r.cache {
		if entry.isExpired(now) {
			delete(r.cache, host)
		}
	}
}
