package lmstudio

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// PoolConfig bounds the shared connection pool and its timeouts.
type PoolConfig struct {
	MaxConns        int           // total idle connection limit
	MaxConnsPerHost int           // per-destination connection limit
	IdleConnTimeout time.Duration // idle connection expiry
	RequestTimeout  time.Duration // total per-request ceiling
	ConnectTimeout  time.Duration // dial timeout, shorter than RequestTimeout
}

// DefaultPoolConfig returns limits suited to long-running local inference calls.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        100,
		MaxConnsPerHost: 20,
		IdleConnTimeout: 30 * time.Second,
		RequestTimeout:  300 * time.Second,
		ConnectTimeout:  10 * time.Second,
	}
}

// Pool is the process-wide HTTP connection pool shared by every backend call.
// The underlying transport is created lazily on first use, reused while
// usable and recreated only after Close. Initialization is mutex guarded so
// concurrent first calls cannot race into duplicate pools.
type Pool struct {
	mu        sync.Mutex
	cfg       PoolConfig
	transport *http.Transport
}

// NewPool creates a pool with the given limits; zero fields fall back to defaults.
func NewPool(cfg PoolConfig) *Pool {
	defaults := DefaultPoolConfig()
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaults.MaxConns
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = defaults.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = defaults.IdleConnTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	return &Pool{cfg: cfg}
}

// RoundTrip implements http.RoundTripper, delegating to the current transport.
// Routing every request through the pool keeps callers valid across Close and
// recreate cycles.
func (p *Pool) RoundTrip(req *http.Request) (*http.Response, error) {
	return p.active().RoundTrip(req)
}

// HTTPClient returns a client backed by the shared pool with the configured
// total request timeout applied.
func (p *Pool) HTTPClient() *http.Client {
	return &http.Client{Transport: p, Timeout: p.cfg.RequestTimeout}
}

// Close releases idle connections and marks the pool closed. A later call
// recreates the transport.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport != nil {
		p.transport.CloseIdleConnections()
		p.transport = nil
	}
}

func (p *Pool) active() *http.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport == nil {
		dialer := &net.Dialer{Timeout: p.cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
		p.transport = &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        p.cfg.MaxConns,
			MaxConnsPerHost:     p.cfg.MaxConnsPerHost,
			MaxIdleConnsPerHost: p.cfg.MaxConnsPerHost,
			IdleConnTimeout:     p.cfg.IdleConnTimeout,
		}
	}
	return p.transport
}
