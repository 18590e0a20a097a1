// Package engine implements the Transfer Engine (Component E): it executes
// a compiled options.Program against the Transport Binding and returns
// the response synchronously from Engine.Execute; callers that want
// asynchrony run it on their own goroutine (see the root package's
// AsyncSession). Grounded structurally on
// internal/cycletls/client.go's ClientManager (session reuse, idle
// cleanup) upgraded to genuine LIFO reuse per spec.md §4.E/§5.
package engine

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// handle is one pooled, ready-to-reuse connection stack: an *http.Client
// configured with a custom RoundTripper for one (fingerprint, proxy)
// combination, plus bookkeeping for idle eviction. This is the Go stand-in
// for curl_cffi's reusable Curl easy handle.
type handle struct {
	key        string
	client     *http.Client
	h2         *http2.Transport
	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int
}

// Pool is a LIFO pool of handles: the most recently released handle
// is the next one handed out, so a bursty workload keeps reusing a small
// hot set of connections instead of round-robining through all of them
// (which would defeat HTTP/2 connection reuse and keep cold TLS sessions
// alive for no benefit). maxClients caps how many handles the pool keeps,
// not how many exist at once: Acquire never waits and builds a new handle
// whenever the key's stack is empty, and a release that finds more than
// maxClients live handles drops its handle instead of pooling it.
type Pool struct {
	mu         sync.Mutex
	maxClients int
	byKey      map[string][]*handle // LIFO stacks, one per (fingerprint+proxy) key
	total      int
	maxIdle    time.Duration
}

// NewPool returns a Pool that keeps up to maxClients live handles across
// all keys combined; EvictIdle drops handles idle longer than maxIdle.
func NewPool(maxClients int, maxIdle time.Duration) *Pool {
	if maxClients <= 0 {
		maxClients = 64
	}
	if maxIdle <= 0 {
		maxIdle = 90 * time.Second
	}
	return &Pool{
		maxClients: maxClients,
		byKey:      make(map[string][]*handle),
		maxIdle:    maxIdle,
	}
}

// Acquire pops the most recently released handle for key, or calls build
// to construct a new one if the stack is empty. It does not check
// maxClients and never waits for a handle to be released. build runs
// outside p's lock so a slow TLS handshake doesn't stall other callers
// acquiring different keys.
func (p *Pool) Acquire(key string, build func() (*http.Client, *http2.Transport, error)) (*http.Client, *http2.Transport, func(), error) {
	p.mu.Lock()
	stack := p.byKey[key]
	if n := len(stack); n > 0 {
		h := stack[n-1]
		p.byKey[key] = stack[:n-1]
		p.mu.Unlock()
		h.lastUsedAt = time.Now()
		h.useCount++
		return h.client, h.h2, p.releaseFunc(h), nil
	}
	p.mu.Unlock()

	client, h2t, err := build()
	if err != nil {
		return nil, nil, nil, err
	}

	now := time.Now()
	h := &handle{key: key, client: client, h2: h2t, createdAt: now, lastUsedAt: now, useCount: 1}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()

	return client, h2t, p.releaseFunc(h), nil
}

// releaseFunc returns the closure Acquire's caller invokes (typically via
// defer) when it is done with h, pushing h back onto its key's LIFO stack
// unless the pool holds more than maxClients live handles, in which case h
// is dropped (its connections close themselves via idle-conn timeouts on
// the underlying transport). Idle handles are dropped only by EvictIdle.
func (p *Pool) releaseFunc(h *handle) func() {
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.total > p.maxClients {
			p.total--
			return
		}
		h.lastUsedAt = time.Now()
		p.byKey[h.key] = append(p.byKey[h.key], h)
	}
}

// EvictIdle drops handles that have been idle longer than p.maxIdle,
// mirroring ClientManager.performCleanup's idle-eviction loop but applied
// to pooled transport handles rather than whole CycleTLS client sessions.
func (p *Pool) EvictIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, stack := range p.byKey {
		kept := stack[:0]
		for _, h := range stack {
			if now.Sub(h.lastUsedAt) > p.maxIdle {
				removed++
				p.total--
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(p.byKey, key)
		} else {
			p.byKey[key] = kept
		}
	}
	return removed
}

// Size returns the number of live (pooled + checked-out) handles.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
