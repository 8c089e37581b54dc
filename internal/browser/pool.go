// File: internal/browser/pool.go

// Package browser owns the shared browser pool, per-run context
// construction, and the action executor that drives a page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// DefaultAcquireTimeout bounds how long an acquirer waits for a browser
// when the pool is at capacity.
const DefaultAcquireTimeout = 30 * time.Second

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool is closed")

// ErrAcquireTimeout is returned when no browser frees up within the wait
// deadline.
var ErrAcquireTimeout = errors.New("browser pool acquire timeout")

// LaunchFunc starts one browser instance.
type LaunchFunc func(ctx context.Context) (playwright.Browser, error)

type waiter struct {
	ch chan playwright.Browser
}

// Pool hands out at most max concurrently-live browsers. Idle browsers are
// reused most-recent-first; acquirers beyond capacity wait in FIFO order.
type Pool struct {
	max            int
	launch         LaunchFunc
	acquireTimeout time.Duration
	logger         *zap.Logger

	mu        sync.Mutex
	live      map[playwright.Browser]struct{}
	idle      []playwright.Browser
	waiters   []*waiter
	launching int
	closed    bool
}

// NewPool builds a pool of the given capacity. acquireTimeout <= 0 selects
// the default.
func NewPool(max int, launch LaunchFunc, acquireTimeout time.Duration, logger *zap.Logger) *Pool {
	if max < 1 {
		max = 1
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		max:            max,
		launch:         launch,
		acquireTimeout: acquireTimeout,
		logger:         logger.Named("pool"),
		live:           make(map[playwright.Browser]struct{}),
	}
}

// Acquire returns a connected browser, launching one when under capacity and
// otherwise waiting for a release.
func (p *Pool) Acquire(ctx context.Context) (playwright.Browser, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	// Reuse the most recently parked browser; evict dead ones as found.
	for len(p.idle) > 0 {
		b := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if b.IsConnected() {
			p.mu.Unlock()
			return b, nil
		}
		delete(p.live, b)
		p.logger.Debug("Evicted disconnected browser from idle set")
	}

	if len(p.live)+p.launching < p.max {
		p.launching++
		p.mu.Unlock()
		return p.launchOne(ctx)
	}

	w := &waiter{ch: make(chan playwright.Browser, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case b, ok := <-w.ch:
		if !ok {
			return nil, ErrPoolClosed
		}
		return b, nil
	case <-ctx.Done():
		p.abandonWaiter(w)
		return nil, ctx.Err()
	case <-timer.C:
		p.abandonWaiter(w)
		return nil, ErrAcquireTimeout
	}
}

func (p *Pool) launchOne(ctx context.Context) (playwright.Browser, error) {
	b, err := p.launch(ctx)

	p.mu.Lock()
	p.launching--
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if p.closed {
		p.mu.Unlock()
		_ = b.Close()
		return nil, ErrPoolClosed
	}
	p.live[b] = struct{}{}
	p.mu.Unlock()

	b.OnDisconnected(func(playwright.Browser) {
		p.dropBrowser(b)
	})
	return b, nil
}

// abandonWaiter removes a timed-out or cancelled waiter. A browser handed
// over in the race window is re-released rather than lost.
func (p *Pool) abandonWaiter(w *waiter) {
	p.mu.Lock()
	for i, cand := range p.waiters {
		if cand == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	select {
	case b, ok := <-w.ch:
		if ok {
			p.Release(b)
		}
	default:
	}
}

func (p *Pool) dropBrowser(b playwright.Browser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, b)
	for i, idle := range p.idle {
		if idle == b {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
}

// Release returns a browser to the pool, handing it directly to the oldest
// waiter when one is pending.
func (p *Pool) Release(b playwright.Browser) {
	if b == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = b.Close()
		return
	}
	if !b.IsConnected() {
		delete(p.live, b)
		p.mu.Unlock()
		return
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.ch <- b
		return
	}
	p.idle = append(p.idle, b)
	p.mu.Unlock()
}

// Close rejects pending waiters and closes every live browser. It is safe to
// call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	browsers := make([]playwright.Browser, 0, len(p.live))
	for b := range p.live {
		browsers = append(browsers, b)
	}
	p.live = make(map[playwright.Browser]struct{})
	p.idle = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}

	var wg sync.WaitGroup
	for _, b := range browsers {
		wg.Add(1)
		go func(b playwright.Browser) {
			defer wg.Done()
			if err := b.Close(); err != nil {
				p.logger.Debug("Error closing pooled browser", zap.Error(err))
			}
		}(b)
	}
	wg.Wait()
}
