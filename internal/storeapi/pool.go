package storeapi

import (
	"context"
	"fmt"
)

// ClientPool hands out InternalClient instances from a bounded channel
// buffer, sized workers+1 (spec §5: "one client per in-flight HTTP
// request. No task holds two clients at once"). Factory is called only
// while NewClientPool pre-fills the pool; Acquire waits when every client
// is out.
type ClientPool struct {
	clients chan InternalClient
	factory func() (InternalClient, error)
	size    int
}

// NewClientPool pre-fills size clients built by factory.
func NewClientPool(size int, factory func() (InternalClient, error)) (*ClientPool, error) {
	if size < 1 {
		size = 1
	}
	pool := &ClientPool{
		clients: make(chan InternalClient, size),
		factory: factory,
		size:    size,
	}
	for i := 0; i < size; i++ {
		c, err := factory()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storeapi: building pooled client %d/%d: %w", i+1, size, err)
		}
		pool.clients <- c
	}
	return pool, nil
}

// Acquire blocks until a client is available or ctx is done.
func (p *ClientPool) Acquire(ctx context.Context) (InternalClient, error) {
	select {
	case c := <-p.clients:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a client to the pool. Callers must Release exactly once
// per successful Acquire, even on error paths.
func (p *ClientPool) Release(c InternalClient) {
	select {
	case p.clients <- c:
	default:
		// Pool already full (shouldn't happen under correct use) — drop it
		// rather than block the caller.
		_ = c.Close()
	}
}

// Close drains and closes every pooled client.
func (p *ClientPool) Close() error {
	close(p.clients)
	var firstErr error
	for c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
