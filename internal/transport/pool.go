package transport

import (
	"context"
	"sync"

	"knxtool/internal/metrics"
	"knxtool/util"
)

// Pool is a process-wide cache of reusable stream connections keyed by
// remote endpoint.  For any remote endpoint, at most one currently
// connected pooled connection exists at a time.
//
// One mutex guards the whole acquire operation, including connection
// establishment.  That serializes dials across unrelated endpoints; it
// is an accepted simplicity-over-scalability tradeoff, bounded by the
// dial timeout and the caller's context.
type Pool struct {
	mu      sync.Mutex
	conns   map[string]*Connection
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewPool creates a connection pool.  Both logger and collector may be
// nil.
func NewPool(logger *util.Logger, collector *metrics.Collector) *Pool {
	if logger != nil {
		logger = logger.Named("pool")
	}
	return &Pool{
		conns:   map[string]*Connection{},
		logger:  logger,
		metrics: collector,
	}
}

// DefaultPool is the process-wide pool shared by all tool invocations.
// It lives until process exit; pooled connections are never proactively
// closed.
var DefaultPool = NewPool(nil, metrics.New())

// Acquire returns the pooled connection for remote, establishing a new
// one if none exists or the cached one is no longer connected.  Callers
// borrow the connection and must not close it.  A failed or cancelled
// establishment leaves the pool unchanged.
func (p *Pool) Acquire(ctx context.Context, local, remote string) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c := p.conns[remote]; c != nil && c.Connected() {
		p.metrics.PoolHit()
		p.verbose("reusing pooled connection to %s", remote)
		return c, nil
	}

	c, err := Dial(ctx, local, remote)
	if err != nil {
		return nil, err
	}
	p.metrics.Dial()
	p.verbose("pooled new connection to %s", remote)
	p.conns[remote] = c
	return c, nil
}

// Size returns the number of pooled connections, connected or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Metrics returns the pool's collector, which may be nil.
func (p *Pool) Metrics() *metrics.Collector { return p.metrics }

func (p *Pool) verbose(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Verbose(format, args...)
	}
}
