// Package metrics provides lightweight counters for tracking the
// runtime statistics of connection establishment.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks connection-establishment statistics for a process.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	dials          atomic.Int64
	poolHits       atomic.Int64
	linksOpened    atomic.Int64
	secureSessions atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// Dial records a newly established stream connection.
func (c *Collector) Dial() {
	if c == nil {
		return
	}
	c.dials.Add(1)
}

// PoolHit records a pooled connection reuse.
func (c *Collector) PoolHit() {
	if c == nil {
		return
	}
	c.poolHits.Add(1)
}

// Dials returns the number of connections dialed.
func (c *Collector) Dials() int64 {
	if c == nil {
		return 0
	}
	return c.dials.Load()
}

// PoolHits returns the number of pooled connection reuses.
func (c *Collector) PoolHits() int64 {
	if c == nil {
		return 0
	}
	return c.poolHits.Load()
}

// ── Link metrics ─────────────────────────────────────────────────────

// LinkOpened records a constructed network link or management
// connection.
func (c *Collector) LinkOpened() {
	if c == nil {
		return
	}
	c.linksOpened.Add(1)
}

// LinksOpened returns the number of links constructed.
func (c *Collector) LinksOpened() int64 {
	if c == nil {
		return 0
	}
	return c.linksOpened.Load()
}

// SecureSession records a successfully negotiated secure session.
func (c *Collector) SecureSession() {
	if c == nil {
		return
	}
	c.secureSessions.Add(1)
}

// SecureSessions returns the number of negotiated secure sessions.
func (c *Collector) SecureSessions() int64 {
	if c == nil {
		return 0
	}
	return c.secureSessions.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	Dials            int64  `json:"dials"`
	PoolHits         int64  `json:"pool_hits"`
	LinksOpened      int64  `json:"links_opened"`
	SecureSessions   int64  `json:"secure_sessions"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		Dials:          c.dials.Load(),
		PoolHits:       c.poolHits.Load(),
		LinksOpened:    c.linksOpened.Load(),
		SecureSessions: c.secureSessions.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
