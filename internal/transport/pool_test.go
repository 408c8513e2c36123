package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

// startServer runs a TCP accept loop on 127.0.0.1 and returns its
// address.  Accepted connections are held open until the test ends.
func startServer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			t.Cleanup(func() { c.Close() })
		}
	}()
	return l.Addr().String()
}

func TestAcquire_ReusesConnectedConnection(t *testing.T) {
	remote := startServer(t)
	pool := NewPool(nil, nil)
	ctx := context.Background()

	c1, err := pool.Acquire(ctx, "", remote)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := pool.Acquire(ctx, "", remote)
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Error("second acquire should return the identical pooled connection")
	}
	if pool.Size() != 1 {
		t.Errorf("pool size = %d, want 1", pool.Size())
	}
}

func TestAcquire_ReplacesStaleConnection(t *testing.T) {
	remote := startServer(t)
	pool := NewPool(nil, nil)
	ctx := context.Background()

	c1, err := pool.Acquire(ctx, "", remote)
	if err != nil {
		t.Fatal(err)
	}
	c1.Close()
	if c1.Connected() {
		t.Fatal("closed connection should report disconnected")
	}

	c2, err := pool.Acquire(ctx, "", remote)
	if err != nil {
		t.Fatal(err)
	}
	if c1 == c2 {
		t.Error("stale connection must be replaced, not returned")
	}
	if !c2.Connected() {
		t.Error("replacement connection should be connected")
	}
	if pool.Size() != 1 {
		t.Errorf("pool size = %d, want 1 (replacement, not addition)", pool.Size())
	}
}

func TestAcquire_DistinctRemotes(t *testing.T) {
	r1 := startServer(t)
	r2 := startServer(t)
	pool := NewPool(nil, nil)
	ctx := context.Background()

	c1, err := pool.Acquire(ctx, "", r1)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := pool.Acquire(ctx, "", r2)
	if err != nil {
		t.Fatal(err)
	}
	if c1 == c2 {
		t.Error("different remotes must not share a connection")
	}
	if pool.Size() != 2 {
		t.Errorf("pool size = %d, want 2", pool.Size())
	}
}

func TestAcquire_DialFailureLeavesPoolUnchanged(t *testing.T) {
	// A listener that is immediately closed gives a refused port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	remote := l.Addr().String()
	l.Close()

	pool := NewPool(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := pool.Acquire(ctx, "", remote); err == nil {
		t.Fatal("expected dial failure")
	}
	if pool.Size() != 0 {
		t.Errorf("failed acquire must not insert an entry, size = %d", pool.Size())
	}
}

func TestAcquire_CancelledContext(t *testing.T) {
	remote := startServer(t)
	pool := NewPool(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pool.Acquire(ctx, "", remote); err == nil {
		t.Error("cancelled context should abort establishment")
	}
	if pool.Size() != 0 {
		t.Error("cancelled acquire must leave the pool consistent")
	}
}
