package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Pump reads raw frames from r and writes each as a hex line to w until
// r reaches EOF, fails, or the context is cancelled.  Used by passive
// monitors to dump bus traffic.
func Pump(ctx context.Context, r io.ReadCloser, w io.Writer) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.Close() // unblock the pending read
		case <-done:
		}
	}()

	buf := GetFrameBuf()
	defer PutFrameBuf(buf)

	for {
		n, err := r.Read(*buf)
		if n > 0 {
			fmt.Fprintf(w, "%x\n", (*buf)[:n])
		}
		if err != nil {
			if ctx.Err() != nil || isHarmless(err) {
				return nil
			}
			return err
		}
	}
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
