package framing

import (
	"context"
	"net"
	"time"
)

const (
	dialAttempts = 10
	dialInterval = 75 * time.Millisecond
)

// DialRetry dials addr, retrying a freshly-started peer that is not
// accepting yet. It gives up after ten attempts spaced 75ms apart,
// returning the last dial error, or earlier if ctx is cancelled.
func DialRetry(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	var err error
	for i := 0; i < dialAttempts; i++ {
		var conn net.Conn
		conn, err = d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialInterval):
		}
	}
	return nil, err
}
