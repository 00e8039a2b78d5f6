// Package retry classifies transient failures and spaces out retry attempts.
package retry

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

var transientErrnos = []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE}

// Transient reports whether err is a connection or timeout failure that a single retry
// may get past. Caller cancellation never is.
func Transient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Jitter spreads d uniformly over [0.8d, 1.2d].
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * 0.4
	return time.Duration(float64(d)*0.8 + rand.Float64()*spread)
}
