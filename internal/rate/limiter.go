package rate

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound requests so we stay under the mail API's
// per-mailbox throttling budget. Backoff after an observed 429 is the
// engine's job; the bucket only paces steady-state traffic.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket is a fixed-rate limiter with a small burst allowance, so a
// batch submission immediately followed by its page fetch does not stall.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	stop     chan struct{}
	stopDone chan struct{}
}

// NewTokenBucket returns a limiter releasing rps tokens per second with
// capacity for burst unclaimed tokens.
func NewTokenBucket(rps, burst int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, burst),
		stop:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	// prefill so the first calls proceed immediately
	for i := 0; i < burst; i++ {
		tb.tokens <- struct{}{}
	}
	go tb.refill()
	return tb
}

func (t *TokenBucket) refill() {
	// ticker.Stop does not close ticker.C, so ranging over it would never
	// return; the stop channel is the exit signal
	defer close(t.stopDone)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default: // bucket full, token dropped
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases resources held by the limiter and returns once the refill
// goroutine has exited. Stop must be called exactly once.
func (t *TokenBucket) Stop() {
	t.ticker.Stop()
	close(t.stop)
	<-t.stopDone
}

var _ Limiter = (*TokenBucket)(nil)
