package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckFunc runs one status check.  Returning true stops the remaining
// checks for that order.
type CheckFunc func(ctx context.Context) (bool, error)

// StatusScheduler re-checks payment status at fixed offsets after an
// order is created, so an order is finalized even when the buyer never
// comes back and no webhook arrives.  Timers live in memory; orders
// created before a restart rely on the client poll or the webhook.
type StatusScheduler struct {
	offsets []time.Duration
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	pending map[string][]*time.Timer
	stopped bool
}

// NewStatusScheduler returns a scheduler firing at the given offsets.
func NewStatusScheduler(offsets []time.Duration, timeout time.Duration, log *zap.Logger) *StatusScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusScheduler{offsets: offsets, timeout: timeout, log: log, pending: map[string][]*time.Timer{}}
}

// Schedule arms one timer per offset for orderID.
func (s *StatusScheduler) Schedule(orderID string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	timers := make([]*time.Timer, 0, len(s.offsets))
	for i, d := range s.offsets {
		last := i == len(s.offsets)-1
		timers = append(timers, time.AfterFunc(d, func() { s.fire(orderID, check, last) }))
	}
	s.pending[orderID] = append(s.pending[orderID], timers...)
}

// fire runs check once.  Offsets are ascending, so the last one also
// drops the order's bookkeeping.
func (s *StatusScheduler) fire(orderID string, check CheckFunc, last bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	done, err := check(ctx)
	if err != nil {
		s.log.Warn("scheduled status check failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if done || last {
		s.Cancel(orderID)
	}
}

// Cancel stops the remaining checks of one order.
func (s *StatusScheduler) Cancel(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending[orderID] {
		t.Stop()
	}
	delete(s.pending, orderID)
}

// Pending reports how many orders still have checks armed.
func (s *StatusScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every armed check and rejects new ones.
func (s *StatusScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timers := range s.pending {
		for _, t := range timers {
			t.Stop()
		}
		delete(s.pending, id)
	}
}
