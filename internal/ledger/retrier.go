package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// SettlementDeliveryError reports a settlement record that could not be
// handed to the backing ledger. Settlements are retried out of band;
// play never blocks on delivery.
type SettlementDeliveryError struct {
	SettlementID string
	Attempts     int
	Err          error
}

func (e *SettlementDeliveryError) Error() string {
	return fmt.Sprintf("settlement %s: delivery failed after %d attempts: %v", e.SettlementID, e.Attempts, e.Err)
}

func (e *SettlementDeliveryError) Unwrap() error { return e.Err }

const (
	retryBase = 2 * time.Second
	retryMax  = time.Minute
)

// Retrier wraps a Ledger and keeps redelivering failed settlement
// records until they are acked. Game state never waits on the ledger,
// so a flaky backend costs log noise, not stalled hands. Debits and
// credits are interactive and pass straight through.
type Retrier struct {
	inner  Ledger
	logger *log.Logger
	clock  quartz.Clock

	mu      sync.Mutex
	closed  bool
	pending map[string]*quartz.Timer
}

// NewRetrier wraps the given ledger.
func NewRetrier(inner Ledger, logger *log.Logger, clock quartz.Clock) *Retrier {
	return &Retrier{
		inner:   inner,
		logger:  logger,
		clock:   clock,
		pending: make(map[string]*quartz.Timer),
	}
}

func (r *Retrier) Debit(ctx context.Context, userID string, amount int) error {
	return r.inner.Debit(ctx, userID, amount)
}

func (r *Retrier) Credit(ctx context.Context, userID string, amount int) error {
	return r.inner.Credit(ctx, userID, amount)
}

// RecordSettlement delivers the settlement, scheduling redelivery on
// failure. The returned error is always nil; delivery faults surface
// as logged SettlementDeliveryErrors.
func (r *Retrier) RecordSettlement(ctx context.Context, s Settlement) error {
	r.deliver(s, 1)
	return nil
}

func (r *Retrier) deliver(s Settlement, attempt int) {
	err := r.inner.RecordSettlement(context.Background(), s)
	if err == nil {
		r.mu.Lock()
		delete(r.pending, s.ID)
		r.mu.Unlock()
		return
	}

	delay := retryMax
	if attempt < 6 {
		delay = retryBase << (attempt - 1)
	}
	deliveryErr := &SettlementDeliveryError{
		SettlementID: s.ID,
		Attempts:     attempt,
		Err:          err,
	}
	r.logger.Error("settlement delivery failed, retrying",
		"err", deliveryErr, "retry_in", delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending[s.ID] = r.clock.AfterFunc(delay, func() {
		r.deliver(s, attempt+1)
	})
}

// PendingCount returns the number of settlements awaiting redelivery.
func (r *Retrier) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close cancels scheduled redeliveries.
func (r *Retrier) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, timer := range r.pending {
		timer.Stop()
		delete(r.pending, id)
	}
}
