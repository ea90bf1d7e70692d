package clause_ner

import (
	"sync/atomic"
	"time"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
)

const (
	breakerClosed int32 = iota
	breakerOpen
	breakerHalfOpen
)

var breakerStateNames = map[int32]string{
	breakerClosed:   "closed",
	breakerOpen:     "open",
	breakerHalfOpen: "half_open",
}

// breaker trips after threshold consecutive model-server failures and
// rejects calls until reset has elapsed, then lets a single probe through.
// A zero threshold disables it.
type breaker struct {
	state     atomic.Int32
	fails     atomic.Int32
	openedAt  atomic.Int64
	permits   atomic.Int32
	threshold int32
	reset     time.Duration
	logger    logging.Logger
	now       func() time.Time
}

func newBreaker(threshold int, reset time.Duration, logger logging.Logger) *breaker {
	return &breaker{
		threshold: int32(threshold),
		reset:     reset,
		logger:    logger,
		now:       time.Now,
	}
}

func (b *breaker) allow() bool {
	if b == nil || b.threshold <= 0 {
		return true
	}
	switch b.state.Load() {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(time.Unix(0, b.openedAt.Load())) < b.reset {
			return false
		}
		if b.state.CompareAndSwap(breakerOpen, breakerHalfOpen) {
			b.permits.Store(1)
			b.transition(breakerOpen, breakerHalfOpen)
		}
		return b.permits.Add(-1) >= 0
	case breakerHalfOpen:
		return b.permits.Add(-1) >= 0
	}
	return false
}

func (b *breaker) success() {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.fails.Store(0)
	if b.state.CompareAndSwap(breakerHalfOpen, breakerClosed) {
		b.transition(breakerHalfOpen, breakerClosed)
	}
}

func (b *breaker) failure() {
	if b == nil || b.threshold <= 0 {
		return
	}
	fails := b.fails.Add(1)
	switch b.state.Load() {
	case breakerClosed:
		if fails >= b.threshold && b.state.CompareAndSwap(breakerClosed, breakerOpen) {
			b.openedAt.Store(b.now().UnixNano())
			b.transition(breakerClosed, breakerOpen)
		}
	case breakerHalfOpen:
		if b.state.CompareAndSwap(breakerHalfOpen, breakerOpen) {
			b.openedAt.Store(b.now().UnixNano())
			b.transition(breakerHalfOpen, breakerOpen)
		}
	}
}

func (b *breaker) current() string {
	if b == nil {
		return breakerStateNames[breakerClosed]
	}
	return breakerStateNames[b.state.Load()]
}

func (b *breaker) transition(from, to int32) {
	if b.logger != nil {
		b.logger.Warn("model server breaker state change",
			logging.String("from", breakerStateNames[from]),
			logging.String("to", breakerStateNames[to]))
	}
}
