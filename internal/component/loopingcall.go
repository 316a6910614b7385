package component

import (
	"context"
	"sync"
	"time"

	"github.com/aresch/deluge/internal/logging"
)

// LoopingCall repeatedly invokes a function on a fixed interval.
//
// The interval is measured from the completion of the previous invocation,
// so a slow function stretches the period. Callers that need fixed-rate
// scheduling must build it on top.
type LoopingCall struct {
	fn     func(ctx context.Context) error
	logger *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoopingCall creates a looping call bound to fn. The call is not
// started until Start is invoked.
func NewLoopingCall(fn func(ctx context.Context) error) *LoopingCall {
	return &LoopingCall{
		fn:     fn,
		logger: logging.New("component.loopingcall"),
	}
}

// Running reports whether a timer task is currently present.
func (lc *LoopingCall) Running() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.cancel != nil
}

// Start begins periodic invocation of the bound function. If now is true
// the first invocation happens immediately, before any delay; otherwise it
// happens after interval. Returns ErrAlreadyRunning if a task is already
// present.
func (lc *LoopingCall) Start(interval time.Duration, now bool) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.cancel = cancel
	lc.done = done

	go lc.run(ctx, interval, now, done)
	return nil
}

// Stop cancels the running task and waits for it to terminate. The
// cancellation is swallowed; a cancellation delivered while the function is
// executing takes effect once the function returns. Returns ErrNotRunning
// if no task is present.
func (lc *LoopingCall) Stop(ctx context.Context) error {
	lc.mu.Lock()
	if lc.cancel == nil {
		lc.mu.Unlock()
		return ErrNotRunning
	}
	cancel := lc.cancel
	done := lc.done
	lc.cancel = nil
	lc.done = nil
	lc.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (lc *LoopingCall) run(ctx context.Context, interval time.Duration, now bool, done chan struct{}) {
	defer close(done)

	if now {
		lc.invoke(ctx)
		if ctx.Err() != nil {
			return
		}
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			lc.invoke(ctx)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(interval)
		}
	}
}

// invoke calls the bound function. An error does not stop the schedule, it
// is only logged; errors caused by cancellation are dropped.
func (lc *LoopingCall) invoke(ctx context.Context) {
	if err := lc.fn(ctx); err != nil && ctx.Err() == nil {
		lc.logger.Warn("looping call function failed: %v", err)
	}
}
