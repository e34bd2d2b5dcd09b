package correlation

import (
	"sync"

	"github.com/sotec-iot/device-communication/internal/domain"
)

// Completion is the handle a delivery waits on. It is resolved exactly once,
// to an outcome plus an optional error; later resolutions lose the race and
// report that they did so. Resolving also serves as the cancellation signal
// for whatever timer or retry loop is still running for the delivery.
type Completion struct {
	once    sync.Once
	done    chan struct{}
	outcome domain.DeliveryOutcome
	err     error
}

func NewCompletion() *Completion {
	return &Completion{
		done: make(chan struct{}),
	}
}

// Resolve records the outcome and wakes every waiter. It returns true if this
// call was the one that resolved the completion, false if it was already
// resolved. A timer firing after an acknowledgement arrived lands in the
// false branch and must treat it as a no-op.
func (c *Completion) Resolve(outcome domain.DeliveryOutcome, err error) bool {
	resolved := false
	c.once.Do(func() {
		c.outcome = outcome
		c.err = err
		resolved = true
		close(c.done)
	})
	return resolved
}

// Done returns a channel that is closed once the completion is resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the completion has been resolved without blocking.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Outcome returns the recorded outcome. It must only be called after Done
// is closed.
func (c *Completion) Outcome() (domain.DeliveryOutcome, error) {
	return c.outcome, c.err
}
