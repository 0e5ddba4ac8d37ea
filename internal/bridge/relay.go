package bridge

import (
	"sync"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
)

// progressRelay hands export progress to a stream without blocking the
// exporter. Only the latest undelivered report is kept; older ones are
// replaced while the stream is busy.
type progressRelay struct {
	send func(export.Progress)

	mu      sync.Mutex
	pending *export.Progress
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newProgressRelay(send func(export.Progress)) *progressRelay {
	r := &progressRelay{
		send: send,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go r.loop()
	return r
}

// push never blocks.
func (r *progressRelay) push(p export.Progress) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = &p
	r.mu.Unlock()
	r.nudge()
}

// close delivers the pending report, if any, and waits for the sender.
func (r *progressRelay) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.nudge()
	<-r.done
}

func (r *progressRelay) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *progressRelay) loop() {
	defer close(r.done)
	for range r.wake {
		r.mu.Lock()
		p := r.pending
		r.pending = nil
		r.mu.Unlock()

		if p != nil {
			r.send(*p)
		}

		r.mu.Lock()
		finished := r.closed && r.pending == nil
		r.mu.Unlock()
		if finished {
			return
		}
	}
}
