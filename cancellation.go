package signalr

import (
	"context"
	"sync"
	"time"
)

// cancellationTokenSource is a thread-safe one-shot signal. Callbacks
// registered before cancellation run when cancel fires, after the internal
// lock has been released; callbacks registered afterwards run immediately on
// the registering goroutine.
type cancellationTokenSource struct {
	mu        sync.Mutex
	canceled  bool
	done      chan struct{}
	callbacks []func()
}

func newCancellationTokenSource() *cancellationTokenSource {
	return &cancellationTokenSource{done: make(chan struct{})}
}

func (s *cancellationTokenSource) cancel() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	callbacks := s.callbacks
	s.callbacks = nil
	close(s.done)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (s *cancellationTokenSource) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// wait blocks until the source is canceled or the timeout expires. It
// returns true when canceled, false on timeout. A negative timeout waits
// forever.
func (s *cancellationTokenSource) wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-s.done
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

func (s *cancellationTokenSource) register(cb func()) {
	s.mu.Lock()
	if !s.canceled {
		s.callbacks = append(s.callbacks, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cb()
}

// token returns a handle usable as a context.Context so the source can
// cancel in-flight HTTP work directly.
func (s *cancellationTokenSource) token() cancellationToken {
	return cancellationToken{src: s}
}

// cancellationToken is a read-only view of a cancellationTokenSource. It
// implements context.Context so capability implementations can consume it
// without knowing about the source.
type cancellationToken struct {
	src *cancellationTokenSource
}

func (t cancellationToken) isCanceled() bool {
	return t.src == nil || t.src.isCanceled()
}

func (t cancellationToken) Deadline() (time.Time, bool) { return time.Time{}, false }

func (t cancellationToken) Done() <-chan struct{} {
	if t.src == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.src.done
}

func (t cancellationToken) Err() error {
	if t.isCanceled() {
		return context.Canceled
	}
	return nil
}

func (t cancellationToken) Value(interface{}) interface{} { return nil }

// completionEvent is a one-shot result holder: the first set wins, later
// sets are ignored, and completion callbacks run exactly once.
type completionEvent struct {
	mu        sync.Mutex
	set       bool
	err       error
	done      chan struct{}
	callbacks []func(error)
}

func newCompletionEvent() *completionEvent {
	return &completionEvent{done: make(chan struct{})}
}

func (e *completionEvent) complete(err error) {
	e.mu.Lock()
	if e.set {
		e.mu.Unlock()
		return
	}
	e.set = true
	e.err = err
	callbacks := e.callbacks
	e.callbacks = nil
	close(e.done)
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
}

func (e *completionEvent) isSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// onComplete registers cb to run with the completion outcome; if the event
// is already set, cb runs immediately.
func (e *completionEvent) onComplete(cb func(error)) {
	e.mu.Lock()
	if !e.set {
		e.callbacks = append(e.callbacks, cb)
		e.mu.Unlock()
		return
	}
	err := e.err
	e.mu.Unlock()
	cb(err)
}

// wait blocks until the event is set or the timeout expires; ok is false on
// timeout. A negative timeout waits forever.
func (e *completionEvent) wait(timeout time.Duration) (err error, ok bool) {
	if timeout < 0 {
		<-e.done
	} else {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-e.done:
		case <-t.C:
			return nil, false
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err, true
}
