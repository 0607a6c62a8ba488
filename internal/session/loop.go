package session

import "sync"

// loop serializes every mutation of a session. The goroutine that posts to
// an idle loop drains it; posts made while it runs are queued behind the
// current step. Notifications queued by steps are delivered after the
// queue empties, outside the loop.
type loop struct {
	mu       sync.Mutex
	queue    []func()
	notes    []func()
	running  bool
	flushing bool
}

func (l *loop) post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.drain()
}

// run posts fn and blocks until it has executed. Never call it from a loop step.
func (l *loop) run(fn func()) {
	done := make(chan struct{})
	l.post(func() {
		defer close(done)
		fn()
	})
	<-done
}

// notify queues fn for delivery outside the loop.
func (l *loop) notify(fn func()) {
	l.mu.Lock()
	l.notes = append(l.notes, fn)
	l.mu.Unlock()
}

func (l *loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			break
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
	l.flush()
}

func (l *loop) flush() {
	l.mu.Lock()
	if l.flushing {
		l.mu.Unlock()
		return
	}
	l.flushing = true
	for len(l.notes) > 0 {
		notes := l.notes
		l.notes = nil
		l.mu.Unlock()
		for _, n := range notes {
			n()
		}
		l.mu.Lock()
	}
	l.flushing = false
	l.mu.Unlock()
}
