package main

import (
	"sync"
	"sync/atomic"
)

// ReadinessState is the flag behind /health/ready. The Controller is its only
// writer; the probe server only reads it.
type ReadinessState struct {
	ready    atomic.Bool
	mu       sync.Mutex
	onChange []func(ready bool)
}

func NewReadinessState() *ReadinessState {
	return &ReadinessState{}
}

// OnChange registers a callback invoked after every actual transition.
// Register callbacks before the state is shared with other goroutines.
func (r *ReadinessState) OnChange(fn func(ready bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

func (r *ReadinessState) SetReady(ready bool) {
	if r.ready.Swap(ready) == ready {
		return
	}

	r.mu.Lock()
	callbacks := r.onChange
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(ready)
	}
}

func (r *ReadinessState) IsReady() bool {
	return r.ready.Load()
}

// ShutdownSignal flips from false to true exactly once per process. Extra
// triggers are no-ops.
type ShutdownSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

func (s *ShutdownSignal) Trigger() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load()
}

// Done is closed on the first Trigger.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}
