package diskkit

import (
	"context"
	"sync"
	"sync/atomic"
)

// CallbackChangeToken is a ChangeToken signalled by the adapter that created
// it. Used by adapters with native change events.
type CallbackChangeToken struct {
	mu        sync.Mutex
	changed   atomic.Bool
	callbacks map[int]func()
	next      int
}

// NewCallbackChangeToken creates a token that has not fired yet.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{callbacks: make(map[int]func())}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

// RegisterChangeCallback registers callback. If the token already fired the
// callback runs immediately.
func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		callback()
		return func() {}
	}
	id := t.next
	t.next++
	t.callbacks[id] = callback
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.callbacks, id)
		t.mu.Unlock()
	}
}

// SignalChange marks the token as changed and invokes the callbacks once.
func (t *CallbackChangeToken) SignalChange() {
	t.mu.Lock()
	if t.changed.Swap(true) {
		t.mu.Unlock()
		return
	}
	callbacks := make([]func(), 0, len(t.callbacks))
	for _, cb := range t.callbacks {
		callbacks = append(callbacks, cb)
	}
	clear(t.callbacks)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// OnChange re-arms a watch on pattern after every notification and runs
// action each time it fires. It stops when ctx ends, when the returned stop
// function is called, or when w.Watch fails.
//
//	stop := diskkit.OnChange(ctx, disk, "config/*.json", reloadConfig)
//	defer stop()
func OnChange(ctx context.Context, w CanWatch, pattern string, action func()) (stop func()) {
	ctx, stop = context.WithCancel(ctx)

	go func() {
		defer stop()
		for {
			token, err := w.Watch(ctx, pattern)
			if err != nil {
				return
			}

			fired := make(chan struct{})
			var once sync.Once
			unregister := token.RegisterChangeCallback(func() {
				once.Do(func() { close(fired) })
			})

			select {
			case <-ctx.Done():
				unregister()
				return
			case <-fired:
				unregister()
				action()
			}
		}
	}()

	return stop
}
