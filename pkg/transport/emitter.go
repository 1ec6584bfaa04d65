package transport

import "sync"

// Emitter is a handler registry that delivers events synchronously in
// subscription order. The zero value is ready to use.
type Emitter struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []registration
}

type registration struct {
	id uint64
	h  EventHandler
}

// Subscribe registers h and returns a function that removes it. The returned
// function is idempotent.
func (e *Emitter) Subscribe(h EventHandler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, registration{id: id, h: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.handlers {
		if r.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every handler registered at the time of the call.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	for i, r := range e.handlers {
		handlers[i] = r.h
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// HandlerCount returns the number of registered handlers.
func (e *Emitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}
