package telemetry

import "sync"

// Emitter is a Source that features can embed to publish payloads.
// Handlers run synchronously on the emitting goroutine in subscription order.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Payload)
	order    []int
}

// Subscribe implements Source.
func (e *Emitter) Subscribe(handler func(Payload)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[int]func(Payload))
	}
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	e.order = append(e.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Emit delivers p to every current subscriber.
func (e *Emitter) Emit(p Payload) {
	e.mu.RLock()
	handlers := make([]func(Payload), 0, len(e.order))
	for _, id := range e.order {
		handlers = append(handlers, e.handlers[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(p)
	}
}

// Subscribers returns the number of registered handlers.
func (e *Emitter) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}
