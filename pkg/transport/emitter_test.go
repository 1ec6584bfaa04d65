package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterOrderAndUnsubscribe(t *testing.T) {
	var e Emitter
	var got []string

	unsubA := e.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Type.String()) })
	e.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Type.String()) })

	e.Emit(Event{Type: EventData})
	unsubA()
	unsubA()
	e.Emit(Event{Type: EventDisconnected})

	assert.Equal(t, []string{"a:data", "b:data", "b:disconnected"}, got)
	assert.Equal(t, 1, e.HandlerCount())
}

func TestEmitterSubscribeDuringEmit(t *testing.T) {
	var e Emitter
	calls := 0
	e.Subscribe(func(Event) {
		calls++
		e.Subscribe(func(Event) { calls += 10 })
	})

	e.Emit(Event{Type: EventData})
	assert.Equal(t, 1, calls, "handler added during Emit must not see the current event")

	e.Emit(Event{Type: EventData})
	assert.Equal(t, 12, calls)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "dp-refresh", EventDPRefresh.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
