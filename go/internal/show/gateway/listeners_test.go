package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveshow/go/internal/show/events"
)

type collector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collector) HandleEvent(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event{}, c.events...)
}

func TestListeners_RegisterIsIdempotentPerKey(t *testing.T) {
	l := NewListeners()
	first, second := &collector{}, &collector{}

	l.Register("room-view", first)
	l.Register("room-view", second)
	require.Equal(t, 1, l.Len())

	l.Deliver(events.FetchOffers{})
	assert.Empty(t, first.all())
	assert.Len(t, second.all(), 1)
}

func TestListeners_DeliversInRegistrationOrder(t *testing.T) {
	l := NewListeners()
	var order []string
	l.Register("b", HandlerFunc(func(events.Event) { order = append(order, "b") }))
	l.Register("a", HandlerFunc(func(events.Event) { order = append(order, "a") }))

	l.Deliver(events.FetchOffers{})
	assert.Equal(t, []string{"b", "a"}, order)

	l.Unregister("b")
	l.Unregister("missing")
	order = nil
	l.Deliver(events.FetchOffers{})
	assert.Equal(t, []string{"a"}, order)
}

func TestListeners_DeliverRawSkipsBadPayloads(t *testing.T) {
	l := NewListeners()
	c := &collector{}
	l.Register("c", c)

	l.deliverRaw("disco", []byte(`{}`))
	l.deliverRaw(events.NameRallyIn, []byte(`{}`))
	l.deliverRaw(events.NameRoomEnded, []byte(`{"roomId":"r1"}`))

	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, events.RoomLifecycle{Kind: events.NameRoomEnded, RoomID: "r1"}, got[0])
}
