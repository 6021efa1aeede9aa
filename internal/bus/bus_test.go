package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe("a", func(Event) { order = append(order, "a") })
	b.Subscribe("b", func(Event) { order = append(order, "b") })
	b.Subscribe("c", func(Event) { order = append(order, "c") })

	b.Notify(Event{Kind: EventSuccess, Resource: "res"})

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	token := b.Subscribe("a", func(Event) { calls++ })

	b.Notify(Event{Kind: EventSuccess})
	require.Equal(t, 1, calls)

	b.Unsubscribe(token)
	b.Notify(Event{Kind: EventSuccess})
	assert.Equal(t, 1, calls)
}

func TestUnsubscribeUnknownTokenIsNoop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Unsubscribe(Token("nope")) })
}

func TestSubscriptionTokensAreUnique(t *testing.T) {
	b := New()
	t1 := b.Subscribe("a", func(Event) {})
	t2 := b.Subscribe("a", func(Event) {})
	assert.NotEqual(t, t1, t2)
}

func TestNotifyStampsAtWhenZero(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe("a", func(e Event) { got = e })
	b.Notify(Event{Kind: EventBusy})
	assert.False(t, got.At.IsZero())
}
