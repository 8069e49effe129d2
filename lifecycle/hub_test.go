package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversInPriorityOrder(t *testing.T) {
	h := NewHub[string](nil)

	var order []string
	h.Subscribe(Subscription[string]{ID: "low", Priority: 0, Deliver: func(e string) error {
		order = append(order, "low:"+e)
		return nil
	}})
	h.Subscribe(Subscription[string]{ID: "high", Priority: 10, Deliver: func(e string) error {
		order = append(order, "high:"+e)
		return nil
	}})

	h.Publish("x")
	require.Equal(t, []string{"high:x", "low:x"}, order)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub[int](nil)
	calls := 0
	unsub := h.Subscribe(Subscription[int]{ID: "a", Deliver: func(int) error { calls++; return nil }})

	h.Publish(1)
	unsub()
	h.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Len())
}

func TestHubAcceptsFilterSkipsNonMatching(t *testing.T) {
	h := NewHub[int](nil)
	var got []int
	h.Subscribe(Subscription[int]{
		ID:      "evens",
		Accepts: func(e int) bool { return e%2 == 0 },
		Deliver: func(e int) error { got = append(got, e); return nil },
	})

	for i := 0; i < 4; i++ {
		h.Publish(i)
	}
	assert.Equal(t, []int{0, 2}, got)
}

// A panicking or erroring listener must not prevent delivery to the rest.
func TestHubIsolatesListenerFailures(t *testing.T) {
	h := NewHub[string](nil)

	var secondSaw, thirdSaw int
	h.Subscribe(Subscription[string]{ID: "panics", Priority: 2, Deliver: func(string) error {
		panic("boom")
	}})
	h.Subscribe(Subscription[string]{ID: "errors", Priority: 1, Deliver: func(string) error {
		return errors.New("nope")
	}})
	h.Subscribe(Subscription[string]{ID: "ok1", Priority: 0, Deliver: func(string) error {
		secondSaw++
		return nil
	}})
	h.Subscribe(Subscription[string]{ID: "ok2", Priority: -1, Deliver: func(string) error {
		thirdSaw++
		return nil
	}})

	require.NotPanics(t, func() { h.Publish("evt") })

	assert.Equal(t, 1, secondSaw)
	assert.Equal(t, 1, thirdSaw)
}

func TestHubErrorHandlerReceivesFailures(t *testing.T) {
	type failure struct {
		id  string
		err error
	}
	var failures []failure

	h := NewHub[string](func(sub Subscription[string], event string, err error) {
		failures = append(failures, failure{id: sub.ID, err: err})
	})

	h.Subscribe(Subscription[string]{ID: "panicker", Deliver: func(string) error { panic("x") }})
	h.Subscribe(Subscription[string]{ID: "failer", Deliver: func(string) error { return errors.New("bad") }})

	h.Publish("evt")

	require.Len(t, failures, 2)
	for _, f := range failures {
		assert.Error(t, f.err)
	}
}
