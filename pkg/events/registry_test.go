package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NotifiesInRegistrationOrder(t *testing.T) {
	r := NewRegistry[string](nil)

	var calls []string
	r.Add(func(v string) { calls = append(calls, "a:"+v) })
	r.Add(func(v string) { calls = append(calls, "b:"+v) })
	r.Add(func(v string) { calls = append(calls, "c:"+v) })

	r.Notify("x")

	assert.Equal(t, []string{"a:x", "b:x", "c:x"}, calls)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry[int](nil)

	var a, b int
	unsubA := r.Add(func(v int) { a += v })
	r.Add(func(v int) { b += v })

	r.Notify(1)
	unsubA()
	unsubA()
	r.Notify(1)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IsolatesPanics(t *testing.T) {
	var failures []error
	r := NewRegistry[int](func(err error) { failures = append(failures, err) })

	delivered := false
	r.Add(func(int) { panic(errors.New("observer broke")) })
	r.Add(func(int) { panic("plain string") })
	r.Add(func(int) { delivered = true })

	require.NotPanics(t, func() { r.Notify(7) })

	assert.True(t, delivered)
	require.Len(t, failures, 2)
	assert.EqualError(t, failures[0], "observer broke")
	assert.EqualError(t, failures[1], "panic: plain string")
}

func TestRegistry_HandlerMayUnsubscribeDuringNotify(t *testing.T) {
	r := NewRegistry[int](nil)

	var unsub Unsubscribe
	count := 0
	unsub = r.Add(func(int) {
		count++
		unsub()
	})

	r.Notify(1)
	r.Notify(1)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry[int](nil)
	r.Add(func(int) {})
	r.Add(func(int) {})

	r.Clear()

	assert.Equal(t, 0, r.Len())
}
