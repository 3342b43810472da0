package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	t.Run("delivers to every subscriber", func(t *testing.T) {
		b := New[int]()
		var got1, got2 []int
		b.Subscribe(func(v int) { got1 = append(got1, v) })
		b.Subscribe(func(v int) { got2 = append(got2, v) })

		b.Publish(1)
		b.Publish(2)

		assert.Equal(t, []int{1, 2}, got1)
		assert.Equal(t, []int{1, 2}, got2)
	})

	t.Run("Unsubscribe stops future delivery", func(t *testing.T) {
		b := New[string]()
		var got []string
		id := b.Subscribe(func(v string) { got = append(got, v) })

		b.Publish("a")
		b.Unsubscribe(id)
		b.Publish("b")

		assert.Equal(t, []string{"a"}, got)
	})

	t.Run("Unsubscribe of unknown token is a no-op", func(t *testing.T) {
		b := New[int]()
		assert.NotPanics(t, func() { b.Unsubscribe(Token(9999)) })
	})

	t.Run("panicking subscriber does not block others", func(t *testing.T) {
		b := New[int]()
		var got int
		b.Subscribe(func(v int) { panic("boom") })
		b.Subscribe(func(v int) { got = v })

		assert.NotPanics(t, func() { b.Publish(7) })
		assert.Equal(t, 7, got)
	})

	t.Run("Len reflects subscriber count", func(t *testing.T) {
		b := New[int]()
		assert.Equal(t, 0, b.Len())
		id := b.Subscribe(func(int) {})
		assert.Equal(t, 1, b.Len())
		b.Unsubscribe(id)
		assert.Equal(t, 0, b.Len())
	})

	t.Run("concurrent subscribe/publish is race-free", func(t *testing.T) {
		b := New[int]()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				tok := b.Subscribe(func(int) {})
				b.Unsubscribe(tok)
			}()
			go func() {
				defer wg.Done()
				b.Publish(1)
			}()
		}
		wg.Wait()
	})
}
