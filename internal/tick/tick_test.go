package tick

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSource(t *testing.T) {
	t.Run("calls fn repeatedly while running", func(t *testing.T) {
		ts := NewTickerSource(5 * time.Millisecond)
		var count int64
		ts.Start(func() { atomic.AddInt64(&count, 1) })

		require.Eventually(t, func() bool {
			return atomic.LoadInt64(&count) >= 3
		}, time.Second, time.Millisecond)

		ts.Stop()
		assert.False(t, ts.Running())
	})

	t.Run("Start is a no-op while already running", func(t *testing.T) {
		ts := NewTickerSource(5 * time.Millisecond)
		ts.Start(func() {})
		assert.True(t, ts.Running())
		ts.Start(func() {}) // should not panic or replace the running goroutine
		assert.True(t, ts.Running())
		ts.Stop()
	})

	t.Run("Stop is synchronous: no tick fires after it returns", func(t *testing.T) {
		ts := NewTickerSource(2 * time.Millisecond)
		var count int64
		ts.Start(func() { atomic.AddInt64(&count, 1) })
		time.Sleep(20 * time.Millisecond)
		ts.Stop()
		after := atomic.LoadInt64(&count)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, after, atomic.LoadInt64(&count))
	})

	t.Run("Stop is idempotent and safe before Start", func(t *testing.T) {
		ts := NewTickerSource(time.Millisecond)
		assert.NotPanics(t, func() {
			ts.Stop()
			ts.Stop()
		})
	})
}
