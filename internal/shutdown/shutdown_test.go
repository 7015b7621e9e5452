package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryEnter_RefusedAfterShutdown(t *testing.T) {
	c := New()
	release, ok := c.TryEnter()
	require.True(t, ok)
	assert.Equal(t, 1, c.Active())

	c.RequestShutdown(time.Second)
	assert.True(t, c.ShuttingDown())

	_, ok = c.TryEnter()
	assert.False(t, ok)

	release()
	release()
	assert.Equal(t, 0, c.Active())
}

func TestWaitForDrain_Completes(t *testing.T) {
	c := New()
	release, ok := c.TryEnter()
	require.True(t, ok)

	c.RequestShutdown(5 * time.Second)
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	start := time.Now()
	assert.True(t, c.WaitForDrain())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForDrain_TimesOut(t *testing.T) {
	c := New()
	_, ok := c.TryEnter()
	require.True(t, ok)

	c.RequestShutdown(50 * time.Millisecond)
	assert.False(t, c.WaitForDrain())
	assert.Equal(t, 1, c.Active())
}

func TestWaitForDrain_NoShutdown(t *testing.T) {
	c := New()
	assert.True(t, c.WaitForDrain())
}
