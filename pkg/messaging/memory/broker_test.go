package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "appointment.cancelled")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "appointment.cancelled", map[string]string{"reason": "absence"}))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"reason":"absence"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Len(t, other, 0)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestClosedBroker(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Close())
	assert.Error(t, b.Publish(context.Background(), "x", 1))
	_, err := b.Subscribe(context.Background(), "x")
	assert.Error(t, err)
}
