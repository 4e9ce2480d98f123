package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	payload := []byte(`{"status":"active"}`)
	require.NoError(t, m.Put(ctx, "subscriptions/u1", payload))
	payload[0] = 'x'

	got, ok, err := m.Get(ctx, "subscriptions/u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"status":"active"}`, string(got))

	require.NoError(t, m.Delete(ctx, "subscriptions/u1"))
	_, ok, _ = m.Get(ctx, "subscriptions/u1")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemory_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	changes, err := m.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Put(context.Background(), "subscriptions/u1", []byte(`{"status":"active"}`)))
	require.NoError(t, m.Delete(context.Background(), "subscriptions/u1"))

	set := <-changes
	assert.Equal(t, "set", set.Op)
	assert.Equal(t, "subscriptions/u1", set.Path)
	assert.JSONEq(t, `{"status":"active"}`, string(set.Data))
	removed := <-changes
	assert.Equal(t, "remove", removed.Op)
	assert.Empty(t, removed.Data)

	cancel()
	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("feed not closed after cancel")
	}
	require.NoError(t, m.Put(context.Background(), "subscriptions/u1", []byte(`{}`)))
}

func TestRedisMirror_Key(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	m := NewRedisMirror(client)
	assert.Equal(t, "tc:payments/payment_u1_1", m.Key("payments/payment_u1_1"))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

var (
	_ Feed = (*Memory)(nil)
	_ Feed = (*RedisMirror)(nil)
)
