package replication

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/store/storetest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	op   outbox.Op
	path string
}

type fakeMirror struct {
	mu     sync.Mutex
	writes []write
	data   map[string][]byte
	failOn func(path string) bool
}

func newFakeMirror() *fakeMirror { return &fakeMirror{data: map[string][]byte{}} }

func (m *fakeMirror) Put(_ context.Context, path string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil && m.failOn(path) {
		return errors.New("mirror unavailable")
	}
	m.writes = append(m.writes, write{outbox.OpSet, path})
	m.data[path] = payload
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil && m.failOn(path) {
		return errors.New("mirror unavailable")
	}
	m.writes = append(m.writes, write{outbox.OpRemove, path})
	delete(m.data, path)
	return nil
}

var t0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func TestRunOnce_MirrorsInOrder(t *testing.T) {
	clock := storetest.NewClock(t0)
	s := storetest.New(t, clock)
	ctx := context.Background()
	m := newFakeMirror()
	r := New(s, m, Config{MaxAttempts: 3}, zerolog.Nop())

	_, err := s.ProvisionAccount(ctx, users.User{ID: "u1"})
	require.NoError(t, err)
	_, err = s.PurgeUserData(ctx, "u1")
	require.NoError(t, err)

	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Mirrored)
	require.Len(t, m.writes, 3)
	assert.Equal(t, write{outbox.OpSet, outbox.SubscriptionPath("u1")}, m.writes[0])
	assert.Equal(t, write{outbox.OpRemove, outbox.SubscriptionPath("u1")}, m.writes[2])
	assert.NotContains(t, m.data, outbox.SubscriptionPath("u1"))
	assert.Contains(t, m.data, outbox.TrialPath("u1"))

	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Read)
}

func TestRunOnce_FailingPathDoesNotOvertake(t *testing.T) {
	clock := storetest.NewClock(t0)
	s := storetest.New(t, clock)
	ctx := context.Background()
	m := newFakeMirror()
	m.failOn = func(path string) bool { return strings.HasPrefix(path, "payments/") }
	r := New(s, m, Config{MaxAttempts: 2}, zerolog.Nop())

	id, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePayment(ctx, id, map[string]any{"status": billing.PaymentCompleted}))
	_, err = s.ProvisionAccount(ctx, users.User{ID: "u1"})
	require.NoError(t, err)

	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Deferred)
	assert.Equal(t, 2, sum.Mirrored)

	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Outbox.Failed)
	assert.Equal(t, int64(1), st.Outbox.Pending)

	m.failOn = nil
	st, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Requeued)
	assert.Equal(t, int64(1), st.Superseded)

	_, err = r.RunOnce(ctx)
	require.NoError(t, err)
	var paymentWrites []write
	for _, w := range m.writes {
		if w.path == outbox.PaymentPath(id) {
			paymentWrites = append(paymentWrites, w)
		}
	}
	require.Len(t, paymentWrites, 1)
	assert.Contains(t, string(m.data[outbox.PaymentPath(id)]), `"completed"`)
}

func TestReconcile_DoesNotReplayStaleEntry(t *testing.T) {
	clock := storetest.NewClock(t0)
	s := storetest.New(t, clock)
	ctx := context.Background()
	m := newFakeMirror()
	m.failOn = func(string) bool { return true }
	r := New(s, m, Config{MaxAttempts: 1}, zerolog.Nop())

	id, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	m.failOn = nil
	require.NoError(t, s.UpdatePayment(ctx, id, map[string]any{"status": billing.PaymentCompleted}))
	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Mirrored)

	st, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Requeued)
	assert.Equal(t, int64(1), st.Superseded)

	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Read)
	assert.Contains(t, string(m.data[outbox.PaymentPath(id)]), `"status":"completed"`)
}

func TestReconcile_RequeuesLatestFailedEntry(t *testing.T) {
	clock := storetest.NewClock(t0)
	s := storetest.New(t, clock)
	ctx := context.Background()
	m := newFakeMirror()
	m.failOn = func(string) bool { return true }
	r := New(s, m, Config{MaxAttempts: 1}, zerolog.Nop())

	id, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePayment(ctx, id, map[string]any{"status": billing.PaymentFailed}))
	_, err = r.RunOnce(ctx)
	require.NoError(t, err)
	_, err = r.RunOnce(ctx)
	require.NoError(t, err)

	st, err := r.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.Outbox.Failed)

	m.failOn = nil
	st, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Requeued)
	assert.Equal(t, int64(1), st.Superseded)

	_, err = r.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, m.writes, 1)
	assert.Contains(t, string(m.data[outbox.PaymentPath(id)]), `"failed"`)
}

func TestRun_StopsOnCancel(t *testing.T) {
	clock := storetest.NewClock(t0)
	s := storetest.New(t, clock)
	r := New(s, newFakeMirror(), Config{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
