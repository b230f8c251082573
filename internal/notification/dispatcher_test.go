package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ecommerce-accounts/pkg/logger"
)

// stubSender fails its first `failures` sends.
type stubSender struct {
	mu       sync.Mutex
	failures int
	n        int
	block    chan struct{}
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(ctx context.Context, _ Message) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.n <= s.failures {
		return errors.New("relay unavailable")
	}
	return nil
}

func (s *stubSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

type failingStore struct{}

func (failingStore) Reserve(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (failingStore) Release(context.Context, string) error        { return nil }

func newTestDispatcher(t *testing.T, sender Sender, store IdempotencyStore) *Dispatcher {
	t.Helper()
	cfg := DispatcherConfig{Timeout: time.Second, RetryBackoff: time.Millisecond}
	return NewDispatcher(sender, store, cfg, prometheus.NewRegistry(), logger.Discard())
}

func outcome(d *Dispatcher, o string) float64 {
	return testutil.ToFloat64(d.outcomes.WithLabelValues(string(CaseCreateAccount), o))
}

func TestDispatcher_DeliversOnce(t *testing.T) {
	sender := &stubSender{}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	d.Notify(context.Background(), welcome())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, sender.calls())
	assert.Equal(t, 1.0, outcome(d, outcomeSent))
	assert.Equal(t, 0.0, outcome(d, outcomeRetried))
}

func TestDispatcher_RetriesExactlyOnce(t *testing.T) {
	sender := &stubSender{failures: 1}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	d.Notify(context.Background(), welcome())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, sender.calls())
	assert.Equal(t, 1.0, outcome(d, outcomeRetried))
	assert.Equal(t, 1.0, outcome(d, outcomeSent))
}

func TestDispatcher_DropsAfterSecondFailure(t *testing.T) {
	sender := &stubSender{failures: 10}
	store := NewMemoryIdempotencyStore(time.Hour)
	d := newTestDispatcher(t, sender, store)

	d.Notify(context.Background(), welcome())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, sender.calls(), "no more than one retry")
	assert.Equal(t, 1.0, outcome(d, outcomeDropped))
	assert.Equal(t, 0, store.Len(), "dropped message releases its claim")
}

func TestDispatcher_SkipsDuplicates(t *testing.T) {
	sender := &stubSender{}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	d.Notify(context.Background(), welcome())
	d.Notify(context.Background(), welcome())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, sender.calls())
	assert.Equal(t, 1.0, outcome(d, outcomeDuplicate))
}

func TestDispatcher_StoreFailureStillSends(t *testing.T) {
	sender := &stubSender{}
	d := newTestDispatcher(t, sender, failingStore{})

	d.Notify(context.Background(), welcome())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, sender.calls())
}

func TestDispatcher_SurvivesCallerCancellation(t *testing.T) {
	sender := &stubSender{}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, welcome())
	cancel()
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, sender.calls())
}

func TestDispatcher_CloseRejectsNewMessages(t *testing.T) {
	sender := &stubSender{}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	require.NoError(t, d.Close(context.Background()))
	d.Notify(context.Background(), welcome())

	assert.Equal(t, 0, sender.calls())
	assert.Equal(t, 1.0, outcome(d, outcomeDropped))
}

func TestDispatcher_CloseHonorsDeadline(t *testing.T) {
	sender := &stubSender{block: make(chan struct{})}
	d := newTestDispatcher(t, sender, NewMemoryIdempotencyStore(time.Hour))

	d.Notify(context.Background(), welcome())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(sender.block)
	require.NoError(t, d.Close(context.Background()))
}

func TestNewDispatcher_ZeroConfigUsesDefaults(t *testing.T) {
	d := NewDispatcher(&stubSender{}, NewMemoryIdempotencyStore(time.Hour), DispatcherConfig{},
		prometheus.NewRegistry(), logger.Discard())

	assert.Equal(t, DefaultDispatcherConfig(), d.cfg)
}
