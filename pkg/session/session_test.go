package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/ledger/mocks"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0xa11ce"
	bob   = "0xb0b"
)

type recordingDialer struct {
	calls   atomic.Int32
	clients []*mocks.MockClient
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (d *recordingDialer) dial(ctx context.Context, address, accountID string) (ledger.Client, error) {
	d.calls.Add(1)
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}

	if accountID == "" {
		accountID = "acc-" + address[len(address)-4:]
	}
	client := mocks.NewMockClient(address, accountID)
	client.AccountList = append(client.AccountList, models.Account{ID: "acc-2", Owner: address})

	d.mu.Lock()
	d.clients = append(d.clients, client)
	d.mu.Unlock()
	return client, nil
}

func newSession(d *recordingDialer) *Session {
	return New(d.dial, &logger.EmptyLogger{})
}

func TestClientTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("First call initializes", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		client, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		assert.Equal(t, int32(1), d.calls.Load())

		address, accountID, ok := s.Identity()
		assert.True(t, ok)
		assert.Equal(t, models.NormalizeAddress(alice), address)
		assert.Equal(t, client.AccountID(), accountID)
	})

	t.Run("Same identity returns cached client", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		first, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		second, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		third, err := s.Client(ctx, alice, first.AccountID())
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Same(t, first, third)
		assert.Equal(t, int32(1), d.calls.Load())
	})

	t.Run("Short and long address spellings are the same identity", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		_, err := s.Client(ctx, "0x0b0b", "")
		require.NoError(t, err)
		_, err = s.Client(ctx, models.NormalizeAddress("0xb0b"), "")
		require.NoError(t, err)
		assert.Equal(t, int32(1), d.calls.Load())
	})

	t.Run("Account switch keeps the handle", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		first, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		switched, err := s.Client(ctx, alice, "acc-2")
		require.NoError(t, err)

		assert.Same(t, first, switched)
		assert.Equal(t, "acc-2", switched.AccountID())
		assert.Equal(t, []string{"acc-2"}, d.clients[0].Switches)
		assert.False(t, d.clients[0].IsClosed())
		assert.Equal(t, int32(1), d.calls.Load())

		_, accountID, _ := s.Identity()
		assert.Equal(t, "acc-2", accountID)
	})

	t.Run("Failed switch keeps previous account", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		first, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		_, err = s.Client(ctx, alice, "acc-missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrNotFound))

		_, accountID, ok := s.Identity()
		assert.True(t, ok)
		assert.Equal(t, first.AccountID(), accountID)
	})

	t.Run("Identity change discards the old handle", func(t *testing.T) {
		d := &recordingDialer{}
		s := newSession(d)

		first, err := s.Client(ctx, alice, "")
		require.NoError(t, err)
		second, err := s.Client(ctx, bob, "")
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.True(t, d.clients[0].IsClosed())
		assert.Equal(t, int32(2), d.calls.Load())

		address, _, _ := s.Identity()
		assert.Equal(t, models.NormalizeAddress(bob), address)
	})

	t.Run("Dial failure is an initialization error", func(t *testing.T) {
		d := &recordingDialer{err: errors.New("connection refused")}
		s := newSession(d)

		_, err := s.Client(ctx, alice, "acc-1")
		var initErr *InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, "acc-1", initErr.AccountID)
		assert.Contains(t, err.Error(), "connection refused")

		_, _, ok := s.Identity()
		assert.False(t, ok)
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	d := &recordingDialer{}
	s := newSession(d)

	first, err := s.Client(ctx, alice, "")
	require.NoError(t, err)

	s.Reset()
	_, _, ok := s.Identity()
	assert.False(t, ok)
	assert.True(t, d.clients[0].IsClosed())

	second, err := s.Client(ctx, alice, "")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), d.calls.Load())

	// resetting an empty session is a no-op
	s.Reset()
	s.Reset()
}

func TestConcurrentInitializationIsShared(t *testing.T) {
	ctx := context.Background()
	d := &recordingDialer{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newSession(d)

	const callers = 8
	results := make([]ledger.Client, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := s.Client(ctx, alice, "")
			assert.NoError(t, err)
			results[i] = client
		}(i)
	}

	select {
	case <-d.started:
	case <-time.After(2 * time.Second):
		t.Fatal("dialer was never called")
	}
	// give the other callers time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(d.gate)
	wg.Wait()

	assert.Equal(t, int32(1), d.calls.Load())
	for _, client := range results {
		assert.Same(t, results[0], client)
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	d := &recordingDialer{}
	s := newSession(d)

	client, err := s.Client(ctx, alice, "")
	require.NoError(t, err)

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	assert.Equal(t, uint64(0), s.RefreshCounter())
	assert.Equal(t, uint64(1), s.TriggerRefresh())
	assert.Equal(t, uint64(1), <-updates)

	// a slow subscriber only sees the latest value
	s.TriggerRefresh()
	s.TriggerRefresh()
	assert.Equal(t, uint64(3), <-updates)
	assert.Equal(t, uint64(3), s.RefreshCounter())

	// refresh never invalidates the client
	again, err := s.Client(ctx, alice, "")
	require.NoError(t, err)
	assert.Same(t, client, again)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestClose(t *testing.T) {
	d := &recordingDialer{}
	s := newSession(d)
	_, err := s.Client(context.Background(), alice, "")
	require.NoError(t, err)

	updates, unsubscribe := s.Subscribe()
	s.Close()

	_, open := <-updates
	assert.False(t, open)
	assert.True(t, d.clients[0].IsClosed())

	// unsubscribing after close must not panic
	assert.NotPanics(t, unsubscribe)
}

func TestCancelledCallerDoesNotFailSharedInitialization(t *testing.T) {
	d := &recordingDialer{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newSession(d)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := s.Client(leaderCtx, alice, "")
		leaderErr <- err
	}()

	select {
	case <-d.started:
	case <-time.After(2 * time.Second):
		t.Fatal("dialer was never called")
	}

	follower := make(chan ledger.Client, 1)
	go func() {
		client, err := s.Client(context.Background(), alice, "")
		assert.NoError(t, err)
		follower <- client
	}()
	// give the follower time to join the in-flight call
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(d.gate)
	select {
	case client := <-follower:
		require.NotNil(t, client)
		assert.Equal(t, models.NormalizeAddress(alice), client.Address())
	case <-time.After(2 * time.Second):
		t.Fatal("follower never received the client")
	}
	assert.Equal(t, int32(1), d.calls.Load())
}
