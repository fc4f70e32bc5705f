package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
	"github.com/speedrun-hq/paydesk/pkg/models"
	"golang.org/x/sync/singleflight"
)

// Dialer constructs a ledger client scoped to address and accountID.
// An empty accountID lets the client pick the default account.
type Dialer func(ctx context.Context, address, accountID string) (ledger.Client, error)

// InitializationError is returned when a ledger client cannot be constructed
type InitializationError struct {
	Address   string
	AccountID string
	Err       error
}

func (e *InitializationError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("failed to initialize ledger client for %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("failed to initialize ledger client for %s (account %s): %v", e.Address, e.AccountID, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// Session holds the single live ledger client of the process.
// Identity transitions are serialised; identical concurrent requests
// share one in-flight initialisation.
type Session struct {
	dial   Dialer
	logger logger.Logger

	mu        sync.Mutex
	client    ledger.Client
	address   string
	accountID string

	inflight singleflight.Group

	refresh atomic.Uint64
	subsMu  sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// New creates an empty session
func New(dial Dialer, log logger.Logger) *Session {
	return &Session{
		dial:   dial,
		logger: log,
		subs:   make(map[int]chan uint64),
	}
}

// Client returns the live client for (address, accountID), initialising,
// replacing or switching the cached one as needed.
func (s *Session) Client(ctx context.Context, address, accountID string) (ledger.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	address = models.NormalizeAddress(address)
	key := address + "|" + accountID

	// the shared initialisation outlives any single caller; each caller
	// stops waiting when its own context ends
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.acquire(context.WithoutCancel(ctx), address, accountID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugWithScope(logger.Session, "Shared in-flight client for %s", key)
		}
		return res.Val.(ledger.Client), nil
	}
}

func (s *Session) acquire(ctx context.Context, address, accountID string) (ledger.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.client == nil || s.address != address:
		if s.client != nil {
			s.logger.InfoWithScope(logger.Session, "Identity changed %s -> %s, discarding client", s.address, address)
			s.discardLocked()
		}

		client, err := s.dial(ctx, address, accountID)
		if err != nil {
			metrics.SessionInits.WithLabelValues("failure").Inc()
			return nil, &InitializationError{Address: address, AccountID: accountID, Err: err}
		}
		metrics.SessionInits.WithLabelValues("success").Inc()

		s.client = client
		s.address = address
		s.accountID = client.AccountID()
		s.logger.InfoWithScope(logger.Session, "Initialized client for %s (account %q)", address, s.accountID)
		return client, nil

	case accountID != "" && accountID != s.accountID:
		if err := s.client.SwitchAccount(ctx, accountID); err != nil {
			return nil, fmt.Errorf("failed to switch account to %s: %w", accountID, err)
		}
		metrics.SessionSwitches.Inc()
		s.logger.InfoWithScope(logger.Session, "Switched account %q -> %q", s.accountID, accountID)
		s.accountID = accountID
		return s.client, nil

	default:
		return s.client, nil
	}
}

// Reset discards the cached client and active account. The next Client call
// constructs a fresh one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil && s.accountID == "" {
		return
	}
	s.discardLocked()
	metrics.SessionResets.Inc()
	s.logger.DebugWithScope(logger.Session, "Session reset")
}

func (s *Session) discardLocked() {
	if s.client != nil {
		s.client.Close()
	}
	s.client = nil
	s.address = ""
	s.accountID = ""
}

// Identity returns the address and account of the cached client
func (s *Session) Identity() (address, accountID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.accountID, s.client != nil
}

// TriggerRefresh asks read-only views to re-fetch. It does not touch the cached client.
func (s *Session) TriggerRefresh() uint64 {
	v := s.refresh.Add(1)
	metrics.RefreshCounter.Set(float64(v))

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		// keep only the latest value for slow subscribers
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
	return v
}

// RefreshCounter returns the current refresh counter
func (s *Session) RefreshCounter() uint64 {
	return s.refresh.Load()
}

// Subscribe returns a channel receiving the refresh counter after each
// TriggerRefresh, and a function that ends the subscription.
func (s *Session) Subscribe() (<-chan uint64, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Close discards the cached client and ends every subscription
func (s *Session) Close() {
	s.Reset()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
