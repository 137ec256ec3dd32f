package idempotency

import (
	"context"
	"sync"
	"time"

	clockport "github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use. Records never expire unless WithTTL is set.
type Store struct {
	mu sync.RWMutex
	m  map[idempotency.Fingerprint]idempotency.Record

	ttl time.Duration
	clk clockport.Clock
}

type Option func(*Store)

// WithTTL hides records whose CreatedAt is older than ttl according to clk,
// and drops them on the next Put.
func WithTTL(ttl time.Duration, clk clockport.Clock) Option {
	return func(s *Store) {
		s.ttl = ttl
		s.clk = clk
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		m: make(map[idempotency.Fingerprint]idempotency.Record),
	}
	for _, o := range opts {
		o(s)
	}
	if s.ttl <= 0 || s.clk == nil {
		s.ttl, s.clk = 0, nil
	}
	return s
}

func (s *Store) Get(_ context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok || s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *Store) Put(_ context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clk != nil {
		for k, v := range s.m {
			if s.expired(v) {
				delete(s.m, k)
			}
		}
	}
	s.m[fp] = rec
	return nil
}

// Len reports the number of stored records, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.clk != nil && !rec.CreatedAt.IsZero() && s.clk.Now().Sub(rec.CreatedAt) >= s.ttl
}
