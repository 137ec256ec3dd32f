package idempotency

import (
	"context"
	"time"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a stored create response.
//
// A record with an empty BodyHash is the key's meta record: it pins the body
// hash first seen for key + member + method + route, so a reused key with a
// different body is detected. Route is the chi path template ("/api/expenses").
type Fingerprint struct {
	Key      Key
	MemberID domain.MemberID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response we can replay for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying 201 responses on retries.
// Implementations may expire records; an expired record reads as absent.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
