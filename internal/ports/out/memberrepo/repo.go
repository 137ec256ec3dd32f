package memberrepo

import (
	"context"
	"time"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// Member is the persistence shape used by the member repository.
// It's used as an internal record, not an HTTP DTO.
type Member struct {
	ID domain.MemberID
	// Email is unique (case-insensitive) and stored normalized.
	Email string
	Name  string

	IsAdmin  bool
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted members.
//
// Result ordering expectations:
// - List returns members ordered by CreatedAt descending, then ID ascending.
type Repository interface {
	Create(ctx context.Context, m Member) error
	Update(ctx context.Context, m Member) error

	GetByID(ctx context.Context, id domain.MemberID) (Member, error)
	GetByEmail(ctx context.Context, email string) (Member, error)

	// UpsertByEmail inserts m when no member uses m.Email yet and returns the
	// stored row either way. An existing row is returned unchanged.
	UpsertByEmail(ctx context.Context, m Member) (Member, error)

	List(ctx context.Context, includeInactive bool) ([]Member, error)
}
