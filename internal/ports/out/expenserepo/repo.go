package expenserepo

import (
	"context"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// AllFilter narrows the admin listing. Nil fields mean "no filter".
type AllFilter struct {
	Month    *domain.YearMonth
	MemberID *domain.MemberID
}

// Repository provides access to persisted expense legs.
//
// Authorization is not enforced here; callers check ownership before
// reading for display, updating or deleting.
//
// Result ordering expectations:
// - List methods return expenses ordered by Date descending, then CreatedAt
//   descending, then ID ascending.
type Repository interface {
	// Create persists all legs or none of them.
	Create(ctx context.Context, legs ...domain.Expense) error

	GetByID(ctx context.Context, id domain.ExpenseID) (domain.Expense, error)

	ListByMember(ctx context.Context, memberID domain.MemberID, month *domain.YearMonth) ([]domain.Expense, error)

	// ListAll returns every member's expenses with Member attribution populated.
	ListAll(ctx context.Context, f AllFilter) ([]domain.Expense, error)

	// Update overwrites one leg in place. It never touches the paired leg.
	Update(ctx context.Context, e domain.Expense) error

	// Delete removes one leg. It never cascades to the paired leg.
	Delete(ctx context.Context, id domain.ExpenseID) error
}
