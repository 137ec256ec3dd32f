package favoriterepo

import (
	"context"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// Repository provides access to persisted favorite routes.
//
// There is no cross-member listing: favorites are always scoped to their owner.
// ListByMember returns routes ordered by CreatedAt descending, then ID ascending.
type Repository interface {
	Create(ctx context.Context, r domain.FavoriteRoute) error
	GetByID(ctx context.Context, id domain.FavoriteRouteID) (domain.FavoriteRoute, error)
	ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.FavoriteRoute, error)
	Update(ctx context.Context, r domain.FavoriteRoute) error
	Delete(ctx context.Context, id domain.FavoriteRouteID) error
}
