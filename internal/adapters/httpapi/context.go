package httpapi

import (
	"context"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

type memberKey struct{}

func WithMember(ctx context.Context, m domain.Member) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

func MemberFromContext(ctx context.Context) (domain.Member, bool) {
	v, ok := ctx.Value(memberKey{}).(domain.Member)
	return v, ok && v.ID != ""
}
