package expenserepo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

// Repo is an in-memory implementation of expenserepo.Repository.
// It is safe for concurrent use.
//
// Members is consulted for the owner reference on Create (mirroring the
// foreign key in Postgres) and for attribution in ListAll.
type Repo struct {
	mu sync.RWMutex

	members memberrepo.Repository
	byID    map[domain.ExpenseID]domain.Expense
}

func NewRepo(members memberrepo.Repository) *Repo {
	return &Repo{
		members: members,
		byID:    make(map[domain.ExpenseID]domain.Expense),
	}
}

func (r *Repo) Create(ctx context.Context, legs ...domain.Expense) error {
	if err := r.checkOwners(ctx, legs); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[domain.ExpenseID]struct{}, len(legs))
	for _, e := range legs {
		if _, ok := r.byID[e.ID]; ok {
			return expenserepo.ErrAlreadyExists
		}
		if _, ok := seen[e.ID]; ok {
			return expenserepo.ErrAlreadyExists
		}
		seen[e.ID] = struct{}{}
	}
	for _, e := range legs {
		r.byID[e.ID] = clone(e)
	}
	return nil
}

func (r *Repo) checkOwners(ctx context.Context, legs []domain.Expense) error {
	if r.members == nil {
		return nil
	}
	for _, e := range legs {
		if _, err := r.members.GetByID(ctx, e.MemberID); err != nil {
			if errors.Is(err, memberrepo.ErrNotFound) {
				return expenserepo.ErrUnknownMember
			}
			return err
		}
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ExpenseID) (domain.Expense, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return domain.Expense{}, expenserepo.ErrNotFound
	}
	return clone(e), nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID, month *domain.YearMonth) ([]domain.Expense, error) {
	_ = ctx
	return r.filter(func(e domain.Expense) bool {
		return e.MemberID == memberID && (month == nil || month.Contains(e.Date))
	}), nil
}

func (r *Repo) ListAll(ctx context.Context, f expenserepo.AllFilter) ([]domain.Expense, error) {
	out := r.filter(func(e domain.Expense) bool {
		if f.MemberID != nil && e.MemberID != *f.MemberID {
			return false
		}
		return f.Month == nil || f.Month.Contains(e.Date)
	})
	if r.members == nil {
		return out, nil
	}

	refs := make(map[domain.MemberID]*domain.MemberRef)
	for i := range out {
		id := out[i].MemberID
		ref, ok := refs[id]
		if !ok {
			m, err := r.members.GetByID(ctx, id)
			switch {
			case err == nil:
				ref = &domain.MemberRef{ID: m.ID, Name: m.Name, Email: m.Email}
			case errors.Is(err, memberrepo.ErrNotFound):
				ref = nil
			default:
				return nil, err
			}
			refs[id] = ref
		}
		if ref != nil {
			cp := *ref
			out[i].Member = &cp
		}
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, e domain.Expense) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[e.ID]
	if !ok {
		return expenserepo.ErrNotFound
	}
	// Owner, pairing and creation time are immutable.
	e.MemberID = existing.MemberID
	e.TripGroupID = existing.TripGroupID
	e.CreatedAt = existing.CreatedAt
	r.byID[e.ID] = clone(e)
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.ExpenseID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return expenserepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) filter(keep func(domain.Expense) bool) []domain.Expense {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Expense, 0)
	for _, e := range r.byID {
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func clone(e domain.Expense) domain.Expense {
	cp := e
	if e.TripGroupID != nil {
		g := *e.TripGroupID
		cp.TripGroupID = &g
	}
	// Attribution is computed on read, never stored.
	cp.Member = nil
	return cp
}
