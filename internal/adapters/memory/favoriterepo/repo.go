package favoriterepo

import (
	"context"
	"sort"
	"sync"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
)

// Repo is an in-memory implementation of favoriterepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.FavoriteRouteID]domain.FavoriteRoute
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.FavoriteRouteID]domain.FavoriteRoute)}
}

func (r *Repo) Create(ctx context.Context, fr domain.FavoriteRoute) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[fr.ID]; ok {
		return favoriterepo.ErrAlreadyExists
	}
	r.byID[fr.ID] = fr
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.FavoriteRouteID) (domain.FavoriteRoute, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	fr, ok := r.byID[id]
	if !ok {
		return domain.FavoriteRoute{}, favoriterepo.ErrNotFound
	}
	return fr, nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.FavoriteRoute, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FavoriteRoute, 0)
	for _, fr := range r.byID {
		if fr.MemberID == memberID {
			out = append(out, fr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) Update(ctx context.Context, fr domain.FavoriteRoute) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[fr.ID]
	if !ok {
		return favoriterepo.ErrNotFound
	}
	fr.MemberID = existing.MemberID
	fr.CreatedAt = existing.CreatedAt
	r.byID[fr.ID] = fr
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.FavoriteRouteID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return favoriterepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
