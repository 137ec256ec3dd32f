package memberrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

// Repo is an in-memory implementation of memberrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.MemberID]memberrepo.Member
	idByEmail map[string]domain.MemberID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.MemberID]memberrepo.Member),
		idByEmail: make(map[string]domain.MemberID),
	}
}

func (r *Repo) Create(ctx context.Context, m memberrepo.Member) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(m)
}

func (r *Repo) createLocked(m memberrepo.Member) error {
	if _, ok := r.byID[m.ID]; ok {
		return memberrepo.ErrAlreadyExists
	}
	key := emailKey(m.Email)
	if _, ok := r.idByEmail[key]; ok {
		return memberrepo.ErrEmailTaken
	}
	r.byID[m.ID] = m
	r.idByEmail[key] = m.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, m memberrepo.Member) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		return memberrepo.ErrNotFound
	}
	oldKey, newKey := emailKey(existing.Email), emailKey(m.Email)
	if oldKey != newKey {
		if _, taken := r.idByEmail[newKey]; taken {
			return memberrepo.ErrEmailTaken
		}
		delete(r.idByEmail, oldKey)
		r.idByEmail[newKey] = m.ID
	}
	m.CreatedAt = existing.CreatedAt
	r.byID[m.ID] = m
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[emailKey(email)]
	if !ok {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *Repo) UpsertByEmail(ctx context.Context, m memberrepo.Member) (memberrepo.Member, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.idByEmail[emailKey(m.Email)]; ok {
		return r.byID[id], nil
	}
	if err := r.createLocked(m); err != nil {
		return memberrepo.Member{}, err
	}
	return m, nil
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]memberrepo.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memberrepo.Member, 0, len(r.byID))
	for _, m := range r.byID {
		if !includeInactive && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
