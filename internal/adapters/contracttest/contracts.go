package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	expenserepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	favoriterepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
	idempotencyport "github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
	memberrepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

type CleanupFunc = func()

type MemberRepoFactory func(t *testing.T) (memberrepoport.Repository, CleanupFunc)

// ExpenseReposFactory returns an expense repo together with the member repo it
// resolves owners against.
type ExpenseReposFactory func(t *testing.T) (memberrepoport.Repository, expenserepoport.Repository, CleanupFunc)

type FavoriteReposFactory func(t *testing.T) (memberrepoport.Repository, favoriterepoport.Repository, CleanupFunc)

type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		MemberID: domain.MemberID(uuid.NewString()),
		Method:   "POST",
		Route:    "/api/expenses",
		BodyHash: "abc",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v, want ok=false", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"e1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":"e1"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different body hash is a different fingerprint.
	other := fp
	other.BodyHash = "def"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other body: ok=%v err=%v, want ok=false", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":"e2"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":"e2"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunMemberRepo(t *testing.T, newRepo MemberRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	suffix := uuid.NewString()[:8]
	aEmail := "alice-" + suffix + "@example.com"
	aID := domain.MemberID(uuid.NewString())
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:        aID,
		Email:     aEmail,
		Name:      "Alice Johnson",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := repo.GetByID(ctx, aID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got, err := repo.GetByEmail(ctx, aEmail); err != nil || got.ID != aID {
		t.Fatalf("GetByEmail: id=%q err=%v", got.ID, err)
	}
	if _, err := repo.GetByID(ctx, domain.MemberID(uuid.NewString())); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want %v", err, memberrepoport.ErrNotFound)
	}

	// Duplicate ID.
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:        aID,
		Email:     "other-" + suffix + "@example.com",
		Name:      "Other",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, memberrepoport.ErrAlreadyExists) {
		t.Fatalf("Create dup id: err=%v, want %v", err, memberrepoport.ErrAlreadyExists)
	}

	// Email uniqueness.
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:        domain.MemberID(uuid.NewString()),
		Email:     aEmail,
		Name:      "Alice 2",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, memberrepoport.ErrEmailTaken) {
		t.Fatalf("Create dup email: err=%v, want %v", err, memberrepoport.ErrEmailTaken)
	}

	// Upsert returns the existing row unchanged.
	got, err := repo.UpsertByEmail(ctx, memberrepoport.Member{
		ID:        domain.MemberID(uuid.NewString()),
		Email:     aEmail,
		Name:      "Someone Else",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("UpsertByEmail existing: %v", err)
	}
	if got.ID != aID || got.Name != "Alice Johnson" {
		t.Fatalf("UpsertByEmail existing=%+v, want id=%q name=Alice Johnson", got, aID)
	}

	// Upsert creates a new row.
	bEmail := "bob-" + suffix + "@example.com"
	bID := domain.MemberID(uuid.NewString())
	later := now.Add(time.Minute)
	got, err = repo.UpsertByEmail(ctx, memberrepoport.Member{
		ID:        bID,
		Email:     bEmail,
		Name:      "Bob",
		IsActive:  true,
		CreatedAt: later,
		UpdatedAt: later,
	})
	if err != nil {
		t.Fatalf("UpsertByEmail new: %v", err)
	}
	if got.ID != bID {
		t.Fatalf("UpsertByEmail new id=%q, want %q", got.ID, bID)
	}

	// Update: email change onto a taken address fails.
	b, _ := repo.GetByID(ctx, bID)
	b.Email = aEmail
	if err := repo.Update(ctx, b); !errors.Is(err, memberrepoport.ErrEmailTaken) {
		t.Fatalf("Update to taken email: err=%v, want %v", err, memberrepoport.ErrEmailTaken)
	}
	b.Email = bEmail
	b.Name = "Robert"
	b.IsAdmin = true
	b.UpdatedAt = later.Add(time.Minute)
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b, _ = repo.GetByID(ctx, bID)
	if b.Name != "Robert" || !b.IsAdmin {
		t.Fatalf("after Update=%+v, want name=Robert isAdmin=true", b)
	}
	if err := repo.Update(ctx, memberrepoport.Member{ID: domain.MemberID(uuid.NewString()), Email: "x-" + suffix + "@example.com"}); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("Update missing: err=%v, want %v", err, memberrepoport.ErrNotFound)
	}

	// Newest first; inactive members only when asked.
	b.IsActive = false
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update deactivate: %v", err)
	}
	active, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("List active: %v", err)
	}
	if indexOfMember(active, bID) != -1 || indexOfMember(active, aID) == -1 {
		t.Fatalf("List(active) contains b or misses a: %#v", active)
	}
	all, err := repo.List(ctx, true)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	ai, bi := indexOfMember(all, aID), indexOfMember(all, bID)
	if ai == -1 || bi == -1 || bi > ai {
		t.Fatalf("List(all) ordering: a=%d b=%d, want b before a", ai, bi)
	}
}

func indexOfMember(ms []memberrepoport.Member, id domain.MemberID) int {
	for i, m := range ms {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func seedMember(t *testing.T, ctx context.Context, repo memberrepoport.Repository, name string, now time.Time) memberrepoport.Member {
	t.Helper()
	m := memberrepoport.Member{
		ID:        domain.MemberID(uuid.NewString()),
		Email:     name + "-" + uuid.NewString()[:8] + "@example.com",
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("seed member %s: %v", name, err)
	}
	return m
}

func day(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// RunExpenseRepo covers ordering, month filtering, attribution and the
// all-or-nothing round trip insert.
func RunExpenseRepo(t *testing.T, newRepos ExpenseReposFactory) {
	t.Helper()
	ctx := context.Background()

	members, expenses, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	alice := seedMember(t, ctx, members, "alice", now)
	bob := seedMember(t, ctx, members, "bob", now)

	mk := func(owner domain.MemberID, date string, created time.Time, amount int64) domain.Expense {
		return domain.Expense{
			ID:        domain.ExpenseID(uuid.NewString()),
			MemberID:  owner,
			Date:      day(date),
			Departure: "Shibuya",
			Arrival:   "Shinjuku",
			Amount:    amount,
			Transport: domain.TransportTrain,
			TripType:  domain.TripTypeOneWay,
			CreatedAt: created,
			UpdatedAt: created,
		}
	}

	e1 := mk(alice.ID, "2024-03-05", now, 200)
	e2 := mk(alice.ID, "2024-03-20", now, 300)
	e3 := mk(alice.ID, "2024-03-20", now.Add(time.Second), 400)
	e4 := mk(alice.ID, "2024-04-01", now, 500)
	for _, e := range []domain.Expense{e1, e2, e3, e4} {
		if err := expenses.Create(ctx, e); err != nil {
			t.Fatalf("Create %s: %v", e.Date.Format(domain.DateLayout), err)
		}
	}

	got, err := expenses.GetByID(ctx, e1.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Amount != 200 || got.Date.Format(domain.DateLayout) != "2024-03-05" || got.MemberID != alice.ID {
		t.Fatalf("GetByID=%+v", got)
	}
	if _, err := expenses.GetByID(ctx, domain.ExpenseID(uuid.NewString())); !errors.Is(err, expenserepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want %v", err, expenserepoport.ErrNotFound)
	}

	march := domain.YearMonth{Year: 2024, Month: time.March}
	list, err := expenses.ListByMember(ctx, alice.ID, &march)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	wantOrder := []domain.ExpenseID{e3.ID, e2.ID, e1.ID}
	if len(list) != len(wantOrder) {
		t.Fatalf("ListByMember(march) len=%d, want %d", len(list), len(wantOrder))
	}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Fatalf("ListByMember(march)[%d]=%q, want %q", i, list[i].ID, id)
		}
	}
	list, err = expenses.ListByMember(ctx, alice.ID, nil)
	if err != nil || len(list) != 4 || list[0].ID != e4.ID {
		t.Fatalf("ListByMember(all) len=%d err=%v", len(list), err)
	}

	// Round trip: both legs or neither.
	group := domain.TripGroupID(uuid.NewString())
	out := mk(bob.ID, "2024-03-10", now, 250)
	out.TripType, out.TripGroupID = domain.TripTypeRoundTrip, &group
	back := out
	back.ID = domain.ExpenseID(uuid.NewString())
	back.Departure, back.Arrival = out.Arrival, out.Departure
	if err := expenses.Create(ctx, out, back); err != nil {
		t.Fatalf("Create round trip: %v", err)
	}
	bobs, err := expenses.ListByMember(ctx, bob.ID, &march)
	if err != nil || len(bobs) != 2 {
		t.Fatalf("ListByMember(bob) len=%d err=%v, want 2", len(bobs), err)
	}
	for _, leg := range bobs {
		if leg.TripGroupID == nil || *leg.TripGroupID != group || leg.TripType != domain.TripTypeRoundTrip {
			t.Fatalf("round trip leg=%+v", leg)
		}
	}

	fresh := mk(bob.ID, "2024-03-11", now, 100)
	dup := mk(bob.ID, "2024-03-11", now, 100)
	dup.ID = e1.ID
	if err := expenses.Create(ctx, fresh, dup); err == nil {
		t.Fatalf("Create with duplicate second leg: err=nil, want error")
	}
	if _, err := expenses.GetByID(ctx, fresh.ID); !errors.Is(err, expenserepoport.ErrNotFound) {
		t.Fatalf("first leg persisted after failed pair: err=%v", err)
	}

	orphan := mk(domain.MemberID(uuid.NewString()), "2024-03-11", now, 100)
	if err := expenses.Create(ctx, orphan); !errors.Is(err, expenserepoport.ErrUnknownMember) {
		t.Fatalf("Create orphan: err=%v, want %v", err, expenserepoport.ErrUnknownMember)
	}

	// Admin listing with attribution.
	all, err := expenses.ListAll(ctx, expenserepoport.AllFilter{Month: &march, MemberID: &bob.ID})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListAll(bob, march) len=%d, want 2", len(all))
	}
	if all[0].Member == nil || all[0].Member.Name != "bob" || all[0].Member.Email != bob.Email {
		t.Fatalf("ListAll attribution=%+v", all[0].Member)
	}

	// Update one leg; the paired leg is untouched.
	upd := bobs[0]
	upd.Amount = 999
	upd.Departure = "Ueno"
	upd.UpdatedAt = now.Add(time.Hour)
	if err := expenses.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	gotUpd, _ := expenses.GetByID(ctx, upd.ID)
	gotPair, _ := expenses.GetByID(ctx, bobs[1].ID)
	if gotUpd.Amount != 999 || gotUpd.Departure != "Ueno" {
		t.Fatalf("updated leg=%+v", gotUpd)
	}
	if gotPair.Amount != 250 {
		t.Fatalf("paired leg amount=%d, want 250", gotPair.Amount)
	}
	if err := expenses.Update(ctx, mk(bob.ID, "2024-03-01", now, 1)); !errors.Is(err, expenserepoport.ErrNotFound) {
		t.Fatalf("Update missing: err=%v, want %v", err, expenserepoport.ErrNotFound)
	}

	// Delete one leg; no cascade.
	if err := expenses.Delete(ctx, upd.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := expenses.GetByID(ctx, bobs[1].ID); err != nil {
		t.Fatalf("paired leg gone after Delete: %v", err)
	}
	if err := expenses.Delete(ctx, upd.ID); !errors.Is(err, expenserepoport.ErrNotFound) {
		t.Fatalf("Delete twice: err=%v, want %v", err, expenserepoport.ErrNotFound)
	}
}

func RunFavoriteRepo(t *testing.T, newRepos FavoriteReposFactory) {
	t.Helper()
	ctx := context.Background()

	members, favorites, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(3000, 0).UTC()
	owner := seedMember(t, ctx, members, "carol", now)

	mk := func(name string, created time.Time) domain.FavoriteRoute {
		return domain.FavoriteRoute{
			ID:        domain.FavoriteRouteID(uuid.NewString()),
			MemberID:  owner.ID,
			Name:      name,
			Departure: "Shibuya",
			Arrival:   "Shinjuku",
			Amount:    170,
			Transport: domain.TransportTrain,
			TripType:  domain.TripTypeOneWay,
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
	older := mk("Commute", now)
	newer := mk("Client visit", now.Add(time.Minute))
	for _, fr := range []domain.FavoriteRoute{older, newer} {
		if err := favorites.Create(ctx, fr); err != nil {
			t.Fatalf("Create %s: %v", fr.Name, err)
		}
	}
	if err := favorites.Create(ctx, older); !errors.Is(err, favoriterepoport.ErrAlreadyExists) {
		t.Fatalf("Create dup: err=%v, want %v", err, favoriterepoport.ErrAlreadyExists)
	}

	list, err := favorites.ListByMember(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("ListByMember order=%#v", list)
	}
	if list, _ := favorites.ListByMember(ctx, domain.MemberID(uuid.NewString())); len(list) != 0 {
		t.Fatalf("ListByMember(stranger) len=%d, want 0", len(list))
	}

	older.Name = "Commute (bus)"
	older.Transport = domain.TransportBus
	older.UpdatedAt = now.Add(time.Hour)
	if err := favorites.Update(ctx, older); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := favorites.GetByID(ctx, older.ID)
	if err != nil || got.Name != "Commute (bus)" || got.Transport != domain.TransportBus {
		t.Fatalf("GetByID after Update=%+v err=%v", got, err)
	}

	if err := favorites.Delete(ctx, older.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := favorites.GetByID(ctx, older.ID); !errors.Is(err, favoriterepoport.ErrNotFound) {
		t.Fatalf("GetByID after Delete: err=%v, want %v", err, favoriterepoport.ErrNotFound)
	}
	if err := favorites.Delete(ctx, older.ID); !errors.Is(err, favoriterepoport.ErrNotFound) {
		t.Fatalf("Delete twice: err=%v, want %v", err, favoriterepoport.ErrNotFound)
	}
}
