package members

import (
	"context"
	"errors"
	"testing"
	"time"

	memclock "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/clock"
	memmemberrepo "github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
)

func newTestService() (*Service, *memclock.ManualClock) {
	repo := memmemberrepo.NewRepo()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	return NewService(repo, clk), clk
}

func wantAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || (code != "" && ae.Code != code) {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_SignIn_CreatesThenReuses(t *testing.T) {
	t.Parallel()

	svc, clk := newTestService()
	ctx := context.Background()

	created, err := svc.SignIn(ctx, SignInInput{Email: " Alice@Example.com ", Name: "  Alice   Smith "})
	if err != nil {
		t.Fatalf("SignIn err=%v", err)
	}
	if created.Name != "Alice Smith" || created.Email != "alice@example.com" || created.IsAdmin || !created.IsActive {
		t.Fatalf("created=%+v", created)
	}

	clk.Advance(time.Hour)
	again, err := svc.SignIn(ctx, SignInInput{Email: "alice@example.com", Name: "Someone Else"})
	if err != nil {
		t.Fatalf("SignIn again err=%v", err)
	}
	if again.ID != created.ID || again.Name != "Alice Smith" {
		t.Fatalf("again=%+v, want existing row %+v", again, created)
	}
}

func TestService_SignIn_FallsBackToLocalPart(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	m, err := svc.SignIn(context.Background(), SignInInput{Email: "taro@example.com"})
	if err != nil {
		t.Fatalf("SignIn err=%v", err)
	}
	if m.Name != "taro" {
		t.Fatalf("name=%q, want taro", m.Name)
	}
}

func TestService_SignIn_RejectsDeactivated(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	admins, err := svc.SeedAdmins(ctx, []string{"root@example.com"})
	if err != nil {
		t.Fatalf("SeedAdmins err=%v", err)
	}
	bob, err := svc.SignIn(ctx, SignInInput{Email: "bob@example.com", Name: "Bob"})
	if err != nil {
		t.Fatalf("SignIn err=%v", err)
	}
	if err := svc.DeactivateMember(ctx, admins[0], bob.ID); err != nil {
		t.Fatalf("DeactivateMember err=%v", err)
	}

	_, err = svc.SignIn(ctx, SignInInput{Email: "bob@example.com", Name: "Bob"})
	wantAppError(t, err, 403, "MEMBER_INACTIVE")

	_, err = svc.GetActiveMember(ctx, bob.ID)
	wantAppError(t, err, 401, "MEMBER_INACTIVE")
}

func TestService_SeedAdmins_CreateOnly(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	carol, err := svc.SignIn(ctx, SignInInput{Email: "carol@example.com", Name: "Carol"})
	if err != nil {
		t.Fatalf("SignIn err=%v", err)
	}
	seeded, err := svc.SeedAdmins(ctx, []string{"CAROL@example.com", "", "dave@example.com"})
	if err != nil {
		t.Fatalf("SeedAdmins err=%v", err)
	}
	if len(seeded) != 2 || seeded[0].ID != carol.ID || seeded[0].IsAdmin || !seeded[1].IsAdmin {
		t.Fatalf("seeded=%+v, want carol untouched and dave created as admin", seeded)
	}

	if _, err := svc.SeedAdmins(ctx, []string{"not-an-email"}); err == nil {
		t.Fatalf("SeedAdmins(invalid) err=nil, want error")
	}
}

func TestService_SeedAdmins_DoesNotUndoAdminChanges(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	emails := []string{"root@example.com", "ops@example.com", "lead@example.com"}

	admins, err := svc.SeedAdmins(ctx, emails)
	if err != nil {
		t.Fatalf("SeedAdmins err=%v", err)
	}
	root, ops, lead := admins[0], admins[1], admins[2]

	if err := svc.DeactivateMember(ctx, root, ops.ID); err != nil {
		t.Fatalf("DeactivateMember err=%v", err)
	}
	if _, err := svc.UpdateMember(ctx, root, lead.ID, UpdateMemberInput{Name: lead.Name, Email: lead.Email, IsAdmin: Some(false)}); err != nil {
		t.Fatalf("UpdateMember err=%v", err)
	}

	// A second run, as on the next boot with ADMIN_EMAILS still set.
	if _, err := svc.SeedAdmins(ctx, emails); err != nil {
		t.Fatalf("SeedAdmins (again) err=%v", err)
	}

	_, err = svc.GetActiveMember(ctx, ops.ID)
	wantAppError(t, err, 401, "MEMBER_INACTIVE")

	got, err := svc.GetActiveMember(ctx, lead.ID)
	if err != nil || got.IsAdmin {
		t.Fatalf("lead=%+v err=%v, want active non-admin", got, err)
	}
}

func TestService_PromoteAdmins(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	carol, _ := svc.SignIn(ctx, SignInInput{Email: "carol@example.com", Name: "Carol"})
	promoted, err := svc.PromoteAdmins(ctx, []string{"carol@example.com", "erin@example.com"})
	if err != nil {
		t.Fatalf("PromoteAdmins err=%v", err)
	}
	if len(promoted) != 2 || promoted[0].ID != carol.ID || !promoted[0].IsAdmin || !promoted[1].IsAdmin {
		t.Fatalf("promoted=%+v", promoted)
	}
	got, err := svc.GetActiveMember(ctx, carol.ID)
	if err != nil || !got.IsAdmin {
		t.Fatalf("GetActiveMember=%+v err=%v, want admin", got, err)
	}

	frank, _ := svc.SignIn(ctx, SignInInput{Email: "frank@example.com", Name: "Frank"})
	if err := svc.DeactivateMember(ctx, got, frank.ID); err != nil {
		t.Fatalf("DeactivateMember err=%v", err)
	}
	if _, err := svc.PromoteAdmins(ctx, []string{"frank@example.com"}); err == nil {
		t.Fatalf("PromoteAdmins(deactivated) err=nil, want error")
	}
	_, err = svc.GetActiveMember(ctx, frank.ID)
	wantAppError(t, err, 401, "MEMBER_INACTIVE")
}

func TestService_UpdateMember(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	admins, _ := svc.SeedAdmins(ctx, []string{"root@example.com"})
	admin := admins[0]
	alice, _ := svc.SignIn(ctx, SignInInput{Email: "alice@example.com", Name: "Alice"})
	_, _ = svc.SignIn(ctx, SignInInput{Email: "bob@example.com", Name: "Bob"})

	// Non-admins are rejected before the target is looked up.
	_, err := svc.UpdateMember(ctx, alice, "missing", UpdateMemberInput{Name: "X", Email: "x@example.com"})
	wantAppError(t, err, 403, "FORBIDDEN")

	_, err = svc.UpdateMember(ctx, admin, "missing", UpdateMemberInput{Name: "X", Email: "x@example.com"})
	wantAppError(t, err, 404, "NOT_FOUND")

	_, err = svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: " ", Email: "alice@example.com"})
	wantAppError(t, err, 400, "VALIDATION_ERROR")

	_, err = svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: "Alice", Email: "Alice <alice@example.com>"})
	wantAppError(t, err, 400, "VALIDATION_ERROR")

	_, err = svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: "Alice", Email: "bob@example.com"})
	wantAppError(t, err, 409, "EMAIL_ALREADY_IN_USE")

	_, err = svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: "Alice", Email: "alice@example.com", IsAdmin: Null[bool]()})
	wantAppError(t, err, 400, "VALIDATION_ERROR")

	got, err := svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: "Alice  Cooper", Email: "ALICE.C@example.com", IsAdmin: Some(true)})
	if err != nil {
		t.Fatalf("UpdateMember err=%v", err)
	}
	if got.Name != "Alice Cooper" || got.Email != "alice.c@example.com" || !got.IsAdmin {
		t.Fatalf("UpdateMember=%+v", got)
	}

	// Unspecified isAdmin keeps the stored role.
	got, err = svc.UpdateMember(ctx, admin, alice.ID, UpdateMemberInput{Name: "Alice", Email: "alice.c@example.com"})
	if err != nil || !got.IsAdmin {
		t.Fatalf("UpdateMember keep role=%+v err=%v", got, err)
	}
}

func TestService_DeactivateMember(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	admins, _ := svc.SeedAdmins(ctx, []string{"root@example.com"})
	admin := admins[0]
	alice, _ := svc.SignIn(ctx, SignInInput{Email: "alice@example.com", Name: "Alice"})

	wantAppError(t, svc.DeactivateMember(ctx, alice, admin.ID), 403, "FORBIDDEN")
	wantAppError(t, svc.DeactivateMember(ctx, admin, admin.ID), 409, "CANNOT_DEACTIVATE_SELF")
	wantAppError(t, svc.DeactivateMember(ctx, admin, "missing"), 404, "NOT_FOUND")

	if err := svc.DeactivateMember(ctx, admin, alice.ID); err != nil {
		t.Fatalf("DeactivateMember err=%v", err)
	}
	if err := svc.DeactivateMember(ctx, admin, alice.ID); err != nil {
		t.Fatalf("DeactivateMember twice err=%v, want nil", err)
	}

	active, err := svc.ListMembers(ctx, alice, true)
	if err != nil {
		t.Fatalf("ListMembers err=%v", err)
	}
	for _, m := range active {
		if m.ID == alice.ID {
			t.Fatalf("non-admin saw inactive member")
		}
	}
	all, err := svc.ListMembers(ctx, admin, true)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListMembers(admin, inactive) len=%d err=%v, want 2", len(all), err)
	}
}

func TestService_GetActiveMemberByEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	m, _ := svc.SignIn(ctx, SignInInput{Email: "dev@example.com", Name: "Dev"})
	got, err := svc.GetActiveMemberByEmail(ctx, "  DEV@example.com")
	if err != nil || got.ID != m.ID {
		t.Fatalf("GetActiveMemberByEmail=%+v err=%v", got, err)
	}
	_, err = svc.GetActiveMemberByEmail(ctx, "nobody@example.com")
	wantAppError(t, err, 401, "UNAUTHORIZED")
}
