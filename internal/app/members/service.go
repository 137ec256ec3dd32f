package members

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	clockport "github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

type Service struct {
	repo memberrepo.Repository
	clk  clockport.Clock

	newMemberID func() domain.MemberID
}

func NewService(repo memberrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newMemberID: func() domain.MemberID {
			return domain.MemberID(uuid.NewString())
		},
	}
}

// ListMembers returns active members, newest first. Admins may also ask for
// deactivated members; the flag is ignored for everyone else.
func (s *Service) ListMembers(ctx context.Context, caller domain.Member, includeInactive bool) ([]domain.Member, error) {
	ms, err := s.repo.List(ctx, includeInactive && caller.IsAdmin)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, toDomain(m))
	}
	return out, nil
}

// GetActiveMember resolves a session subject. Missing and deactivated members
// are both reported as 401 so a stale session cannot be used.
func (s *Service) GetActiveMember(ctx context.Context, id domain.MemberID) (domain.Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	return activeOrUnauthorized(m, err)
}

// GetActiveMemberByEmail is GetActiveMember keyed by email (dev auth mode).
func (s *Service) GetActiveMemberByEmail(ctx context.Context, email string) (domain.Member, error) {
	m, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	return activeOrUnauthorized(m, err)
}

func activeOrUnauthorized(m memberrepo.Member, err error) (domain.Member, error) {
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, &Error{
				Status:  http.StatusUnauthorized,
				Code:    "UNAUTHORIZED",
				Message: "no member for this session",
			}
		}
		return domain.Member{}, err
	}
	if !m.IsActive {
		return domain.Member{}, &Error{
			Status:  http.StatusUnauthorized,
			Code:    "MEMBER_INACTIVE",
			Message: "member has been deactivated",
		}
	}
	return toDomain(m), nil
}

// UpdateMember lets an admin edit another member's name, email and role.
// Concurrent edits are last-writer-wins.
func (s *Service) UpdateMember(ctx context.Context, caller domain.Member, id domain.MemberID, in UpdateMemberInput) (domain.Member, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Member{}, err
	}
	m, err := s.getMember(ctx, id)
	if err != nil {
		return domain.Member{}, err
	}

	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return domain.Member{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "name is required",
			Details: map[string]any{"name": "must be non-empty"},
		}
	}
	email := strings.TrimSpace(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Member{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "email is invalid",
			Details: map[string]any{"email": err.Error()},
		}
	}
	if in.IsAdmin.IsSpecified() {
		if in.IsAdmin.IsNull() {
			return domain.Member{}, &Error{
				Status:  http.StatusBadRequest,
				Code:    "VALIDATION_ERROR",
				Message: "isAdmin cannot be null",
				Details: map[string]any{"isAdmin": "cannot be null"},
			}
		}
		m.IsAdmin = in.IsAdmin.Value()
	}

	m.Name = name
	m.Email = domain.NormalizeEmail(email)
	m.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, memberrepo.ErrEmailTaken):
			return domain.Member{}, emailInUse()
		case errors.Is(err, memberrepo.ErrNotFound):
			return domain.Member{}, memberNotFound()
		}
		return domain.Member{}, fmt.Errorf("update member: %w", err)
	}
	return toDomain(m), nil
}

// DeactivateMember soft-deletes a member. Their expenses and favorites stay
// in place; they can no longer sign in or use an existing session.
func (s *Service) DeactivateMember(ctx context.Context, caller domain.Member, id domain.MemberID) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	m, err := s.getMember(ctx, id)
	if err != nil {
		return err
	}
	if m.ID == caller.ID {
		return &Error{
			Status:  http.StatusConflict,
			Code:    "CANNOT_DEACTIVATE_SELF",
			Message: "admins cannot deactivate themselves",
		}
	}
	if !m.IsActive {
		return nil
	}
	m.IsActive = false
	m.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, m); err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return memberNotFound()
		}
		return fmt.Errorf("deactivate member: %w", err)
	}
	return nil
}

// SignIn finds or creates the member for a verified identity. New members are
// never admins; an existing row is returned as stored (isAdmin is not
// re-derived on login).
func (s *Service) SignIn(ctx context.Context, in SignInInput) (domain.Member, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Member{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "EMAIL_INVALID",
			Message: "identity has no usable email address",
		}
	}
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		name = localPart(email)
	}

	now := s.clk.Now()
	m, err := s.repo.UpsertByEmail(ctx, memberrepo.Member{
		ID:        s.newMemberID(),
		Email:     email,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Member{}, fmt.Errorf("upsert member: %w", err)
	}
	if !m.IsActive {
		return domain.Member{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "MEMBER_INACTIVE",
			Message: "member has been deactivated",
		}
	}
	return toDomain(m), nil
}

// SeedAdmins provisions initial admins. It is create-only: a missing email
// becomes an active admin, while an existing member is returned as stored.
// Running it again (e.g. on every boot) never re-promotes a demoted member
// or reactivates a deactivated one.
func (s *Service) SeedAdmins(ctx context.Context, emails []string) ([]domain.Member, error) {
	out := make([]domain.Member, 0, len(emails))
	err := s.eachEmail(emails, func(email string) error {
		m, err := s.upsertAdmin(ctx, email)
		if err != nil {
			return err
		}
		out = append(out, toDomain(m))
		return nil
	})
	return out, err
}

// PromoteAdmins grants the admin role to each email, creating missing members.
// It is an explicit operator action and refuses deactivated members rather
// than reactivating them.
func (s *Service) PromoteAdmins(ctx context.Context, emails []string) ([]domain.Member, error) {
	out := make([]domain.Member, 0, len(emails))
	err := s.eachEmail(emails, func(email string) error {
		m, err := s.upsertAdmin(ctx, email)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return fmt.Errorf("promote admin %s: member is deactivated", email)
		}
		if !m.IsAdmin {
			m.IsAdmin = true
			m.UpdatedAt = s.clk.Now()
			if err := s.repo.Update(ctx, m); err != nil {
				return fmt.Errorf("promote admin %s: %w", email, err)
			}
		}
		out = append(out, toDomain(m))
		return nil
	})
	return out, err
}

func (s *Service) eachEmail(emails []string, fn func(email string) error) error {
	for _, raw := range emails {
		email := domain.NormalizeEmail(raw)
		if email == "" {
			continue
		}
		if err := validateEmail(email); err != nil {
			return fmt.Errorf("admin email %q: %w", raw, err)
		}
		if err := fn(email); err != nil {
			return err
		}
	}
	return nil
}

// upsertAdmin inserts email as an active admin or returns the stored row untouched.
func (s *Service) upsertAdmin(ctx context.Context, email string) (memberrepo.Member, error) {
	now := s.clk.Now()
	m, err := s.repo.UpsertByEmail(ctx, memberrepo.Member{
		ID:        s.newMemberID(),
		Email:     email,
		Name:      localPart(email),
		IsAdmin:   true,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return memberrepo.Member{}, fmt.Errorf("seed admin %s: %w", email, err)
	}
	return m, nil
}

func (s *Service) getMember(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return memberrepo.Member{}, memberNotFound()
		}
		return memberrepo.Member{}, err
	}
	return m, nil
}

func requireAdmin(caller domain.Member) error {
	if !caller.IsAdmin {
		return &Error{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "admin role required",
		}
	}
	return nil
}

func memberNotFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "member not found"}
}

func emailInUse() *Error {
	return &Error{
		Status:  http.StatusConflict,
		Code:    "EMAIL_ALREADY_IN_USE",
		Message: "email address is already in use",
	}
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func toDomain(m memberrepo.Member) domain.Member {
	return domain.Member{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		IsAdmin:   m.IsAdmin,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
