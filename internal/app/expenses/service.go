package expenses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/clock"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	"github.com/commute-ledger/transit-expense-api/internal/validation"
)

// UnknownMemberName labels totals whose owner row could not be joined.
const UnknownMemberName = "unknown"

type Service struct {
	repo expenserepo.Repository
	clk  clock.Clock

	newExpenseID   func() domain.ExpenseID
	newTripGroupID func() domain.TripGroupID
}

func NewService(repo expenserepo.Repository, clk clock.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newExpenseID: func() domain.ExpenseID {
			return domain.ExpenseID(uuid.NewString())
		},
		newTripGroupID: func() domain.TripGroupID {
			return domain.TripGroupID(uuid.NewString())
		},
	}
}

// CreateExpense validates in and stores one leg for ONEWAY or two legs
// (outbound, then inbound with swapped stations) for ROUNDTRIP.
func (s *Service) CreateExpense(ctx context.Context, caller domain.Member, in validation.ExpenseFields) ([]domain.Expense, error) {
	now := s.clk.Now()
	v, err := coerce(in, now)
	if err != nil {
		return nil, err
	}

	outbound := domain.Expense{
		ID:        s.newExpenseID(),
		MemberID:  caller.ID,
		Date:      v.date,
		Departure: v.departure,
		Arrival:   v.arrival,
		Amount:    v.amount,
		Transport: v.transport,
		TripType:  v.tripType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	legs := []domain.Expense{outbound}
	if v.tripType == domain.TripTypeRoundTrip {
		group := s.newTripGroupID()
		legs[0].TripGroupID = &group

		inbound := outbound
		inbound.ID = s.newExpenseID()
		inbound.Departure, inbound.Arrival = outbound.Arrival, outbound.Departure
		g := group
		inbound.TripGroupID = &g
		legs = append(legs, inbound)
	}

	if err := s.repo.Create(ctx, legs...); err != nil {
		if errors.Is(err, expenserepo.ErrUnknownMember) {
			return nil, &Error{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "member does not exist"}
		}
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return legs, nil
}

// ListExpenses scopes non-admin callers to their own rows regardless of
// in.MemberID. Admins see every member unless in.MemberID narrows it.
func (s *Service) ListExpenses(ctx context.Context, caller domain.Member, in ListInput) ([]domain.Expense, error) {
	month, err := parseMonth(in.YearMonth)
	if err != nil {
		return nil, err
	}

	if !caller.IsAdmin {
		return s.repo.ListByMember(ctx, caller.ID, month)
	}

	f := expenserepo.AllFilter{Month: month}
	if id := strings.TrimSpace(in.MemberID); id != "" {
		mid := domain.MemberID(id)
		f.MemberID = &mid
	}
	return s.repo.ListAll(ctx, f)
}

// GetExpense is owner-only; admins have no read override for a single row.
func (s *Service) GetExpense(ctx context.Context, caller domain.Member, id domain.ExpenseID) (domain.Expense, error) {
	return s.owned(ctx, caller, id)
}

// UpdateExpense replaces the editable fields of one leg. It never re-splits a
// round trip and never touches the paired leg.
func (s *Service) UpdateExpense(ctx context.Context, caller domain.Member, id domain.ExpenseID, in validation.ExpenseFields) (domain.Expense, error) {
	e, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Expense{}, err
	}

	now := s.clk.Now()
	v, err := coerce(in, now)
	if err != nil {
		return domain.Expense{}, err
	}

	e.Date = v.date
	e.Departure = v.departure
	e.Arrival = v.arrival
	e.Amount = v.amount
	e.Transport = v.transport
	e.TripType = v.tripType
	e.UpdatedAt = now

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, expenserepo.ErrNotFound) {
			return domain.Expense{}, notFound()
		}
		return domain.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (s *Service) DeleteExpense(ctx context.Context, caller domain.Member, id domain.ExpenseID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, expenserepo.ErrNotFound) {
			return notFound()
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// Summarize aggregates totals per member for the caller's listing scope.
// Admins get one total per member with expenses, ordered by name then email;
// other callers always get exactly one total for themselves.
func (s *Service) Summarize(ctx context.Context, caller domain.Member, yearMonth string) (Summary, error) {
	month, err := parseMonth(yearMonth)
	if err != nil {
		return Summary{}, err
	}

	if !caller.IsAdmin {
		list, err := s.repo.ListByMember(ctx, caller.ID, month)
		if err != nil {
			return Summary{}, err
		}
		t := domain.MemberTotal{Member: domain.MemberRef{ID: caller.ID, Name: caller.Name, Email: caller.Email}}
		for _, e := range list {
			t.TotalAmount += e.Amount
			t.Count++
		}
		return Summary{YearMonth: month, Totals: []domain.MemberTotal{t}}, nil
	}

	list, err := s.repo.ListAll(ctx, expenserepo.AllFilter{Month: month})
	if err != nil {
		return Summary{}, err
	}
	return Summary{YearMonth: month, Totals: totalsByMember(list)}, nil
}

func totalsByMember(list []domain.Expense) []domain.MemberTotal {
	byID := make(map[domain.MemberID]*domain.MemberTotal)
	for _, e := range list {
		t, ok := byID[e.MemberID]
		if !ok {
			ref := domain.MemberRef{ID: e.MemberID, Name: UnknownMemberName}
			if e.Member != nil {
				ref = *e.Member
			}
			t = &domain.MemberTotal{Member: ref}
			byID[e.MemberID] = t
		}
		t.TotalAmount += e.Amount
		t.Count++
	}

	out := make([]domain.MemberTotal, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Member, out[j].Member
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Email != b.Email {
			return a.Email < b.Email
		}
		return a.ID < b.ID
	})
	return out
}

// ExportCSV renders the caller's summary for one month as a CSV report.
func (s *Service) ExportCSV(ctx context.Context, caller domain.Member, yearMonth string) (Export, error) {
	if strings.TrimSpace(yearMonth) == "" {
		return Export{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "yearMonth is required",
		}
	}
	sum, err := s.Summarize(ctx, caller, yearMonth)
	if err != nil {
		return Export{}, err
	}
	return Export{
		Filename: "transit-expenses_" + sum.YearMonth.String() + ".csv",
		Body:     RenderCSV(sum.Totals),
	}, nil
}

func (s *Service) owned(ctx context.Context, caller domain.Member, id domain.ExpenseID) (domain.Expense, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, expenserepo.ErrNotFound) {
			return domain.Expense{}, notFound()
		}
		return domain.Expense{}, err
	}
	if e.MemberID != caller.ID {
		return domain.Expense{}, &Error{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "expense belongs to another member",
		}
	}
	return e, nil
}

func notFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "expense not found"}
}

func parseMonth(raw string) (*domain.YearMonth, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ym, err := domain.ParseYearMonth(raw)
	if err != nil {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
			Details: map[string]any{"yearMonth": raw},
		}
	}
	return &ym, nil
}

type coerced struct {
	date      time.Time
	departure string
	arrival   string
	amount    int64
	transport domain.Transport
	tripType  domain.TripType
}

// coerce runs the validation battery and converts the raw fields.
func coerce(in validation.ExpenseFields, now time.Time) (coerced, error) {
	if r := validation.Expense(in, now); !r.Valid {
		return coerced{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: r.Message,
		}
	}
	amount, _ := validation.ParseAmount(*in.Amount)
	date, _ := validation.ParseDate(*in.Date)
	return coerced{
		date:      date,
		departure: domain.NormalizeStation(*in.Departure),
		arrival:   domain.NormalizeStation(*in.Arrival),
		amount:    amount,
		transport: domain.Transport(*in.Transport),
		tripType:  domain.TripType(*in.TripType),
	}, nil
}
