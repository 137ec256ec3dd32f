package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/validation"
)

// amountField keeps the submitted amount as text so the validation rules see
// exactly what the client sent. Both 200 and "200" are accepted.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	// Numbers, booleans and other literals are kept verbatim and rejected by
	// the amount rule.
	*a = amountField(data)
	return nil
}

func (a amountField) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

func (a *amountField) ptr() *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

type expenseRequest struct {
	Date      *string      `json:"date"`
	Departure *string      `json:"departure"`
	Arrival   *string      `json:"arrival"`
	Amount    *amountField `json:"amount"`
	Transport *string      `json:"transport"`
	TripType  *string      `json:"tripType"`

	TimezoneOffset nullable.Nullable[int] `json:"timezoneOffset,omitempty"`
}

func (b expenseRequest) fields() validation.ExpenseFields {
	f := validation.ExpenseFields{
		Date:      b.Date,
		Departure: b.Departure,
		Arrival:   b.Arrival,
		Amount:    b.Amount.ptr(),
		Transport: b.Transport,
		TripType:  b.TripType,
	}
	if b.TimezoneOffset.IsSpecified() && !b.TimezoneOffset.IsNull() {
		if v, err := b.TimezoneOffset.Get(); err == nil {
			f.TimezoneOffset = &v
		}
	}
	return f
}

type favoriteRequest struct {
	Name      nullable.Nullable[string] `json:"name,omitempty"`
	Departure *string                   `json:"departure"`
	Arrival   *string                   `json:"arrival"`
	Amount    *amountField              `json:"amount"`
	Transport *string                   `json:"transport"`
	TripType  *string                   `json:"tripType"`
}

func (b favoriteRequest) input() favorites.Input {
	in := favorites.Input{
		RouteFields: validation.RouteFields{
			Departure: b.Departure,
			Arrival:   b.Arrival,
			Amount:    b.Amount.ptr(),
			Transport: b.Transport,
			TripType:  b.TripType,
		},
	}
	if b.Name.IsSpecified() && !b.Name.IsNull() {
		if v, err := b.Name.Get(); err == nil {
			in.Name = &v
		}
	}
	return in
}

type updateMemberRequest struct {
	Name    string                  `json:"name"`
	Email   string                  `json:"email"`
	IsAdmin nullable.Nullable[bool] `json:"isAdmin,omitempty"`
}

func (b updateMemberRequest) input() members.UpdateMemberInput {
	in := members.UpdateMemberInput{Name: b.Name, Email: b.Email}
	switch {
	case !b.IsAdmin.IsSpecified():
		in.IsAdmin = members.Unspecified[bool]()
	case b.IsAdmin.IsNull():
		in.IsAdmin = members.Null[bool]()
	default:
		v, _ := b.IsAdmin.Get()
		in.IsAdmin = members.Some(v)
	}
	return in
}

type signInRequest struct {
	IDToken string `json:"idToken"`
}

type memberRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type expenseResponse struct {
	ID          string             `json:"id"`
	MemberID    string             `json:"memberId"`
	TripGroupID *string            `json:"tripGroupId"`
	Date        openapi_types.Date `json:"date"`
	Departure   string             `json:"departure"`
	Arrival     string             `json:"arrival"`
	Amount      int64              `json:"amount"`
	Transport   string             `json:"transport"`
	TripType    string             `json:"tripType"`
	Member      *memberRefResponse `json:"member,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func expenseFromDomain(e domain.Expense) expenseResponse {
	out := expenseResponse{
		ID:        string(e.ID),
		MemberID:  string(e.MemberID),
		Date:      openapi_types.Date{Time: e.Date},
		Departure: e.Departure,
		Arrival:   e.Arrival,
		Amount:    e.Amount,
		Transport: string(e.Transport),
		TripType:  string(e.TripType),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.TripGroupID != nil {
		g := string(*e.TripGroupID)
		out.TripGroupID = &g
	}
	if e.Member != nil {
		out.Member = &memberRefResponse{ID: string(e.Member.ID), Name: e.Member.Name, Email: e.Member.Email}
	}
	return out
}

func expensesFromDomain(list []domain.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, expenseFromDomain(e))
	}
	return out
}

type favoriteResponse struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	Name      string    `json:"name"`
	Departure string    `json:"departure"`
	Arrival   string    `json:"arrival"`
	Amount    int64     `json:"amount"`
	Transport string    `json:"transport"`
	TripType  string    `json:"tripType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func favoriteFromDomain(f domain.FavoriteRoute) favoriteResponse {
	return favoriteResponse{
		ID:        string(f.ID),
		MemberID:  string(f.MemberID),
		Name:      f.Name,
		Departure: f.Departure,
		Arrival:   f.Arrival,
		Amount:    f.Amount,
		Transport: string(f.Transport),
		TripType:  string(f.TripType),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

type memberResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func memberFromDomain(m domain.Member) memberResponse {
	return memberResponse{
		ID:        string(m.ID),
		Email:     m.Email,
		Name:      m.Name,
		IsAdmin:   m.IsAdmin,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type sessionResponse struct {
	Member    memberResponse `json:"member"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

type memberTotalResponse struct {
	MemberID    string `json:"memberId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	TotalAmount int64  `json:"totalAmount"`
	Count       int    `json:"count"`
}

type summaryResponse struct {
	YearMonth   *string               `json:"yearMonth"`
	TotalAmount int64                 `json:"totalAmount"`
	Totals      []memberTotalResponse `json:"totals"`
}

func summaryFromApp(s expenses.Summary) summaryResponse {
	out := summaryResponse{Totals: make([]memberTotalResponse, 0, len(s.Totals))}
	if s.YearMonth != nil {
		ym := s.YearMonth.String()
		out.YearMonth = &ym
	}
	for _, t := range s.Totals {
		out.TotalAmount += t.TotalAmount
		out.Totals = append(out.Totals, memberTotalResponse{
			MemberID:    string(t.Member.ID),
			Name:        t.Member.Name,
			Email:       t.Member.Email,
			TotalAmount: t.TotalAmount,
			Count:       t.Count,
		})
	}
	return out
}

// hashBody fingerprints a decoded request for idempotency. Hashing the
// re-encoded struct ignores key order and whitespace differences.
func hashBody(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func quoteFilename(name string) string {
	return strconv.Quote(name)
}
