// Package validation holds the expense and favorite-route input rules.
//
// The rules are pure and platform-independent so the same package backs the
// HTTP handlers and any client that embeds it. Every check returns a Result
// instead of an error; callers compose them with Run and keep the first failure.
package validation

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// Messages returned by the rules. Handlers send them to the client verbatim.
const (
	MsgRequired       = "required fields are missing"
	MsgTransport      = "transport is invalid"
	MsgTripType       = "tripType is invalid"
	MsgAmountPositive = "amount must be a positive number"
	MsgAmountInteger  = "amount must be a whole number of yen"
	MsgAmountTooLarge = "amount is too large"
	MsgDateInvalid    = "date must be a valid date"
	MsgDateFuture     = "future dates are not allowed"
	MsgTimezoneOffset = "timezoneOffset is invalid"

	// MsgSeparator joins several messages into one response body.
	MsgSeparator = "; "
)

// Real-world UTC offsets in browser minutes: UTC+14 (Kiribati) is -840,
// UTC-12 (Baker Island) is 720.
const (
	MinTimezoneOffset = -840
	MaxTimezoneOffset = 720
)

// Largest integer a JSON client can represent exactly.
const maxSafeAmount = 1<<53 - 1

// Result is the outcome of a single rule.
type Result struct {
	Valid   bool
	Message string
}

// OK is the passing result.
var OK = Result{Valid: true}

func invalid(msg string) Result {
	return Result{Valid: false, Message: msg}
}

// Check defers a rule so Run can stop at the first failure.
type Check func() Result

// Run evaluates checks in order and returns the first failure, or OK.
func Run(checks ...Check) Result {
	for _, c := range checks {
		if r := c(); !r.Valid {
			return r
		}
	}
	return OK
}

// First returns the first failed result, or OK.
func First(results ...Result) Result {
	for _, r := range results {
		if !r.Valid {
			return r
		}
	}
	return OK
}

// Join concatenates the messages of all failed results.
func Join(results ...Result) string {
	msgs := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Valid && r.Message != "" {
			msgs = append(msgs, r.Message)
		}
	}
	return strings.Join(msgs, MsgSeparator)
}

// Field records whether a named input was supplied at all.
type Field struct {
	Name    string
	Present bool
}

// PresentString treats nil and whitespace-only strings as not supplied.
// Range checks (e.g. amount > 0) are separate rules.
func PresentString(name string, v *string) Field {
	return Field{Name: name, Present: v != nil && strings.TrimSpace(*v) != ""}
}

// Required fails when any field was not supplied, naming the missing fields.
func Required(fields ...Field) Result {
	var missing []string
	for _, f := range fields {
		if !f.Present {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return invalid(MsgRequired + ": " + strings.Join(missing, ", "))
	}
	return OK
}

func Transport(s string) Result {
	if !domain.Transport(s).Valid() {
		return invalid(MsgTransport)
	}
	return OK
}

func TripType(s string) Result {
	if !domain.TripType(s).Valid() {
		return invalid(MsgTripType)
	}
	return OK
}

// Amount accepts any numeric text (JSON number or numeric string) that is
// finite, strictly positive and has no fractional part.
func Amount(raw string) Result {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f <= 0 {
		return invalid(MsgAmountPositive)
	}
	if f != math.Trunc(f) {
		return invalid(MsgAmountInteger)
	}
	if f > maxSafeAmount {
		return invalid(MsgAmountTooLarge)
	}
	return OK
}

// ParseAmount coerces text that already passed Amount.
func ParseAmount(raw string) (int64, bool) {
	if r := Amount(raw); !r.Valid {
		return 0, false
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return int64(f), true
}

// Date accepts YYYY-MM-DD or an RFC 3339 timestamp.
func Date(s string) Result {
	if _, ok := ParseDate(s); !ok {
		return invalid(MsgDateInvalid)
	}
	return OK
}

// ParseDate returns the calendar date (UTC midnight) written in s.
// For RFC 3339 input the date is taken as written, ignoring the time of day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(domain.DateLayout, s); err == nil {
		return d, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// NotFutureDate is the client variant: now must already be in the
// submitter's local time zone, and the dates are compared at local midnight.
func NotFutureDate(s string, now time.Time) Result {
	d, ok := ParseDate(s)
	if !ok {
		return invalid(MsgDateInvalid)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return invalid(MsgDateFuture)
	}
	return OK
}

// TimezoneOffset accepts an absent offset or one inside the real UTC range.
func TimezoneOffset(offsetMinutes *int) Result {
	if offsetMinutes == nil {
		return OK
	}
	if *offsetMinutes < MinTimezoneOffset || *offsetMinutes > MaxTimezoneOffset {
		return invalid(MsgTimezoneOffset)
	}
	return OK
}

// NotFutureDateWithOffset is the server variant. offsetMinutes follows the
// browser convention (UTC minus local time, so JST is -540); "today" is
// computed as now minus the offset. A nil offset means UTC.
func NotFutureDateWithOffset(s string, now time.Time, offsetMinutes *int) Result {
	if r := TimezoneOffset(offsetMinutes); !r.Valid {
		return r
	}
	d, ok := ParseDate(s)
	if !ok {
		return invalid(MsgDateInvalid)
	}
	local := now.UTC()
	if offsetMinutes != nil {
		local = local.Add(-time.Duration(*offsetMinutes) * time.Minute)
	}
	if d.Format(domain.DateLayout) > local.Format(domain.DateLayout) {
		return invalid(MsgDateFuture)
	}
	return OK
}
