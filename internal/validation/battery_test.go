package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validExpense() ExpenseFields {
	return ExpenseFields{
		Date:      strp("2025-01-10"),
		Departure: strp("東京駅"),
		Arrival:   strp("渋谷駅"),
		Amount:    strp("200"),
		Transport: strp("TRAIN"),
		TripType:  strp("ONEWAY"),
	}
}

func TestExpense_Battery(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 20, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(f *ExpenseFields)
		want   string
	}{
		{name: "valid", mutate: func(*ExpenseFields) {}},
		{name: "zero amount is present but not positive", mutate: func(f *ExpenseFields) { f.Amount = strp("0") }, want: MsgAmountPositive},
		{name: "missing amount", mutate: func(f *ExpenseFields) { f.Amount = nil }, want: MsgRequired + ": amount"},
		{name: "bad transport before bad amount", mutate: func(f *ExpenseFields) {
			f.Transport = strp("TAXI")
			f.Amount = strp("-1")
		}, want: MsgTransport},
		{name: "bad trip type", mutate: func(f *ExpenseFields) { f.TripType = strp("BOTH") }, want: MsgTripType},
		{name: "decimal fare", mutate: func(f *ExpenseFields) { f.Amount = strp("199.5") }, want: MsgAmountInteger},
		{name: "invalid date", mutate: func(f *ExpenseFields) { f.Date = strp("2025-02-31") }, want: MsgDateInvalid},
		{name: "future date", mutate: func(f *ExpenseFields) { f.Date = strp("2025-01-21") }, want: MsgDateFuture},
		{name: "offset beyond utc+14", mutate: func(f *ExpenseFields) {
			f.Date = strp("2029-06-01")
			f.TimezoneOffset = intp(-2628000)
		}, want: MsgTimezoneOffset},
		{name: "offset beyond utc-12", mutate: func(f *ExpenseFields) { f.TimezoneOffset = intp(721) }, want: MsgTimezoneOffset},
		{name: "invalid date before offset", mutate: func(f *ExpenseFields) {
			f.Date = strp("nope")
			f.TimezoneOffset = intp(9999)
		}, want: MsgDateInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validExpense()
			tt.mutate(&f)
			r := Expense(f, now)
			if tt.want == "" {
				assert.True(t, r.Valid, "message=%q", r.Message)
				return
			}
			assert.False(t, r.Valid)
			assert.Equal(t, tt.want, r.Message)
		})
	}
}

func TestRoute_Battery(t *testing.T) {
	t.Parallel()

	f := RouteFields{
		Departure: strp("新宿"),
		Arrival:   strp("品川"),
		Amount:    strp("210"),
		Transport: strp("BUS"),
		TripType:  strp("ROUNDTRIP"),
	}
	assert.True(t, Route(f).Valid)

	f.Arrival = nil
	assert.Equal(t, MsgRequired+": arrival", Route(f).Message)
}
