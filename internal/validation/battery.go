package validation

import "time"

// ExpenseFields is the raw expense submission. Nil means "not supplied".
type ExpenseFields struct {
	Date      *string
	Departure *string
	Arrival   *string
	Amount    *string
	Transport *string
	TripType  *string

	// TimezoneOffset is the submitter's UTC offset in minutes (browser convention).
	TimezoneOffset *int
}

// Expense runs the full battery for expense create and update, in order:
// required fields, transport, trip type, amount, date, timezone offset,
// not-future date.
func Expense(f ExpenseFields, now time.Time) Result {
	return Run(
		func() Result {
			return Required(
				PresentString("date", f.Date),
				PresentString("departure", f.Departure),
				PresentString("arrival", f.Arrival),
				PresentString("amount", f.Amount),
				PresentString("transport", f.Transport),
				PresentString("tripType", f.TripType),
			)
		},
		func() Result { return Transport(*f.Transport) },
		func() Result { return TripType(*f.TripType) },
		func() Result { return Amount(*f.Amount) },
		func() Result { return Date(*f.Date) },
		func() Result { return TimezoneOffset(f.TimezoneOffset) },
		func() Result { return NotFutureDateWithOffset(*f.Date, now, f.TimezoneOffset) },
	)
}

// RouteFields is the raw favorite route submission.
type RouteFields struct {
	Departure *string
	Arrival   *string
	Amount    *string
	Transport *string
	TripType  *string
}

// Route runs the favorite route battery: required fields, transport, trip type, amount.
func Route(f RouteFields) Result {
	return Run(
		func() Result {
			return Required(
				PresentString("departure", f.Departure),
				PresentString("arrival", f.Arrival),
				PresentString("amount", f.Amount),
				PresentString("transport", f.Transport),
				PresentString("tripType", f.TripType),
			)
		},
		func() Result { return Transport(*f.Transport) },
		func() Result { return TripType(*f.TripType) },
		func() Result { return Amount(*f.Amount) },
	)
}
