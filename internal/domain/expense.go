package domain

import "time"

type Transport string

const (
	TransportTrain Transport = "TRAIN"
	TransportBus   Transport = "BUS"
)

func (t Transport) Valid() bool {
	return t == TransportTrain || t == TransportBus
}

type TripType string

const (
	TripTypeOneWay    TripType = "ONEWAY"
	TripTypeRoundTrip TripType = "ROUNDTRIP"
)

func (t TripType) Valid() bool {
	return t == TripTypeOneWay || t == TripTypeRoundTrip
}

// Expense is one trip leg submitted for reimbursement.
//
// A ROUNDTRIP submission is stored as two Expense rows (outbound and inbound)
// sharing TripGroupID; both keep TripType=ROUNDTRIP.
type Expense struct {
	ID          ExpenseID
	MemberID    MemberID
	TripGroupID *TripGroupID

	Date      time.Time // date-only semantics, UTC midnight
	Departure string
	Arrival   string
	Amount    int64
	Transport Transport
	TripType  TripType

	// Member is populated by admin listings only.
	Member *MemberRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FavoriteRoute is a saved template used to prefill the expense form.
// It never becomes an Expense on its own.
type FavoriteRoute struct {
	ID       FavoriteRouteID
	MemberID MemberID
	Name     string

	Departure string
	Arrival   string
	Amount    int64
	Transport Transport
	TripType  TripType

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberTotal aggregates one member's expenses for a period.
type MemberTotal struct {
	Member      MemberRef
	TotalAmount int64
	Count       int
}
