package domain

// MemberID is an internal identifier for a member record.
type MemberID string

// ExpenseID is an internal identifier for a single expense leg.
type ExpenseID string

// FavoriteRouteID is an internal identifier for a saved route.
type FavoriteRouteID string

// TripGroupID correlates the two legs created from one round-trip submission.
// It carries no behavior: each leg is still edited and deleted on its own.
type TripGroupID string
