package favorites

import "github.com/commute-ledger/transit-expense-api/internal/validation"

// Input is a raw favorite route submission. Name is optional.
type Input struct {
	Name *string
	validation.RouteFields
}
