package expenses

import "github.com/commute-ledger/transit-expense-api/internal/domain"

// ListInput carries the raw listing query. Empty strings mean "not supplied".
type ListInput struct {
	YearMonth string
	MemberID  string
}

// Summary is the per-member aggregate for one listing scope.
type Summary struct {
	YearMonth *domain.YearMonth
	Totals    []domain.MemberTotal
}

// Export is a rendered CSV report.
type Export struct {
	Filename string
	Body     []byte
}
