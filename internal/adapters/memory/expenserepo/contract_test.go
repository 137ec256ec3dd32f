package expenserepo

import (
	"testing"

	"github.com/commute-ledger/transit-expense-api/internal/adapters/contracttest"
	"github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	expenserepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/expenserepo"
	memberrepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

func TestContract_ExpenseRepo(t *testing.T) {
	contracttest.RunExpenseRepo(t, func(t *testing.T) (memberrepoport.Repository, expenserepoport.Repository, func()) {
		t.Helper()
		members := memberrepo.NewRepo()
		return members, NewRepo(members), nil
	})
}
