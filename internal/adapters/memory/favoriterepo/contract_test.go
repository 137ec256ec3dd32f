package favoriterepo

import (
	"testing"

	"github.com/commute-ledger/transit-expense-api/internal/adapters/contracttest"
	"github.com/commute-ledger/transit-expense-api/internal/adapters/memory/memberrepo"
	favoriterepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/favoriterepo"
	memberrepoport "github.com/commute-ledger/transit-expense-api/internal/ports/out/memberrepo"
)

func TestContract_FavoriteRepo(t *testing.T) {
	contracttest.RunFavoriteRepo(t, func(t *testing.T) (memberrepoport.Repository, favoriterepoport.Repository, func()) {
		t.Helper()
		return memberrepo.NewRepo(), NewRepo(), nil
	})
}
