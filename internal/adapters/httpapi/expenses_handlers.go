package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

const routeExpenses = "/api/expenses"

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	yearMonth, err := queryString(r, "yearMonth")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	memberID, err := queryString(r, "memberId")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	list, err := s.expenses.ListExpenses(r.Context(), m, expenses.ListInput{YearMonth: yearMonth, MemberID: memberID})
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expensesFromDomain(list))
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	var body expenseRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	idem, done := s.beginIdempotent(w, r, m, routeExpenses, body)
	if done {
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), m, body.fields())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.metrics.expensesCreated(created)

	b, err := json.Marshal(expensesFromDomain(created))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	idem.remember(r, http.StatusCreated, b)
	writeRaw(w, http.StatusCreated, "application/json", b)
}

func (s *Server) getExpense(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.expenses.GetExpense(r.Context(), m, domain.ExpenseID(id))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseFromDomain(e))
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body expenseRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	e, err := s.expenses.UpdateExpense(r.Context(), m, domain.ExpenseID(id), body.fields())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseFromDomain(e))
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.expenses.DeleteExpense(r.Context(), m, domain.ExpenseID(id)); err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) summarizeExpenses(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	yearMonth, err := queryString(r, "yearMonth")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	sum, err := s.expenses.Summarize(r.Context(), m, yearMonth)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryFromApp(sum))
}

func (s *Server) exportExpenses(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	yearMonth, err := queryString(r, "yearMonth")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	export, err := s.expenses.ExportCSV(r.Context(), m, yearMonth)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+quoteFilename(export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	writeRaw(w, http.StatusOK, "text/csv; charset=utf-8", export.Body)
}
