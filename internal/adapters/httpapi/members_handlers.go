package httpapi

import (
	"net/http"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	includeInactive, err := queryBool(r, "includeInactive")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "includeInactive must be a boolean", nil)
		return
	}
	list, err := s.members.ListMembers(r.Context(), m, includeInactive)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	out := make([]memberResponse, 0, len(list))
	for _, mm := range list {
		out = append(out, memberFromDomain(mm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body updateMemberRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	updated, err := s.members.UpdateMember(r.Context(), m, domain.MemberID(id), body.input())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, memberFromDomain(updated))
}

func (s *Server) deactivateMember(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.members.DeactivateMember(r.Context(), m, domain.MemberID(id)); err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
