package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

const routeFavorites = "/api/favorite-routes"

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := s.favorites.ListFavorites(r.Context(), m)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	out := make([]favoriteResponse, 0, len(list))
	for _, f := range list {
		out = append(out, favoriteFromDomain(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createFavorite(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	var body favoriteRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	idem, done := s.beginIdempotent(w, r, m, routeFavorites, body)
	if done {
		return
	}

	f, err := s.favorites.CreateFavorite(r.Context(), m, body.input())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	b, err := json.Marshal(favoriteFromDomain(f))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	idem.remember(r, http.StatusCreated, b)
	writeRaw(w, http.StatusCreated, "application/json", b)
}

func (s *Server) updateFavorite(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body favoriteRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	f, err := s.favorites.UpdateFavorite(r.Context(), m, domain.FavoriteRouteID(id), body.input())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteFromDomain(f))
}

func (s *Server) deleteFavorite(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.favorites.DeleteFavorite(r.Context(), m, domain.FavoriteRouteID(id)); err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
