package httpapi

import (
	"net/http"
	"time"
)

// DefaultSessionCookie names the session cookie when none is configured.
const DefaultSessionCookie = "transit_session"

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var body signInRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := s.auth.SignIn(r.Context(), body.IDToken)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	exp := res.ExpiresAt
	writeJSON(w, http.StatusOK, sessionResponse{Member: memberFromDomain(res.Member), ExpiresAt: &exp})
}

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	m, ok := caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Member: memberFromDomain(m)})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
