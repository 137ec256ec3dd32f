package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/commute-ledger/transit-expense-api/internal/app/auth"
	"github.com/commute-ledger/transit-expense-api/internal/app/expenses"
	"github.com/commute-ledger/transit-expense-api/internal/app/favorites"
	"github.com/commute-ledger/transit-expense-api/internal/app/members"
)

type errorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Details:   details,
	})
}

// writeAppError maps application errors to their status. Anything else is
// logged and reported as a bare 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ee *expenses.Error
		fe *favorites.Error
		me *members.Error
		ae *auth.Error
	)
	switch {
	case errors.As(err, &ee):
		writeError(w, r, ee.Status, ee.Code, ee.Message, ee.Details)
	case errors.As(err, &fe):
		writeError(w, r, fe.Status, fe.Code, fe.Message, fe.Details)
	case errors.As(err, &me):
		writeError(w, r, me.Status, me.Code, me.Message, me.Details)
	case errors.As(err, &ae):
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"code":"INTERNAL","message":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, "application/json", b)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
