package httpapi

import (
	"net/http"
	"strings"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
	"github.com/commute-ledger/transit-expense-api/internal/ports/out/idempotency"
)

const (
	headerIdempotencyKey      = "Idempotency-Key"
	headerIdempotencyReplayed = "Idempotent-Replayed"
)

// idempotentRequest tracks one create call carrying an Idempotency-Key.
//
// Two records are kept per key: a meta record (BodyHash "") holding the hash
// of the first body seen, and a response record keyed by that hash holding
// the replayable 201.
type idempotentRequest struct {
	s  *Server
	fp idempotency.Fingerprint
}

// beginIdempotent returns nil when the request has no key or no store is
// configured. done reports that a response (replay or conflict) was written.
func (s *Server) beginIdempotent(w http.ResponseWriter, r *http.Request, caller domain.Member, route string, body any) (req *idempotentRequest, done bool) {
	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key == "" || s.idem == nil {
		return nil, false
	}
	bodyHash, err := hashBody(body)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, true
	}

	ctx := r.Context()
	metaFP := idempotency.Fingerprint{
		Key:      idempotency.Key(key),
		MemberID: caller.ID,
		Method:   r.Method,
		Route:    route,
		BodyHash: "",
	}
	if meta, ok, err := s.idem.Get(ctx, metaFP); err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, true
	} else if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return nil, true
		}
	} else if err := s.idem.Put(ctx, metaFP, idempotency.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte(bodyHash),
		CreatedAt:   s.clk.Now().UTC(),
	}); err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, true
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	if rec, ok, err := s.idem.Get(ctx, respFP); err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, true
	} else if ok && rec.StatusCode == http.StatusCreated && strings.HasPrefix(rec.ContentType, "application/json") {
		w.Header().Set(headerIdempotencyReplayed, "true")
		s.metrics.idempotentReplay(route)
		writeRaw(w, rec.StatusCode, rec.ContentType, rec.Body)
		return nil, true
	}
	return &idempotentRequest{s: s, fp: respFP}, false
}

// remember stores a successful response for replay. Failures are logged only:
// the create already happened.
func (ir *idempotentRequest) remember(r *http.Request, status int, body []byte) {
	if ir == nil {
		return
	}
	err := ir.s.idem.Put(r.Context(), ir.fp, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        body,
		CreatedAt:   ir.s.clk.Now().UTC(),
	})
	if err != nil {
		ir.s.logger.WarnContext(r.Context(), "store idempotent response", "error", err, "route", ir.fp.Route)
	}
}
