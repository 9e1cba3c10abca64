package cycle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// Handler exposes billing cycle HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/subscriptions/billing-cycles", func(r chi.Router) {
		r.Post("/skip", h.skip)           // POST /api/v1/subscriptions/billing-cycles/skip
		r.Post("/unskip", h.unskip)       // POST /api/v1/subscriptions/billing-cycles/unskip
		r.Post("/edits", h.scheduleEdit)  // POST /api/v1/subscriptions/billing-cycles/edits
		r.Post("/edits/discard", h.discardEdit)
		r.Post("/attempts", h.recordAttempt) // POST /api/v1/subscriptions/billing-cycles/attempts
	})
	r.Get("/api/v1/subscriptions/contracts/{id}/billing-cycles", h.listCycles)
}

// cycleResponse is the wire shape of every cycle mutation result.
type cycleResponse struct {
	BillingCycle *BillingCycle        `json:"billing_cycle"`
	UserErrors   []contract.UserError `json:"user_errors"`
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	h.skipUnskip(w, r, h.service.Skip)
}

func (h *Handler) unskip(w http.ResponseWriter, r *http.Request) {
	h.skipUnskip(w, r, h.service.Unskip)
}

func (h *Handler) skipUnskip(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, req SkipRequest) (*BillingCycle, error)) {
	var req SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	row, err := op(r.Context(), req)
	if err != nil {
		respondCycleErr(w, err)
		return
	}
	respond(w, http.StatusOK, cycleResponse{BillingCycle: row, UserErrors: []contract.UserError{}})
}

func (h *Handler) scheduleEdit(w http.ResponseWriter, r *http.Request) {
	var req ScheduleEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	row, err := h.service.ScheduleEdit(r.Context(), req)
	if err != nil {
		respondCycleErr(w, err)
		return
	}
	respond(w, http.StatusOK, cycleResponse{BillingCycle: row, UserErrors: []contract.UserError{}})
}

func (h *Handler) discardEdit(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	row, err := h.service.DiscardEdit(r.Context(), req.ContractID, req.Selector)
	if err != nil {
		respondCycleErr(w, err)
		return
	}
	respond(w, http.StatusOK, cycleResponse{BillingCycle: row, UserErrors: []contract.UserError{}})
}

func (h *Handler) recordAttempt(w http.ResponseWriter, r *http.Request) {
	var req BillingAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	row, err := h.service.RecordBillingAttempt(r.Context(), req)
	if err != nil {
		respondCycleErr(w, err)
		return
	}
	respond(w, http.StatusOK, cycleResponse{BillingCycle: row, UserErrors: []contract.UserError{}})
}

func (h *Handler) listCycles(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "id")
	after := -1
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		idx, err := decodeCursor(cursor)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": "malformed cursor"})
			return
		}
		after = idx
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	cycles, err := h.service.ListCycles(r.Context(), contractID, after, limit)
	if err != nil {
		respondCycleErr(w, err)
		return
	}
	body := map[string]interface{}{"billing_cycles": cycles}
	if len(cycles) > 0 {
		body["next_cursor"] = encodeCursor(cycles[len(cycles)-1].CycleIndex)
	}
	respond(w, http.StatusOK, body)
}

// ── Cursors ───────────────────────────────────────────────────────────────────

// Cursors are opaque to clients; internally they carry the last returned index.

func encodeCursor(index int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("v1:%d", index)))
}

func decodeCursor(s string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, err
	}
	rest, ok := strings.CutPrefix(string(raw), "v1:")
	if !ok {
		return 0, fmt.Errorf("unknown cursor version")
	}
	return strconv.Atoi(rest)
}

// ── Response helpers ──────────────────────────────────────────────────────────

func respondCycleErr(w http.ResponseWriter, err error) {
	var uerr *contract.UserError
	if errors.As(err, &uerr) {
		respond(w, contract.StatusForCode(uerr.Code), cycleResponse{UserErrors: []contract.UserError{*uerr}})
		return
	}
	respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
