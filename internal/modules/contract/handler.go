package contract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the contract mutation surface over HTTP. Every mutation
// response carries the contract (when the mutation succeeded) plus a
// user_errors list mirroring the engine's displayable-error contract.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/subscriptions/contracts", func(r chi.Router) {
		r.Post("/", h.createContract)                                  // POST /api/v1/subscriptions/contracts
		r.Get("/{id}", h.getContract)                                  // GET  /api/v1/subscriptions/contracts/{id}
		r.Get("/customer/{customer_id}", h.listCustomerContracts)      // GET  /api/v1/subscriptions/contracts/customer/{id}
		r.Post("/{id}/activate", h.activate)                           // POST /api/v1/subscriptions/contracts/{id}/activate
		r.Post("/{id}/pause", h.pause)                                 // POST /api/v1/subscriptions/contracts/{id}/pause
		r.Post("/{id}/cancel", h.cancel)                               // POST /api/v1/subscriptions/contracts/{id}/cancel
		r.Post("/{id}/payment-instrument", h.changePaymentInstrument)  // POST /api/v1/subscriptions/contracts/{id}/payment-instrument
	})
}

// contractResponse is the wire shape of every contract mutation result.
type contractResponse struct {
	Contract   *SubscriptionContract `json:"contract"`
	UserErrors []UserError           `json:"user_errors"`
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c, err := h.service.CreateContract(r.Context(), req)
	if err != nil {
		respondContractErr(w, err)
		return
	}
	respond(w, http.StatusCreated, contractResponse{Contract: c, UserErrors: []UserError{}})
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondContractErr(w, err)
		return
	}
	respond(w, http.StatusOK, contractResponse{Contract: c, UserErrors: []UserError{}})
}

func (h *Handler) listCustomerContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.service.ListCustomerContracts(r.Context(), chi.URLParam(r, "customer_id"))
	if err != nil {
		respondContractErr(w, err)
		return
	}
	if contracts == nil {
		contracts = []*SubscriptionContract{}
	}
	respond(w, http.StatusOK, map[string]interface{}{"contracts": contracts})
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Activate)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Pause)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Cancel)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id string) (*SubscriptionContract, error)) {
	c, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondContractErr(w, err)
		return
	}
	respond(w, http.StatusOK, contractResponse{Contract: c, UserErrors: []UserError{}})
}

func (h *Handler) changePaymentInstrument(w http.ResponseWriter, r *http.Request) {
	var req ChangePaymentInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c, err := h.service.ChangePaymentInstrument(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondContractErr(w, err)
		return
	}
	respond(w, http.StatusOK, contractResponse{Contract: c, UserErrors: []UserError{}})
}

// ── Response helpers ──────────────────────────────────────────────────────────

// StatusForCode maps user error codes to HTTP status codes. Shared by the
// cycle and delivery handlers, which surface the same error taxonomy.
func StatusForCode(code ErrorCode) int {
	switch code {
	case CodeContractNotFound, CodePaymentInstrumentNotFound:
		return http.StatusNotFound
	case CodeContractFailed, CodeContractTerminated, CodeHasFutureEdits, CodeConcurrentModification:
		return http.StatusConflict
	case CodeInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondContractErr(w http.ResponseWriter, err error) {
	var uerr *UserError
	if errors.As(err, &uerr) {
		respond(w, StatusForCode(uerr.Code), contractResponse{UserErrors: []UserError{*uerr}})
		return
	}
	respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
