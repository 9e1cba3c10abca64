package payment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler exposes payment instrument HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/payments/instruments", func(r chi.Router) {
		r.Post("/", h.createInstrument)                          // POST /api/v1/payments/instruments
		r.Get("/{id}", h.getInstrument)                          // GET  /api/v1/payments/instruments/{id}
		r.Get("/customer/{customer_id}", h.listInstruments)      // GET  /api/v1/payments/instruments/customer/{id}
		r.Post("/{id}/revoke", h.revokeInstrument)               // POST /api/v1/payments/instruments/{id}/revoke
	})
}

func (h *Handler) createInstrument(w http.ResponseWriter, r *http.Request) {
	var req CreateInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	in, err := h.service.CreateInstrument(r.Context(), req)
	if err != nil {
		code := http.StatusInternalServerError
		msg := err.Error()
		if strings.Contains(msg, "required") || strings.Contains(msg, "not a valid") || strings.Contains(msg, "unsupported") {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": msg})
		return
	}
	respond(w, http.StatusCreated, in)
}

func (h *Handler) getInstrument(w http.ResponseWriter, r *http.Request) {
	in, err := h.service.GetInstrument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, in)
}

func (h *Handler) listInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.service.ListCustomerInstruments(r.Context(), chi.URLParam(r, "customer_id"))
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if instruments == nil {
		instruments = []*PaymentInstrument{}
	}
	respond(w, http.StatusOK, instruments)
}

func (h *Handler) revokeInstrument(w http.ResponseWriter, r *http.Request) {
	in, err := h.service.RevokeInstrument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		code := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			code = http.StatusNotFound
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, in)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
