package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// Handler exposes the delivery option quote/select endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/subscriptions/contracts/{id}", func(r chi.Router) {
		r.Post("/delivery-options", h.fetchOptions) // POST /api/v1/subscriptions/contracts/{id}/delivery-options
		r.Post("/delivery-method", h.selectMethod)  // POST /api/v1/subscriptions/contracts/{id}/delivery-method
	})
}

func (h *Handler) fetchOptions(w http.ResponseWriter, r *http.Request) {
	var req FetchOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	result, err := h.service.FetchDeliveryOptions(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondDeliveryErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"delivery_options_result": result,
		"user_errors":             []contract.UserError{},
	})
}

func (h *Handler) selectMethod(w http.ResponseWriter, r *http.Request) {
	var req SelectMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c, err := h.service.SelectDeliveryMethod(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondDeliveryErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"contract":    c,
		"user_errors": []contract.UserError{},
	})
}

func respondDeliveryErr(w http.ResponseWriter, err error) {
	var uerr *contract.UserError
	if errors.As(err, &uerr) {
		respond(w, contract.StatusForCode(uerr.Code), map[string]interface{}{
			"contract":    nil,
			"user_errors": []contract.UserError{*uerr},
		})
		return
	}
	respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
