// AngelaMos | 2026
// handler.go

package enquiry

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nfphealth/nfp-backend/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type SubmitResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type ListResponse struct {
	Items []Enquiry `json:"items"`
}

// RegisterRoutes mounts the public submission endpoint and the admin-only
// listing.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Post("/submitEnquiry", h.Submit)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/submissions", h.List)
	})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var p Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	record, err := h.service.Submit(r.Context(), p)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, SubmitResponse{OK: true, ID: record.ID})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	items, err := h.service.List(r.Context(), limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if items == nil {
		items = []Enquiry{}
	}

	core.OK(w, ListResponse{Items: items})
}
