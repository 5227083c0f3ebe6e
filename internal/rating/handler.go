// AngelaMos | 2026
// handler.go

package rating

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes exposes the public summary. Writes need an identity; the
// user id always comes from the token, never the body.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/ratings", func(r chi.Router) {
		r.With(optionalAuth).Get("/", h.Get)
		r.With(authenticator).Post("/", h.Submit)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	programID := strings.TrimSpace(r.URL.Query().Get("programId"))
	if programID == "" {
		core.BadRequest(w, "programId required")
		return
	}

	var (
		sum Summary
		err error
	)
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		sum, err = h.service.Mine(r.Context(), programID, userID)
	} else {
		sum, err = h.service.Summary(r.Context(), programID)
	}
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, sum)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var p Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	p.UserID = middleware.GetUserID(r.Context())

	sum, err := h.service.Submit(r.Context(), p)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, sum)
}
