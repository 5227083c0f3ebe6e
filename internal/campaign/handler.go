// AngelaMos | 2026
// handler.go

package campaign

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nfphealth/nfp-backend/internal/core"
)

// wireErrors are the messages clients match on.
var wireErrors = map[error]string{
	ErrNoRecipients: "Recipients required",
	ErrNoMessage:    "Message required",
	ErrBadRecipient: "Invalid email in list",
	ErrNoMailer:     "Mailer not configured",
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type BulkEmailRequest struct {
	To      []string `json:"to"`
	Message string   `json:"message"`
}

type BulkEmailResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// LogResponse is one audit entry as served to admins.
type LogResponse struct {
	ID        string    `json:"id"`
	To        []string  `json:"to"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRoutes mounts POST /bulkEmail. Any limits run after the admin
// check so they are keyed by the authenticated caller.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
	limits ...func(http.Handler) http.Handler,
) {
	chain := append([]func(http.Handler) http.Handler{authenticator, adminOnly}, limits...)
	r.With(chain...).Post("/bulkEmail", h.BulkEmail)
}

// RegisterAdminRoutes mounts the paged audit log.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.With(authenticator, adminOnly).Get("/admin/email-logs", h.ListLogs)
}

func (h *Handler) BulkEmail(w http.ResponseWriter, r *http.Request) {
	var req BulkEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	n, err := h.service.Send(r.Context(), req.To, req.Message)
	switch {
	case err == nil:
		core.OK(w, BulkEmailResponse{OK: true, Count: n})
	case errors.Is(err, ErrNoRecipients),
		errors.Is(err, ErrNoMessage),
		errors.Is(err, ErrBadRecipient):
		core.BadRequest(w, wireMessage(err))
	case errors.Is(err, ErrNoMailer):
		core.NotImplemented(w, wireErrors[ErrNoMailer])
	default:
		core.InternalServerError(w, err)
	}
}

// ListLogs serves ?page=&page_size= of the bulk email audit log.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, pageSize := logPage(queryInt(r, "page", 1), queryInt(r, "page_size", DefaultLogPageSize))

	logs, total, err := h.service.Logs(r.Context(), page, pageSize)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	items := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, LogResponse{
			ID:        l.ID,
			To:        l.To(),
			Preview:   l.Preview,
			CreatedAt: l.CreatedAt,
		})
	}

	core.Paginated(w, items, page, pageSize, total)
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}

func wireMessage(err error) string {
	for sentinel, msg := range wireErrors {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}
