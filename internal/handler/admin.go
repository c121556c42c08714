package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/stampcard/internal/model"
)

// AdminHandler serves operator endpoints. They carry no authentication of
// their own and are expected to sit behind the deployment's access control.
type AdminHandler struct {
	responder
	admin Admin
}

func NewAdminHandler(admin Admin, logger *slog.Logger, devMode bool) *AdminHandler {
	return &AdminHandler{
		responder: responder{logger: logger, devMode: devMode},
		admin:     admin,
	}
}

type statsResponse struct {
	Success bool `json:"success"`
	*model.Stats
}

// HandleStats returns registrant totals and the most recent registrants.
//
// HTTP: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

type storeCheckResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	*model.StoreCheck
}

// HandleTestStore writes, reads and deletes a probe document.
//
// HTTP: GET /api/test-store
func (h *AdminHandler) HandleTestStore(w http.ResponseWriter, r *http.Request) {
	check, err := h.admin.CheckStore(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeCheckResponse{
		Success:    true,
		Message:    "Store connection successful",
		Timestamp:  check.CheckedAt,
		StoreCheck: check,
	})
}
