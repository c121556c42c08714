package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
)

// StampHandler serves the stamp page's reads and booth scans.
type StampHandler struct {
	responder
	cards StampCards
}

func NewStampHandler(cards StampCards, logger *slog.Logger, devMode bool) *StampHandler {
	return &StampHandler{
		responder: responder{logger: logger, devMode: devMode},
		cards:     cards,
	}
}

type stampCardResponse struct {
	Success bool           `json:"success"`
	Stamps  []model.Slot   `json:"stamps"`
	User    model.UserInfo `json:"user"`
}

// HandleGet returns a registrant's card.
//
// HTTP: GET /api/get-stamp?id=<uuid>
func (h *StampHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.cards.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stampCardResponse{
		Success: true,
		Stamps:  view.Stamps,
		User:    view.User,
	})
}

type markResponse struct {
	Success bool         `json:"success"`
	Stamps  []model.Slot `json:"stamps"`
	Booth   model.Booth  `json:"booth"`
	Message string       `json:"message"`
}

// HandleMark records a booth scan.
//
// HTTP: POST /api/mark-stamp?id=<uuid>&booth=<boothId>
//
// A repeat scan answers 409 with the unchanged stamps, so the page can tell
// "first stamp" from "already had it" and still re-render.
func (h *StampHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.cards.Mark(r.Context(), q.Get("id"), q.Get("booth"))
	if err != nil {
		if res != nil && errors.Is(err, apperror.ErrConflict) {
			h.writeErrorWithStamps(w, r, err, res.Stamps)
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markResponse{
		Success: true,
		Stamps:  res.Stamps,
		Booth:   res.Booth,
		Message: res.Message,
	})
}

// HandleBooths lists the booth catalog in card order.
//
// HTTP: GET /api/booths
func (h *StampHandler) HandleBooths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"booths":  model.Booths(),
	})
}
