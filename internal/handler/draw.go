package handler

import (
	"net/http"

	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/service"
)

// DrawHandler handles draw listing and participation requests.
type DrawHandler struct {
	queryService         *service.QueryService
	participationService *service.ParticipationService
}

// NewDrawHandler creates a new DrawHandler.
func NewDrawHandler(queryService *service.QueryService, participationService *service.ParticipationService) *DrawHandler {
	return &DrawHandler{
		queryService:         queryService,
		participationService: participationService,
	}
}

// participateRequest carries the fee the client saw. coinsSpent is accepted
// as an alias of entryFee.
type participateRequest struct {
	DrawID     int64  `json:"drawId"`
	EntryFee   *int64 `json:"entryFee"`
	CoinsSpent *int64 `json:"coinsSpent"`
}

func (p *participateRequest) claimedFee() (int64, error) {
	switch {
	case p.EntryFee != nil:
		return *p.EntryFee, nil
	case p.CoinsSpent != nil:
		return *p.CoinsSpent, nil
	}
	return 0, apperr.Invalid("entryFee is required")
}

// HandleListDraws returns the open draws ordered by draw time.
func (h *DrawHandler) HandleListDraws(w http.ResponseWriter, r *http.Request) {
	draws, err := h.queryService.ActiveDraws(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(draws))
}

// HandleGetDraw returns one draw.
func (h *DrawHandler) HandleGetDraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	draw, err := h.queryService.Draw(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draw)
}

// HandleParticipate enters the caller into the draw named in the path.
func (h *DrawHandler) HandleParticipate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req participateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.DrawID = id
	h.participate(w, r, req)
}

// HandleCreateParticipation enters the caller into the draw named in the body.
func (h *DrawHandler) HandleCreateParticipation(w http.ResponseWriter, r *http.Request) {
	var req participateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DrawID <= 0 {
		writeError(w, r, apperr.Invalid("drawId is required"))
		return
	}
	h.participate(w, r, req)
}

func (h *DrawHandler) participate(w http.ResponseWriter, r *http.Request, req participateRequest) {
	fee, err := req.claimedFee()
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.participationService.Participate(r.Context(), UserID(r.Context()), req.DrawID, fee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleListParticipations returns the caller's entries, newest first.
func (h *DrawHandler) HandleListParticipations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.participationService.UserParticipations(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}
