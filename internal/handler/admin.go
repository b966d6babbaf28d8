package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/service"
)

// AdminHandler handles draw management and manual coin grants.
// Every route is restricted to configured admin ids.
type AdminHandler struct {
	settlementService *service.SettlementService
	ledgerService     *service.LedgerService
	accountService    *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	settlementService *service.SettlementService,
	ledgerService *service.LedgerService,
	accountService *service.AccountService,
) *AdminHandler {
	return &AdminHandler{
		settlementService: settlementService,
		ledgerService:     ledgerService,
		accountService:    accountService,
	}
}

// HandleCreateDraw creates a draw.
func (h *AdminHandler) HandleCreateDraw(w http.ResponseWriter, r *http.Request) {
	var req service.NewDraw
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draw, err := h.settlementService.CreateDraw(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draw)
}

// HandleUpdateDraw toggles whether a draw accepts entries.
func (h *AdminHandler) HandleUpdateDraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, r, apperr.Invalid("isActive is required"))
		return
	}
	draw, err := h.settlementService.SetDrawActive(r.Context(), id, *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draw)
}

// HandleSelectWinner settles a draw.
func (h *AdminHandler) HandleSelectWinner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.settlementService.Settle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGrantCoins credits coins to a user as an earn transaction.
func (h *AdminHandler) HandleGrantCoins(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["id"]
	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = fmt.Sprintf("Granted by admin %s", UserID(r.Context()))
	}

	entry, err := h.ledgerService.Credit(r.Context(), targetID, req.Amount, model.TxTypeEarn, req.Description, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().
		Str("admin_id", UserID(r.Context())).
		Str("target_id", targetID).
		Int64("amount", req.Amount).
		Str("operation", "grant_coins").
		Msg("Admin operation executed")
	writeJSON(w, http.StatusOK, entry)
}

// HandleUpdateUser changes a user's VIP status.
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["id"]
	var req struct {
		IsVIP *bool `json:"isVip"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsVIP == nil {
		writeError(w, r, apperr.Invalid("isVip is required"))
		return
	}
	user, err := h.accountService.SetVIP(r.Context(), targetID, *req.IsVIP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
