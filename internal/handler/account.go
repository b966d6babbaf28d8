// Package handler provides the HTTP JSON API of the lucky-draw engine.
package handler

import (
	"net/http"

	"lucky-draw/internal/service"
)

// AccountHandler handles account and check-in requests.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HandleCurrentUser returns the caller, creating the account on first sight.
func (h *AccountHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.accountService.EnsureUser(r.Context(), profileFromHeaders(r, UserID(r.Context())))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleCheckIn grants the daily bonus.
func (h *AccountHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	result, err := h.accountService.CheckIn(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCheckInStatus reports whether the caller may check in today.
func (h *AccountHandler) HandleCheckInStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.accountService.CheckInStatus(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
