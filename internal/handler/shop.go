package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"lucky-draw/internal/service"
	"lucky-draw/internal/shop"
)

// ShopHandler handles coin purchases and the ledger history.
type ShopHandler struct {
	ledgerService *service.LedgerService
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(ledgerService *service.LedgerService) *ShopHandler {
	return &ShopHandler{ledgerService: ledgerService}
}

// purchaseRequest accepts either a package id or an explicit coin amount.
// amount and cost are accepted as aliases of coins and price.
type purchaseRequest struct {
	PackageID shop.PackageID   `json:"packageId"`
	Coins     int64            `json:"coins"`
	Price     *decimal.Decimal `json:"price"`
	Amount    int64            `json:"amount"`
	Cost      *decimal.Decimal `json:"cost"`
}

func (p *purchaseRequest) toService() service.PurchaseRequest {
	req := service.PurchaseRequest{PackageID: p.PackageID, Coins: p.Coins}
	if req.Coins == 0 {
		req.Coins = p.Amount
	}
	switch {
	case p.Price != nil:
		req.Price = *p.Price
	case p.Cost != nil:
		req.Price = *p.Cost
	}
	return req
}

// HandlePackages lists the coin packages.
func (h *ShopHandler) HandlePackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, shop.GetAllPackages())
}

// HandlePurchase credits purchased coins to the caller.
func (h *ShopHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.ledgerService.Purchase(r.Context(), UserID(r.Context()), req.toService())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleTransactions returns the caller's ledger, newest first.
func (h *ShopHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := h.ledgerService.Transactions(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}
