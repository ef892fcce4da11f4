package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/service"
)

// LedgerHandler handles HTTP requests for accounts and commodities.
type LedgerHandler struct {
	ledgerSvc *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// setComplianceRequest is the JSON request body for PUT /accounts/{account}/compliance.
type setComplianceRequest struct {
	Allowed bool `json:"allowed"`
}

// SetCompliance handles PUT /accounts/{account}/compliance.
func (h *LedgerHandler) SetCompliance(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")

	var req setComplianceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.SetCompliance(r.Context(), caller, account, req.Allowed); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"account": account, "allowed": req.Allowed})
}

// GetCompliance handles GET /accounts/{account}/compliance.
func (h *LedgerHandler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	WriteJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"allowed": h.ledgerSvc.IsCompliant(account),
	})
}

// capabilityRequest is the JSON request body for POST /accounts/{account}/capabilities.
type capabilityRequest struct {
	Capability string `json:"capability"`
}

// GrantCapability handles POST /accounts/{account}/capabilities.
func (h *LedgerHandler) GrantCapability(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")

	var req capabilityRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.GrantCapability(r.Context(), caller, account, req.Capability); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"account": account, "capabilities": h.ledgerSvc.ListCapabilities(account)})
}

// RevokeCapability handles DELETE /accounts/{account}/capabilities/{capability}.
func (h *LedgerHandler) RevokeCapability(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")
	capability := chi.URLParam(r, "capability")

	if err := h.ledgerSvc.RevokeCapability(r.Context(), caller, account, capability); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"account": account, "capabilities": h.ledgerSvc.ListCapabilities(account)})
}

// ListCapabilities handles GET /accounts/{account}/capabilities.
func (h *LedgerHandler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	WriteJSON(w, http.StatusOK, map[string]any{
		"account":      account,
		"capabilities": h.ledgerSvc.ListCapabilities(account),
	})
}

// registerCommodityRequest is the JSON request body for POST /commodities.
type registerCommodityRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// commodityResponse is the JSON representation of a commodity.
type commodityResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	TotalSupply    decimal.Decimal `json:"total_supply"`
	QualityScore   int             `json:"quality_score"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Paused         bool            `json:"paused"`
}

func buildCommodityResponse(c domain.Commodity) commodityResponse {
	return commodityResponse{
		ID:             c.ID,
		Name:           c.Name,
		Symbol:         c.Symbol,
		TotalSupply:    c.TotalSupply,
		QualityScore:   c.QualityScore,
		ReferencePrice: c.ReferencePrice,
		Paused:         c.Paused,
	}
}

// RegisterCommodity handles POST /commodities.
func (h *LedgerHandler) RegisterCommodity(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req registerCommodityRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	commodity, err := h.ledgerSvc.RegisterCommodity(r.Context(), caller, req.ID, req.Name, req.Symbol)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildCommodityResponse(commodity))
}

// GetCommodity handles GET /commodities/{commodity}.
func (h *LedgerHandler) GetCommodity(w http.ResponseWriter, r *http.Request) {
	commodity, err := h.ledgerSvc.Commodity(chi.URLParam(r, "commodity"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildCommodityResponse(commodity))
}

// mintRequest is the JSON request body for POST /commodities/{commodity}/mint.
type mintRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Mint handles POST /commodities/{commodity}/mint.
func (h *LedgerHandler) Mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	var req mintRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.Mint(r.Context(), caller, req.To, commodity, req.Amount); err != nil {
		WriteDomainError(w, err)
		return
	}
	info, err := h.ledgerSvc.Commodity(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildCommodityResponse(info))
}

// transferRequest is the JSON request body for POST /commodities/{commodity}/transfer.
type transferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Transfer handles POST /commodities/{commodity}/transfer. The sender is
// always the authenticated caller.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.Transfer(r.Context(), caller, req.To, commodity, req.Amount); err != nil {
		WriteDomainError(w, err)
		return
	}

	balance, err := h.ledgerSvc.BalanceOf(caller, commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"from":      caller,
		"to":        req.To,
		"commodity": commodity,
		"amount":    req.Amount,
		"balance":   balance,
	})
}

// qualityRequest is the JSON request body for PUT /commodities/{commodity}/quality.
type qualityRequest struct {
	Score int `json:"score"`
}

// ValidateQuality handles PUT /commodities/{commodity}/quality.
func (h *LedgerHandler) ValidateQuality(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	var req qualityRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.ValidateQuality(r.Context(), caller, commodity, req.Score); err != nil {
		WriteDomainError(w, err)
		return
	}
	info, err := h.ledgerSvc.Commodity(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildCommodityResponse(info))
}

// priceRequest is the JSON request body for PUT /commodities/{commodity}/price.
type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// UpdatePrice handles PUT /commodities/{commodity}/price.
func (h *LedgerHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	var req priceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledgerSvc.UpdatePrice(r.Context(), caller, commodity, req.Price); err != nil {
		WriteDomainError(w, err)
		return
	}
	info, err := h.ledgerSvc.Commodity(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildCommodityResponse(info))
}

// Pause handles POST /commodities/{commodity}/pause.
func (h *LedgerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	if err := h.ledgerSvc.Pause(r.Context(), caller, commodity); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"commodity": commodity, "paused": true})
}

// Unpause handles POST /commodities/{commodity}/unpause.
func (h *LedgerHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	if err := h.ledgerSvc.Unpause(r.Context(), caller, commodity); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"commodity": commodity, "paused": false})
}

// GetBalance handles GET /accounts/{account}/balances/{commodity}.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	commodity := chi.URLParam(r, "commodity")

	balance, err := h.ledgerSvc.BalanceOf(account, commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"commodity": commodity,
		"balance":   balance,
	})
}

// ListBalances handles GET /commodities/{commodity}/balances.
func (h *LedgerHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")

	balances, err := h.ledgerSvc.Balances(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"commodity": commodity,
		"balances":  balances,
	})
}
