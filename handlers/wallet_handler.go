package handlers

import (
	"net/http"

	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/services"
)

type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(ws *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: ws}
}

func (h *WalletHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	balances, err := h.walletService.Balances(r.Context(), accountID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"balances": balances}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *WalletHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	entries, err := h.walletService.History(r.Context(), accountID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"entries": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type depositInput struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input depositInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	balances, err := h.walletService.Deposit(r.Context(), accountID, input.Amount)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"balances": balances}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type adjustInput struct {
	Delta  int64  `json:"delta" validate:"required"`
	Pool   string `json:"pool" validate:"required,oneof=spendable withdrawable"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// Adjust is the admin-only manual balance correction.
func (h *WalletHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	accountID, err := urlParamInt(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input adjustInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	balances, err := h.walletService.Adjust(r.Context(), accountID, input.Delta, models.BalancePool(input.Pool), input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"balances": balances}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
