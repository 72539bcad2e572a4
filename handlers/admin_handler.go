package handlers

import (
	"net/http"

	"github.com/khelarena/economy-engine/services"
)

type AdminHandler struct {
	adminService  *services.AdminService
	walletService *services.WalletService
}

func NewAdminHandler(as *services.AdminService, ws *services.WalletService) *AdminHandler {
	return &AdminHandler{adminService: as, walletService: ws}
}

type accountFlagsInput struct {
	Frozen bool   `json:"frozen"`
	Banned bool   `json:"banned"`
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *AdminHandler) SetAccountFlags(w http.ResponseWriter, r *http.Request) {
	accountID, err := urlParamInt(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input accountFlagsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	if err := h.adminService.SetAccountFlags(r.Context(), accountID, input.Frozen, input.Banned, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "flags updated"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.DashboardStats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReplayBalances exposes the ledger-vs-materialization audit for one
// account.
func (h *AdminHandler) ReplayBalances(w http.ResponseWriter, r *http.Request) {
	accountID, err := urlParamInt(r, "accountID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	materialized, replayed, err := h.walletService.ReplayBalances(r.Context(), accountID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"materialized": materialized,
		"replayed":     replayed,
		"in_sync":      *materialized == *replayed,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
