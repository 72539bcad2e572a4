package handlers

import (
	"net/http"

	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/services"
)

type WithdrawalHandler struct {
	withdrawalService *services.WithdrawalService
}

func NewWithdrawalHandler(ws *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: ws}
}

type withdrawalRequestInput struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Destination string `json:"destination" validate:"required,min=3"`
}

func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input withdrawalRequestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	entry, err := h.withdrawalService.Request(r.Context(), accountID, input.Amount, input.Destination)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"request": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *WithdrawalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	entries, err := h.withdrawalService.ListPending(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"requests": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	requestID, err := urlParamInt(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.withdrawalService.Approve(r.Context(), requestID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "completed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type rejectInput struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	requestID, err := urlParamInt(r, "requestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input rejectInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	if err := h.withdrawalService.Reject(r.Context(), requestID, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "rejected"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
