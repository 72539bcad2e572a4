package handlers

import (
	"net/http"

	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
	"github.com/khelarena/economy-engine/services"
)

type CompetitionHandler struct {
	competitionService *services.CompetitionService
	entryService       *services.EntryService
	settlementService  *services.SettlementService
}

func NewCompetitionHandler(
	cs *services.CompetitionService,
	es *services.EntryService,
	ss *services.SettlementService,
) *CompetitionHandler {
	return &CompetitionHandler{
		competitionService: cs,
		entryService:       es,
		settlementService:  ss,
	}
}

func (h *CompetitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreateCompetitionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	competition, err := h.competitionService.Create(r.Context(), organizerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.Get(r.Context(), competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListCompetitionsFilter{
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	if game := r.URL.Query().Get("game"); game != "" {
		filter.Game = &game
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.CompetitionStatus(raw)
		filter.Status = &status
	}

	competitions, err := h.competitionService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitions": competitions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type joinInput struct {
	TeamName *string `json:"team_name,omitempty" validate:"omitempty,min=2,max=32"`
}

func (h *CompetitionHandler) Join(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input joinInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
		if errs := validateStruct(input); errs != nil {
			failedValidationResponse(w, r, errs)
			return
		}
	}

	result, err := h.entryService.Join(r.Context(), accountID, competitionID, input.TeamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) Exit(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.entryService.Exit(r.Context(), accountID, competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type roomCredentialsInput struct {
	RoomID       string `json:"room_id" validate:"required"`
	RoomPassword string `json:"room_password" validate:"required"`
}

func (h *CompetitionHandler) SetRoomCredentials(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input roomCredentialsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	if err := h.competitionService.SetRoomCredentials(r.Context(), competitionID, organizerID, input.RoomID, input.RoomPassword); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "room credentials set"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.competitionService.Start(r.Context(), competitionID, organizerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ongoing"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.competitionService.Complete(r.Context(), competitionID, organizerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "completed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type declareWinnersInput struct {
	Positions     map[int]int    `json:"positions,omitempty"`
	TeamPositions map[string]int `json:"team_positions,omitempty"`
}

func (h *CompetitionHandler) DeclareWinners(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input declareWinnersInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.settlementService.DeclareWinners(r.Context(), competitionID, organizerID, input.Positions, input.TeamPositions)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type cancelInput struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *CompetitionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	competitionID, err := urlParamInt(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input cancelInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	result, err := h.competitionService.Cancel(r.Context(), competitionID, organizerID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
