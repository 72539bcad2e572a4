package handlers

import (
	"net/http"
	"time"

	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/services"
)

type BracketHandler struct {
	bracketService *services.BracketService
}

func NewBracketHandler(bs *services.BracketService) *BracketHandler {
	return &BracketHandler{bracketService: bs}
}

type createTournamentInput struct {
	Name     string `json:"name" validate:"required,min=3,max=100"`
	Game     string `json:"game" validate:"required"`
	EntryFee int64  `json:"entry_fee" validate:"min=0"`
}

func (h *BracketHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	tournament, err := h.bracketService.CreateTournament(r.Context(), organizerID, input.Name, input.Game, input.EntryFee)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.GetTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	var organizerID *int
	if id := queryInt(r, "organizer_id", 0); id > 0 {
		organizerID = &id
	}

	tournaments, err := h.bracketService.ListTournaments(r.Context(), organizerID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type registerTeamInput struct {
	Name      string `json:"name" validate:"required,min=2,max=32"`
	MemberIDs []int  `json:"member_ids" validate:"required,min=1,max=4,dive,gt=0"`
}

func (h *BracketHandler) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input registerTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	team, err := h.bracketService.RegisterTeam(r.Context(), tournamentID, input.Name, input.MemberIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	teams, err := h.bracketService.ListTeams(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"teams": teams}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := urlParamInt(r, "roundNumber")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.bracketService.StartRound(r.Context(), tournamentID, organizerID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	if err := writeJSON(w, status, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := urlParamInt(r, "roundNumber")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rooms, err := h.bracketService.ListRooms(r.Context(), tournamentID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rooms": rooms}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) RoundProgress(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := urlParamInt(r, "roundNumber")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	progress, err := h.bracketService.RoundProgress(r.Context(), tournamentID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"progress": progress}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type setRoomCredentialsInput struct {
	CredentialID   string     `json:"credential_id" validate:"required"`
	CredentialPass string     `json:"credential_pass" validate:"required"`
	ScheduledTime  *time.Time `json:"scheduled_time,omitempty"`
}

func (h *BracketHandler) SetRoomCredentials(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	roomID, err := urlParamInt(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input setRoomCredentialsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	err = h.bracketService.SetRoomCredentials(r.Context(), roomID, organizerID, input.CredentialID, input.CredentialPass, input.ScheduledTime)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "credentials_set"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type declareRoomWinnerInput struct {
	WinnerTeamID int `json:"winner_team_id" validate:"required,gt=0"`
}

func (h *BracketHandler) DeclareRoomWinner(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	roomID, err := urlParamInt(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input declareRoomWinnerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if errs := validateStruct(input); errs != nil {
		failedValidationResponse(w, r, errs)
		return
	}

	result, err := h.bracketService.DeclareRoomWinner(r.Context(), roomID, organizerID, input.WinnerTeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) CancelTournament(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
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

	result, err := h.bracketService.CancelTournament(r.Context(), tournamentID, organizerID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
