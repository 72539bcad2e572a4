package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// TournamentStage is the knockout tournament state machine:
// registration -> round_1 -> round_2 -> ... -> finale -> completed,
// with cancellation possible from any live stage.
type TournamentStage string

const (
	StageRegistration TournamentStage = "registration"
	StageFinale       TournamentStage = "finale"
	StageCompleted    TournamentStage = "completed"
	StageCancelled    TournamentStage = "cancelled"
)

func StageRound(n int) TournamentStage {
	return TournamentStage(fmt.Sprintf("round_%d", n))
}

// RoundNumber reports the round a stage addresses: 0 for registration,
// n for round_n, and ok=false for non-round stages.
func (s TournamentStage) RoundNumber() (int, bool) {
	if s == StageRegistration {
		return 0, true
	}
	if rest, found := strings.CutPrefix(string(s), "round_"); found {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func (s TournamentStage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// IsValidStageTransition is the compile-time-checked transition table for
// tournament stages. Rounds only ever advance by one.
func IsValidStageTransition(current, next TournamentStage) bool {
	if current.Terminal() {
		return false
	}
	if current == next {
		return true
	}
	if next == StageCancelled {
		return true
	}
	curRound, curIsRound := current.RoundNumber()
	nextRound, nextIsRound := next.RoundNumber()
	switch {
	case curIsRound && nextIsRound:
		return nextRound == curRound+1
	// Registration counts as round 0, so a tournament whose teams fit a
	// single room goes straight to the finale.
	case curIsRound && next == StageFinale:
		return true
	case current == StageFinale && next == StageCompleted:
		return true
	}
	return false
}

// Tournament is a large multi-round knockout event. Game selects the
// per-room team capacity.
type Tournament struct {
	ID          int             `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Game        string          `json:"game" db:"game"`
	OrganizerID int             `json:"organizer_id" db:"organizer_id"`
	Stage       TournamentStage `json:"stage" db:"stage"`
	EntryFee    int64           `json:"entry_fee" db:"entry_fee"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Team belongs to exactly one tournament. CurrentRound is the last round
// the team advanced out of (0 until round 1 is won). A team is eliminated
// exactly once and never advances afterwards.
type Team struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	Name         string        `json:"name" db:"name"`
	MemberIDs    pq.Int64Array `json:"member_ids" db:"member_ids"`
	CurrentRound int           `json:"current_round" db:"current_round"`
	IsEliminated bool          `json:"is_eliminated" db:"is_eliminated"`
	FinalRank    *int          `json:"final_rank,omitempty" db:"final_rank"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// Leader is the registering captain; prize-split remainders go here.
func (t *Team) Leader() (int, bool) {
	if len(t.MemberIDs) == 0 {
		return 0, false
	}
	return int(t.MemberIDs[0]), true
}

type RoomStatus string

const (
	RoomWaiting        RoomStatus = "waiting"
	RoomCredentialsSet RoomStatus = "credentials_set"
	RoomCompleted      RoomStatus = "completed"
)

// Room is one lobby of a round. WinnerTeamID, once set, is never
// reassigned.
type Room struct {
	ID              int           `json:"id" db:"id"`
	TournamentID    int           `json:"tournament_id" db:"tournament_id"`
	RoundNumber     int           `json:"round_number" db:"round_number"`
	RoomNumber      int           `json:"room_number" db:"room_number"`
	AssignedTeamIDs pq.Int64Array `json:"assigned_team_ids" db:"assigned_team_ids"`
	Status          RoomStatus    `json:"status" db:"status"`
	CredentialID    *string       `json:"credential_id,omitempty" db:"credential_id"`
	CredentialPass  *string       `json:"-" db:"credential_pass"`
	ScheduledTime   *time.Time    `json:"scheduled_time,omitempty" db:"scheduled_time"`
	WinnerTeamID    *int          `json:"winner_team_id,omitempty" db:"winner_team_id"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

func (r *Room) HasTeam(teamID int) bool {
	for _, id := range r.AssignedTeamIDs {
		if int(id) == teamID {
			return true
		}
	}
	return false
}

// RoundProgress reports how far a round is from being fully played out,
// so callers can gate "start next round".
type RoundProgress struct {
	TournamentID   int     `json:"tournament_id"`
	RoundNumber    int     `json:"round_number"`
	TotalRooms     int     `json:"total_rooms"`
	CompletedRooms int     `json:"completed_rooms"`
	Fraction       float64 `json:"fraction"`
}
