package services

import "errors"

// ErrorKind is the coarse taxonomy reported to callers alongside the
// message. Classification happens via errors.Is on the sentinels below,
// so wrapped errors keep their kind.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindCapacity          ErrorKind = "capacity"
	KindStateConflict     ErrorKind = "state_conflict"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindAuthorization     ErrorKind = "authorization"
	KindTiming            ErrorKind = "timing"
	KindNotFound          ErrorKind = "not_found"
	KindInternal          ErrorKind = "internal"
)

var (
	// Not found
	ErrNotFound            = errors.New("requested resource not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")

	// Validation
	ErrValidationFailed    = errors.New("validation failed")
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrReasonRequired      = errors.New("a non-empty reason is required")
	ErrInvalidPool         = errors.New("invalid balance pool")
	ErrInvalidMode         = errors.New("invalid competition mode")
	ErrInvalidDistribution = errors.New("invalid prize distribution")
	ErrUnknownGame         = errors.New("no room capacity configured for this game")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrPositionsRequired   = errors.New("at least one position assignment is required")

	// Capacity
	ErrCompetitionFull = errors.New("competition is full")

	// State conflicts
	ErrAlreadyJoined             = errors.New("account is already registered for this competition")
	ErrNotJoined                 = errors.New("account is not registered for this competition")
	ErrCompetitionNotJoinable    = errors.New("competition is not open for joining")
	ErrExitNotAllowed            = errors.New("exit is not allowed for this competition")
	ErrTeamFeeNotRefundable      = errors.New("team entry fees are not refundable")
	ErrWinnersAlreadyDeclared    = errors.New("winners have already been declared")
	ErrCompetitionNotCompleted   = errors.New("competition is not completed")
	ErrCompetitionNotCancellable = errors.New("competition can no longer be cancelled")
	ErrPoolAlreadyRecalculated   = errors.New("prize pool already recalculated")
	ErrRoomCredentialsRequired   = errors.New("room credentials must be set before start")
	ErrRoomCredentialsAlreadySet = errors.New("room credentials have already been set")
	ErrWithdrawalAlreadyDecided  = errors.New("withdrawal request has already been decided")
	ErrInvalidStageTransition    = errors.New("invalid tournament stage transition")
	ErrRoundNotComplete          = errors.New("previous round is not fully completed")
	ErrRoomNotLive               = errors.New("room credentials have not been set")
	ErrRoomWinnerAlreadySet      = errors.New("room winner has already been declared")
	ErrTeamNotInRoom             = errors.New("team is not assigned to this room")
	ErrTeamEliminated            = errors.New("team has already been eliminated")
	ErrRegistrationClosed        = errors.New("tournament registration is closed")
	ErrAccountFrozen             = errors.New("account is frozen")
	ErrAccountBanned             = errors.New("account is banned")

	// Insufficient funds
	ErrInsufficientSpendable    = errors.New("insufficient spendable balance")
	ErrInsufficientWithdrawable = errors.New("insufficient withdrawable balance")
	ErrPrizeOverAllocation      = errors.New("prize allocation exceeds the current prize pool")
	ErrBelowMinimumWithdrawal   = errors.New("amount is below the minimum withdrawal")

	// Authorization
	ErrForbiddenOperation  = errors.New("operation not allowed for the current user")
	ErrNotCompetitionOwner = errors.New("only the competition organizer can perform this action")
	ErrNotTournamentOwner  = errors.New("only the tournament organizer can perform this action")

	// Timing
	ErrJoinWindowClosed    = errors.New("join window has closed for this competition")
	ErrExitWindowClosed    = errors.New("exit window has closed for this competition")
	ErrDisputeWindowActive = errors.New("dispute window has not elapsed yet")
)

var kindSets = map[ErrorKind][]error{
	KindNotFound: {
		ErrNotFound, ErrUserNotFound, ErrAccountNotFound, ErrCompetitionNotFound,
		ErrTournamentNotFound, ErrTeamNotFound, ErrRoomNotFound, ErrWithdrawalNotFound,
	},
	KindValidation: {
		ErrValidationFailed, ErrAmountNotPositive, ErrReasonRequired, ErrInvalidPool,
		ErrInvalidMode, ErrInvalidDistribution, ErrUnknownGame, ErrPasswordTooShort,
		ErrInvalidCredentials, ErrPositionsRequired,
	},
	KindCapacity: {
		ErrCompetitionFull,
	},
	KindStateConflict: {
		ErrAlreadyJoined, ErrNotJoined, ErrCompetitionNotJoinable, ErrExitNotAllowed,
		ErrTeamFeeNotRefundable, ErrWinnersAlreadyDeclared, ErrCompetitionNotCompleted,
		ErrCompetitionNotCancellable, ErrPoolAlreadyRecalculated, ErrRoomCredentialsRequired,
		ErrRoomCredentialsAlreadySet,
		ErrWithdrawalAlreadyDecided, ErrInvalidStageTransition, ErrRoundNotComplete,
		ErrRoomNotLive, ErrRoomWinnerAlreadySet, ErrTeamNotInRoom, ErrTeamEliminated,
		ErrRegistrationClosed, ErrAccountFrozen, ErrAccountBanned,
	},
	KindInsufficientFunds: {
		ErrInsufficientSpendable, ErrInsufficientWithdrawable, ErrPrizeOverAllocation,
		ErrBelowMinimumWithdrawal,
	},
	KindAuthorization: {
		ErrForbiddenOperation, ErrNotCompetitionOwner, ErrNotTournamentOwner,
	},
	KindTiming: {
		ErrJoinWindowClosed, ErrExitWindowClosed, ErrDisputeWindowActive,
	},
}

// Classify maps an error to its taxonomy kind, defaulting to internal.
func Classify(err error) ErrorKind {
	for kind, sentinels := range kindSets {
		for _, sentinel := range sentinels {
			if errors.Is(err, sentinel) {
				return kind
			}
		}
	}
	return KindInternal
}
