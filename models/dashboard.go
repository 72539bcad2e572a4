package models

type DashboardStats struct {
	UsersTotal          int   `json:"users_total"`
	FrozenAccounts      int   `json:"frozen_accounts"`
	BannedAccounts      int   `json:"banned_accounts"`
	CompetitionsTotal   int   `json:"competitions_total"`
	ActiveCompetitions  int   `json:"active_competitions"`
	TournamentsTotal    int   `json:"tournaments_total"`
	PendingWithdrawals  int   `json:"pending_withdrawals"`
	EscrowedPrizeMoney  int64 `json:"escrowed_prize_money"`
	WithdrawableOnHold  int64 `json:"withdrawable_on_hold"`
}
