package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/khelarena/economy-engine/handlers"
	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/models"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Wallet      *handlers.WalletHandler
	Competition *handlers.CompetitionHandler
	Withdrawal  *handlers.WithdrawalHandler
	Bracket     *handlers.BracketHandler
	Admin       *handlers.AdminHandler
	WebSocket   *handlers.WebSocketHandler
}

// SetupRoutes builds the chi route tree with role-gated groups.
func SetupRoutes(h Handlers, auth *middleware.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/register", h.Auth.Register)
	r.Post("/auth/login", h.Auth.Login)

	r.Get("/ws/{topic}", h.WebSocket.Subscribe)

	// Public reads.
	r.Get("/competitions", h.Competition.List)
	r.Get("/competitions/{competitionID}", h.Competition.Get)
	r.Get("/tournaments", h.Bracket.ListTournaments)
	r.Get("/tournaments/{tournamentID}", h.Bracket.GetTournament)
	r.Get("/tournaments/{tournamentID}/teams", h.Bracket.ListTeams)
	r.Get("/tournaments/{tournamentID}/rounds/{roundNumber}/rooms", h.Bracket.ListRooms)
	r.Get("/tournaments/{tournamentID}/rounds/{roundNumber}/progress", h.Bracket.RoundProgress)

	// Any authenticated user.
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/wallet/balances", h.Wallet.GetBalances)
		r.Get("/wallet/history", h.Wallet.GetHistory)
		r.Post("/wallet/deposit", h.Wallet.Deposit)
		r.Post("/withdrawals", h.Withdrawal.Request)

		r.Post("/competitions/{competitionID}/join", h.Competition.Join)
		r.Post("/competitions/{competitionID}/exit", h.Competition.Exit)
		r.Post("/tournaments/{tournamentID}/teams", h.Bracket.RegisterTeam)
	})

	// Organizer and creator surface.
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(models.RoleOrganizer, models.RoleCreator, models.RoleAdmin))

		r.Post("/competitions", h.Competition.Create)
		r.Put("/competitions/{competitionID}/room", h.Competition.SetRoomCredentials)
		r.Post("/competitions/{competitionID}/start", h.Competition.Start)
		r.Post("/competitions/{competitionID}/complete", h.Competition.Complete)
		r.Post("/competitions/{competitionID}/winners", h.Competition.DeclareWinners)
		r.Post("/competitions/{competitionID}/cancel", h.Competition.Cancel)

		r.Post("/tournaments", h.Bracket.CreateTournament)
		r.Post("/tournaments/{tournamentID}/rounds/{roundNumber}/start", h.Bracket.StartRound)
		r.Put("/rooms/{roomID}/credentials", h.Bracket.SetRoomCredentials)
		r.Post("/rooms/{roomID}/winner", h.Bracket.DeclareRoomWinner)
		r.Post("/tournaments/{tournamentID}/cancel", h.Bracket.CancelTournament)
	})

	// Administrator surface.
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(models.RoleAdmin))

		r.Get("/admin/dashboard", h.Admin.Dashboard)
		r.Put("/admin/accounts/{accountID}/flags", h.Admin.SetAccountFlags)
		r.Post("/admin/accounts/{accountID}/adjust", h.Wallet.Adjust)
		r.Get("/admin/accounts/{accountID}/replay", h.Admin.ReplayBalances)
		r.Get("/admin/withdrawals", h.Withdrawal.ListPending)
		r.Post("/admin/withdrawals/{requestID}/approve", h.Withdrawal.Approve)
		r.Post("/admin/withdrawals/{requestID}/reject", h.Withdrawal.Reject)
	})

	return r
}
