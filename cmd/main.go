package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khelarena/economy-engine/config"
	"github.com/khelarena/economy-engine/db"
	"github.com/khelarena/economy-engine/events"
	"github.com/khelarena/economy-engine/handlers"
	"github.com/khelarena/economy-engine/middleware"
	"github.com/khelarena/economy-engine/migrations"
	"github.com/khelarena/economy-engine/repositories"
	"github.com/khelarena/economy-engine/routes"
	"github.com/khelarena/economy-engine/services"
)

const schedulerInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := migrations.Run(dbConn); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	hub := events.NewHub(logger)
	go hub.Run()
	logger.Info("event hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	accountRepo := repositories.NewPostgresAccountRepository(dbConn)
	ledgerRepo := repositories.NewPostgresLedgerRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	roomRepo := repositories.NewPostgresRoomRepository(dbConn)
	logger.Info("repositories initialized")

	txManager := services.NewSQLTxManager(dbConn)

	authService := services.NewAuthService(txManager, userRepo, accountRepo, logger, cfg.JWTSecretKey)
	walletService := services.NewWalletService(txManager, accountRepo, ledgerRepo, logger)
	entryService := services.NewEntryService(
		txManager, competitionRepo, registrationRepo, accountRepo, ledgerRepo,
		logger, cfg.JoinCutoff, cfg.ExitCutoff, cfg.PrizePoolPercent,
	)
	settlementService := services.NewSettlementService(
		txManager, competitionRepo, registrationRepo, accountRepo, ledgerRepo,
		hub, logger, cfg.DisputeWindow, cfg.PrizePoolPercent, cfg.OrganizerPercent,
	)
	competitionService := services.NewCompetitionService(
		txManager, competitionRepo, registrationRepo, accountRepo, ledgerRepo,
		settlementService, hub, logger, cfg.PrizePoolPercent,
	)
	withdrawalService := services.NewWithdrawalService(txManager, accountRepo, ledgerRepo, hub, logger, cfg.MinWithdrawal)
	bracketService := services.NewBracketService(
		txManager, tournamentRepo, teamRepo, roomRepo, accountRepo, ledgerRepo,
		hub, logger, cfg.RoomCapacities,
	)
	adminService := services.NewAdminService(txManager, userRepo, accountRepo, ledgerRepo, competitionRepo, tournamentRepo, logger)
	logger.Info("services initialized")

	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("competition status scheduler started", slog.Duration("interval", schedulerInterval))

		competitionService.AutoUpdateStatusesByDates(context.Background())
		for range ticker.C {
			competitionService.AutoUpdateStatusesByDates(context.Background())
		}
	}()

	handlerSet := routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Wallet:      handlers.NewWalletHandler(walletService),
		Competition: handlers.NewCompetitionHandler(competitionService, entryService, settlementService),
		Withdrawal:  handlers.NewWithdrawalHandler(withdrawalService),
		Bracket:     handlers.NewBracketHandler(bracketService),
		Admin:       handlers.NewAdminHandler(adminService, walletService),
		WebSocket:   handlers.NewWebSocketHandler(hub, logger),
	}
	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := routes.SetupRoutes(handlerSet, authenticator)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if err := server.Close(); err != nil {
				logger.Error("forced shutdown failed", slog.Any("error", err))
			}
		}
		logger.Info("server stopped")
	}
}
