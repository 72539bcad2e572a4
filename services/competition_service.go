package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// poolRecalculator is the slice of SettlementService the lifecycle code
// needs when a competition goes live.
type poolRecalculator interface {
	RecalculatePool(ctx context.Context, competitionID int) (int64, error)
}

// CompetitionService owns the competition lifecycle: creation with the
// provisional full-capacity pool estimate, the upcoming -> ongoing ->
// completed progression, and cancellation with its all-or-nothing bulk
// refund.
type CompetitionService struct {
	tx               TxManager
	competitionRepo  repositories.CompetitionRepository
	registrationRepo repositories.RegistrationRepository
	accountRepo      repositories.AccountRepository
	ledgerRepo       repositories.LedgerRepository
	settlement       poolRecalculator
	notifier         Notifier
	logger           *slog.Logger

	prizePoolPercent int

	now func() time.Time
}

func NewCompetitionService(
	tx TxManager,
	competitionRepo repositories.CompetitionRepository,
	registrationRepo repositories.RegistrationRepository,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	settlement poolRecalculator,
	notifier Notifier,
	logger *slog.Logger,
	prizePoolPercent int,
) *CompetitionService {
	return &CompetitionService{
		tx:               tx,
		competitionRepo:  competitionRepo,
		registrationRepo: registrationRepo,
		accountRepo:      accountRepo,
		ledgerRepo:       ledgerRepo,
		settlement:       settlement,
		notifier:         notifier,
		logger:           logger,
		prizePoolPercent: prizePoolPercent,
		now:              time.Now,
	}
}

// CreateCompetitionInput carries everything Create validates.
type CreateCompetitionInput struct {
	Name         string                   `json:"name" validate:"required,min=3,max=100"`
	Game         string                   `json:"game" validate:"required"`
	Mode         models.CompetitionMode   `json:"mode" validate:"required"`
	Capacity     int                      `json:"capacity" validate:"required,min=2"`
	EntryFee     int64                    `json:"entry_fee" validate:"min=0"`
	Distribution models.PrizeDistribution `json:"prize_distribution" validate:"required"`
	StartTime    time.Time                `json:"start_time" validate:"required"`
	EndTime      time.Time                `json:"end_time" validate:"required"`
}

// Create opens a competition. The prize pool starts as the provisional
// full-capacity estimate; the real pool is recalculated from the joined
// count when the competition goes ongoing.
func (s *CompetitionService) Create(ctx context.Context, organizerID int, in CreateCompetitionInput) (*models.Competition, error) {
	if !in.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	if in.Capacity < 2 {
		return nil, ErrValidationFailed
	}
	if in.EntryFee < 0 {
		return nil, ErrAmountNotPositive
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, ErrValidationFailed
	}
	if !in.StartTime.After(s.now()) {
		return nil, ErrValidationFailed
	}

	provisionalPool := int64(in.Capacity) * in.EntryFee * int64(s.prizePoolPercent) / 100
	if len(in.Distribution) == 0 {
		return nil, ErrInvalidDistribution
	}
	for rank, amount := range in.Distribution {
		if rank < 1 || amount < 0 {
			return nil, ErrInvalidDistribution
		}
	}
	if in.Distribution.Total() > provisionalPool {
		return nil, ErrInvalidDistribution
	}

	distributionJSON, err := in.Distribution.MarshalJSON()
	if err != nil {
		return nil, err
	}

	competition := &models.Competition{
		Name:              in.Name,
		Game:              in.Game,
		OrganizerID:       organizerID,
		Mode:              in.Mode,
		Status:            models.CompetitionUpcoming,
		Capacity:          in.Capacity,
		EntryFee:          in.EntryFee,
		CurrentPrizePool:  provisionalPool,
		DistributionJSON:  distributionJSON,
		PrizeDistribution: in.Distribution,
		StartTime:         in.StartTime,
		EndTime:           in.EndTime,
	}
	if err := s.competitionRepo.Create(ctx, competition); err != nil {
		if errors.Is(err, repositories.ErrCompetitionInvalidOrg) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info("competition created",
		slog.Int("competition_id", competition.ID),
		slog.Int("organizer_id", organizerID),
		slog.Int64("provisional_pool", provisionalPool),
	)
	return competition, nil
}

func (s *CompetitionService) Get(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return competition, nil
}

func (s *CompetitionService) List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	return s.competitionRepo.List(ctx, filter)
}

func (s *CompetitionService) ListRegistrations(ctx context.Context, competitionID int) ([]models.Registration, error) {
	return s.registrationRepo.ListByCompetition(ctx, nil, competitionID)
}

// SetRoomCredentials attaches the lobby id and password. Start refuses to
// run without them.
func (s *CompetitionService) SetRoomCredentials(ctx context.Context, competitionID, organizerID int, roomID, roomPassword string) error {
	if roomID == "" || roomPassword == "" {
		return ErrRoomCredentialsRequired
	}

	competition, err := s.Get(ctx, competitionID)
	if err != nil {
		return err
	}
	if competition.OrganizerID != organizerID {
		return ErrNotCompetitionOwner
	}
	if competition.Status != models.CompetitionUpcoming {
		return ErrCompetitionNotJoinable
	}
	return s.competitionRepo.SetRoomCredentials(ctx, competitionID, roomID, roomPassword)
}

// Start moves an upcoming competition to ongoing and recalculates the
// prize pool from the real joined count. Blocks without room credentials.
func (s *CompetitionService) Start(ctx context.Context, competitionID, organizerID int) error {
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}
		if competition.OrganizerID != organizerID {
			return ErrNotCompetitionOwner
		}
		if !models.IsValidCompetitionStatusTransition(competition.Status, models.CompetitionOngoing) {
			return ErrCompetitionNotJoinable
		}
		if competition.RoomID == nil || *competition.RoomID == "" {
			return ErrRoomCredentialsRequired
		}
		return s.competitionRepo.UpdateStatus(ctx, tx, competitionID, models.CompetitionOngoing)
	})
	if err != nil {
		return err
	}

	if _, err := s.settlement.RecalculatePool(ctx, competitionID); err != nil && !errors.Is(err, ErrPoolAlreadyRecalculated) {
		return err
	}
	s.logger.Info("competition started", slog.Int("competition_id", competitionID))
	return nil
}

// Complete moves an ongoing competition to completed. The dispute window
// for winner declaration starts at the stored end time, not at this call.
func (s *CompetitionService) Complete(ctx context.Context, competitionID, organizerID int) error {
	return s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}
		if competition.OrganizerID != organizerID {
			return ErrNotCompetitionOwner
		}
		if !models.IsValidCompetitionStatusTransition(competition.Status, models.CompetitionCompleted) {
			return ErrCompetitionNotCompleted
		}
		return s.competitionRepo.UpdateStatus(ctx, tx, competitionID, models.CompetitionCompleted)
	})
}

// Cancel refunds every registration and marks the competition cancelled,
// all in one transaction. A failure anywhere rolls back every refund: a
// large participant list is never left half refunded.
func (s *CompetitionService) Cancel(ctx context.Context, competitionID, organizerID int, reason string) (*CancelResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var result CancelResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}
		if competition.OrganizerID != organizerID {
			return ErrNotCompetitionOwner
		}
		if competition.Status != models.CompetitionUpcoming && competition.Status != models.CompetitionOngoing {
			return ErrCompetitionNotCancellable
		}

		registrations, err := s.registrationRepo.ListByCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		for _, registration := range registrations {
			if _, err := s.accountRepo.LockByUserID(ctx, tx, registration.AccountID); err != nil {
				return err
			}
			entry := &models.LedgerEntry{
				AccountID:       registration.AccountID,
				Kind:            models.KindRefund,
				Pool:            models.PoolSpendable,
				Amount:          registration.PaidFee,
				Status:          models.LedgerCompleted,
				Reason:          &reason,
				RelatedEntity:   models.RelatedCompetition,
				RelatedEntityID: &competitionID,
			}
			if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.accountRepo.ApplyDelta(ctx, tx, registration.AccountID, models.PoolSpendable, registration.PaidFee); err != nil {
				return err
			}
			result.RefundedCount++
			result.TotalRefunded += registration.PaidFee
		}

		return s.competitionRepo.MarkCancelled(ctx, tx, competitionID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("competition cancelled",
		slog.Int("competition_id", competitionID),
		slog.Int("refunded_count", result.RefundedCount),
		slog.Int64("total_refunded", result.TotalRefunded),
		slog.String("reason", reason),
	)
	s.notifier.Notify("competitions", "competition_cancelled", map[string]interface{}{
		"competition_id": competitionID,
		"reason":         reason,
		"refunded_count": result.RefundedCount,
	})
	return &result, nil
}

// AutoUpdateStatusesByDates is the scheduler entry point: it advances
// upcoming competitions past their start time to ongoing (recalculating
// the pool) and ongoing ones past their end time to completed. Each
// competition is handled independently so one failure does not stall the
// rest.
func (s *CompetitionService) AutoUpdateStatusesByDates(ctx context.Context) {
	due, err := s.competitionRepo.ListDueForStatusUpdate(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to list competitions for status update", slog.String("error", err.Error()))
		return
	}

	for _, competition := range due {
		var next models.CompetitionStatus
		switch competition.Status {
		case models.CompetitionUpcoming:
			// Same gate as Start: a competition with no room credentials
			// cannot go live just because its start time passed.
			if competition.RoomID == nil || *competition.RoomID == "" {
				s.logger.Warn("competition past start time has no room credentials, skipping auto-start",
					slog.Int("competition_id", competition.ID),
				)
				continue
			}
			next = models.CompetitionOngoing
		case models.CompetitionOngoing:
			next = models.CompetitionCompleted
		default:
			continue
		}

		err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
			locked, err := s.competitionRepo.LockByID(ctx, tx, competition.ID)
			if err != nil {
				return err
			}
			if !models.IsValidCompetitionStatusTransition(locked.Status, next) {
				return nil
			}
			return s.competitionRepo.UpdateStatus(ctx, tx, competition.ID, next)
		})
		if err != nil {
			s.logger.Error("failed to auto-update competition status",
				slog.Int("competition_id", competition.ID),
				slog.String("next", string(next)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if next == models.CompetitionOngoing {
			if _, err := s.settlement.RecalculatePool(ctx, competition.ID); err != nil && !errors.Is(err, ErrPoolAlreadyRecalculated) {
				s.logger.Error("failed to recalculate pool on auto-start",
					slog.Int("competition_id", competition.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
		}
		s.logger.Info("competition status auto-updated",
			slog.Int("competition_id", competition.ID),
			slog.String("status", string(next)),
		)
	}
}
