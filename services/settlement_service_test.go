package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khelarena/economy-engine/models"
)

func newTestSettlementService(e *env) *SettlementService {
	s := NewSettlementService(e.tx, e.competitions, e.regs, e.accounts, e.ledger,
		e.notifier, newTestLogger(), 30*time.Minute, 80, 10)
	s.now = func() time.Time { return testBase }
	return s
}

// addSettledCompetition stores a completed competition whose dispute
// window has already elapsed at testBase.
func addSettledCompetition(e *env, mode models.CompetitionMode, pool int64, dist models.PrizeDistribution) *models.Competition {
	c := &models.Competition{
		Name:              "finished cup",
		Game:              "battle_royale",
		OrganizerID:       1,
		Mode:              mode,
		Status:            models.CompetitionCompleted,
		Capacity:          4,
		EntryFee:          50,
		JoinedCount:       1,
		CurrentPrizePool:  pool,
		PrizeDistribution: dist,
		StartTime:         testBase.Add(-4 * time.Hour),
		EndTime:           testBase.Add(-2 * time.Hour),
	}
	if err := e.competitions.Create(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

func addRegistration(e *env, competitionID, accountID int, teamName *string, paidFee int64) {
	reg := &models.Registration{
		CompetitionID: competitionID,
		AccountID:     accountID,
		TeamName:      teamName,
		PaidFee:       paidFee,
	}
	if err := e.regs.Create(context.Background(), nil, reg); err != nil {
		panic(err)
	}
}

func TestRecalculatePool(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)

	c := &models.Competition{
		Name:             "cup",
		Game:             "battle_royale",
		OrganizerID:      1,
		Mode:             models.ModeSolo,
		Status:           models.CompetitionOngoing,
		Capacity:         4,
		EntryFee:         50,
		JoinedCount:      3,
		CurrentPrizePool: 160,
		StartTime:        testBase,
		EndTime:          testBase.Add(2 * time.Hour),
	}
	require.NoError(t, e.competitions.Create(context.Background(), c))

	pool, err := svc.RecalculatePool(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), pool, "3 joined x 50 fee x 80%")

	stored, _ := e.competitions.GetByID(context.Background(), c.ID)
	assert.Equal(t, int64(120), stored.CurrentPrizePool)
	require.NotNil(t, stored.PoolRecalculatedAt)

	_, err = svc.RecalculatePool(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrPoolAlreadyRecalculated)
	stored, _ = e.competitions.GetByID(context.Background(), c.ID)
	assert.Equal(t, int64(120), stored.CurrentPrizePool)
}

// Escrow lifecycle across join, exit, recalculation and settlement:
// capacity 2 at fee 50 opens with a provisional pool of 80; one join and
// one exit later the recalculated pool is 40, the survivor collects it
// and the organizer takes 10% of the one collected fee.
func TestSettlementAfterJoinAndExit(t *testing.T) {
	e := newEnv()
	entry := newTestEntryService(e)
	svc := newTestSettlementService(e)

	c := addUpcomingCompetition(e, models.ModeSolo, 2, 50)
	assert.Equal(t, int64(80), c.CurrentPrizePool)
	e.store.db.competitions[c.ID].PrizeDistribution = models.PrizeDistribution{1: 40}
	e.addAccount(1, 0, 0) // organizer
	e.addAccount(10, 100, 0)
	e.addAccount(11, 100, 0)

	_, err := entry.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)
	_, err = entry.Join(context.Background(), 11, c.ID, nil)
	require.NoError(t, err)
	_, err = entry.Exit(context.Background(), 11, c.ID)
	require.NoError(t, err)

	pool, err := svc.RecalculatePool(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), pool)

	e.store.db.competitions[c.ID].Status = models.CompetitionCompleted
	e.store.db.competitions[c.ID].EndTime = testBase.Add(-time.Hour)

	res, err := svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.DistributedTotal)
	assert.Equal(t, int64(5), res.Commission)
	assert.Equal(t, 1, res.WinnerCount)

	winner, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(50), winner.SpendableBalance, "entry fee stays spent")
	assert.Equal(t, int64(40), winner.WithdrawableBalance, "prize lands withdrawable")

	organizer, _ := e.accounts.GetByUserID(context.Background(), 1)
	assert.Equal(t, int64(5), organizer.WithdrawableBalance)

	require.Len(t, e.notifier.events, 1)
	assert.Equal(t, "competitions", e.notifier.events[0].Topic)
	assert.Equal(t, "winners_declared", e.notifier.events[0].Event)
}

func TestDeclareWinnersChecks(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeSolo, 40, models.PrizeDistribution{1: 40})
	e.addAccount(1, 0, 0)
	e.addAccount(10, 0, 0)
	addRegistration(e, c.ID, 10, nil, 50)

	_, err := svc.DeclareWinners(context.Background(), c.ID, 2, map[int]int{10: 1}, nil)
	assert.ErrorIs(t, err, ErrNotCompetitionOwner)

	_, err = svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 3}, nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution, "rank 3 has no distribution slot")

	_, err = svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{99: 1}, nil)
	assert.ErrorIs(t, err, ErrNotJoined, "winner must be a registrant")

	_, err = svc.DeclareWinners(context.Background(), c.ID, 1, nil, nil)
	assert.ErrorIs(t, err, ErrPositionsRequired)

	e.store.db.competitions[c.ID].Status = models.CompetitionOngoing
	_, err = svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	assert.ErrorIs(t, err, ErrCompetitionNotCompleted)
	e.store.db.competitions[c.ID].Status = models.CompetitionCompleted

	// nothing was credited by any failed attempt
	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(0), acc.WithdrawableBalance)
}

func TestDeclareWinnersDisputeWindow(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeSolo, 40, models.PrizeDistribution{1: 40})
	e.addAccount(1, 0, 0)
	e.addAccount(10, 0, 0)
	addRegistration(e, c.ID, 10, nil, 50)

	// competition ended 10 minutes ago, window is 30 minutes
	e.store.db.competitions[c.ID].EndTime = testBase.Add(-10 * time.Minute)

	_, err := svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	assert.ErrorIs(t, err, ErrDisputeWindowActive)
}

func TestDeclareWinnersTwice(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeSolo, 40, models.PrizeDistribution{1: 40})
	e.addAccount(1, 0, 0)
	e.addAccount(10, 0, 0)
	addRegistration(e, c.ID, 10, nil, 50)

	_, err := svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	require.NoError(t, err)

	_, err = svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	assert.ErrorIs(t, err, ErrWinnersAlreadyDeclared)

	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(40), acc.WithdrawableBalance, "prize paid exactly once")
}

func TestDeclareWinnersOverAllocation(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeSolo, 40, models.PrizeDistribution{1: 100})
	e.addAccount(1, 0, 0)
	e.addAccount(10, 0, 0)
	addRegistration(e, c.ID, 10, nil, 50)

	_, err := svc.DeclareWinners(context.Background(), c.ID, 1, map[int]int{10: 1}, nil)
	assert.ErrorIs(t, err, ErrPrizeOverAllocation)

	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(0), acc.WithdrawableBalance)
	stored, _ := e.competitions.GetByID(context.Background(), c.ID)
	assert.Nil(t, stored.WinnerDeclaredAt)
}

func TestDeclareWinnersTeamSplit(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeSquad, 100, models.PrizeDistribution{1: 100})
	e.store.db.competitions[c.ID].JoinedCount = 3
	e.addAccount(1, 0, 0)
	e.addAccount(10, 0, 0)
	e.addAccount(11, 0, 0)
	e.addAccount(12, 0, 0)

	team := "alpha"
	addRegistration(e, c.ID, 10, &team, 50)
	addRegistration(e, c.ID, 11, &team, 50)
	addRegistration(e, c.ID, 12, &team, 50)

	res, err := svc.DeclareWinners(context.Background(), c.ID, 1, nil, map[string]int{"alpha": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.DistributedTotal)
	assert.Equal(t, 3, res.WinnerCount)

	// 100 / 3 = 33 each, remainder 1 to the first registered member
	leader, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(34), leader.WithdrawableBalance)
	for _, id := range []int{11, 12} {
		member, _ := e.accounts.GetByUserID(context.Background(), id)
		assert.Equal(t, int64(33), member.WithdrawableBalance)
	}
}

func TestDeclareWinnersUnknownTeam(t *testing.T) {
	e := newEnv()
	svc := newTestSettlementService(e)
	c := addSettledCompetition(e, models.ModeDuo, 100, models.PrizeDistribution{1: 100})
	e.addAccount(1, 0, 0)

	_, err := svc.DeclareWinners(context.Background(), c.ID, 1, nil, map[string]int{"ghosts": 1})
	assert.ErrorIs(t, err, ErrNotJoined)
}
