package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khelarena/economy-engine/models"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEntryService(e *env) *EntryService {
	s := NewEntryService(e.tx, e.competitions, e.regs, e.accounts, e.ledger,
		newTestLogger(), 2*time.Minute, 30*time.Minute, 80)
	s.now = func() time.Time { return testBase }
	return s
}

func addUpcomingCompetition(e *env, mode models.CompetitionMode, capacity int, fee int64) *models.Competition {
	c := &models.Competition{
		Name:             "weekend cup",
		Game:             "battle_royale",
		OrganizerID:      1,
		Mode:             mode,
		Status:           models.CompetitionUpcoming,
		Capacity:         capacity,
		EntryFee:         fee,
		CurrentPrizePool: int64(capacity) * fee * 80 / 100,
		StartTime:        testBase.Add(2 * time.Hour),
		EndTime:          testBase.Add(4 * time.Hour),
	}
	if err := e.competitions.Create(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

func TestJoinEscrowsEntryFee(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	res, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(50), res.PaidFee)
	assert.Equal(t, int64(150), res.NewSpendable)

	acc, err := e.accounts.GetByUserID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(150), acc.SpendableBalance)

	stored, err := e.competitions.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.JoinedCount)
	assert.Equal(t, c.CurrentPrizePool+40, stored.CurrentPrizePool)

	history, err := e.ledger.ListByAccount(context.Background(), 10, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.KindEntryFee, history[0].Kind)
	assert.Equal(t, int64(-50), history[0].Amount)
	assert.Equal(t, models.LedgerCompleted, history[0].Status)
	assert.Equal(t, models.PoolSpendable, history[0].Pool)
}

func TestJoinTwiceSameCompetition(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), 10, c.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	// the failed attempt must not debit anything
	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(150), acc.SpendableBalance)
	history, _ := e.ledger.ListByAccount(context.Background(), 10, 10, 0)
	assert.Len(t, history, 1)
}

func TestJoinFullCompetition(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 2, 50)
	e.addAccount(10, 100, 0)
	e.addAccount(11, 100, 0)
	e.addAccount(12, 100, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), 11, c.ID, nil)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), 12, c.ID, nil)
	assert.ErrorIs(t, err, ErrCompetitionFull)

	acc, _ := e.accounts.GetByUserID(context.Background(), 12)
	assert.Equal(t, int64(100), acc.SpendableBalance)
}

func TestJoinWindowClosed(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	// 90 seconds before start, inside the 2 minute cutoff
	svc.now = func() time.Time { return c.StartTime.Add(-90 * time.Second) }

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	assert.ErrorIs(t, err, ErrJoinWindowClosed)
}

func TestJoinChecks(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)

	e.addAccount(20, 10, 500)
	_, err := svc.Join(context.Background(), 20, c.ID, nil)
	assert.ErrorIs(t, err, ErrInsufficientSpendable, "withdrawable funds must not cover an entry fee")

	e.addAccount(21, 200, 0)
	e.store.db.accounts[21].Banned = true
	_, err = svc.Join(context.Background(), 21, c.ID, nil)
	assert.ErrorIs(t, err, ErrAccountBanned)

	e.addAccount(22, 200, 0)
	e.store.db.accounts[22].Frozen = true
	_, err = svc.Join(context.Background(), 22, c.ID, nil)
	assert.ErrorIs(t, err, ErrAccountFrozen)

	e.addAccount(23, 200, 0)
	_, err = svc.Join(context.Background(), 23, 999, nil)
	assert.ErrorIs(t, err, ErrCompetitionNotFound)

	ongoing := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.store.db.competitions[ongoing.ID].Status = models.CompetitionOngoing
	_, err = svc.Join(context.Background(), 23, ongoing.ID, nil)
	assert.ErrorIs(t, err, ErrCompetitionNotJoinable)
}

func TestJoinTeamModeRequiresTeamName(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeDuo, 4, 50)
	e.addAccount(10, 200, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)

	team := "alpha"
	res, err := svc.Join(context.Background(), 10, c.ID, &team)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.PaidFee)

	reg, err := e.regs.FindByAccountAndCompetition(context.Background(), nil, 10, c.ID)
	require.NoError(t, err)
	require.NotNil(t, reg.TeamName)
	assert.Equal(t, "alpha", *reg.TeamName)
}

func TestExitRefundsFee(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)

	res, err := svc.Exit(context.Background(), 10, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.RefundedFee)
	assert.Equal(t, int64(200), res.NewSpendable)

	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(200), acc.SpendableBalance)

	stored, _ := e.competitions.GetByID(context.Background(), c.ID)
	assert.Equal(t, 0, stored.JoinedCount)
	assert.Equal(t, c.CurrentPrizePool, stored.CurrentPrizePool)

	// the escrow debit stays on the ledger next to the refund credit
	history, _ := e.ledger.ListByAccount(context.Background(), 10, 10, 0)
	require.Len(t, history, 2)
	assert.Equal(t, models.KindRefund, history[0].Kind)
	assert.Equal(t, int64(50), history[0].Amount)
	assert.Equal(t, models.KindEntryFee, history[1].Kind)

	_, err = svc.Exit(context.Background(), 10, c.ID)
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestExitTeamFeeNotRefundable(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSquad, 8, 50)
	e.addAccount(10, 200, 0)

	team := "bravo"
	_, err := svc.Join(context.Background(), 10, c.ID, &team)
	require.NoError(t, err)

	_, err = svc.Exit(context.Background(), 10, c.ID)
	assert.ErrorIs(t, err, ErrTeamFeeNotRefundable)

	acc, _ := e.accounts.GetByUserID(context.Background(), 10)
	assert.Equal(t, int64(150), acc.SpendableBalance)
}

func TestExitWindowClosed(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)

	// 10 minutes before start, inside the 30 minute exit cutoff
	svc.now = func() time.Time { return c.StartTime.Add(-10 * time.Minute) }

	_, err = svc.Exit(context.Background(), 10, c.ID)
	assert.ErrorIs(t, err, ErrExitWindowClosed)
}

func TestExitNotAllowedOnceOngoing(t *testing.T) {
	e := newEnv()
	svc := newTestEntryService(e)
	c := addUpcomingCompetition(e, models.ModeSolo, 4, 50)
	e.addAccount(10, 200, 0)

	_, err := svc.Join(context.Background(), 10, c.ID, nil)
	require.NoError(t, err)

	e.store.db.competitions[c.ID].Status = models.CompetitionOngoing
	_, err = svc.Exit(context.Background(), 10, c.ID)
	assert.ErrorIs(t, err, ErrExitNotAllowed)
}
