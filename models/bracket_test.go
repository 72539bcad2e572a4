package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageRoundNumber(t *testing.T) {
	n, ok := StageRegistration.RoundNumber()
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	n, ok = StageRound(3).RoundNumber()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = StageFinale.RoundNumber()
	assert.False(t, ok)
	_, ok = TournamentStage("round_zero").RoundNumber()
	assert.False(t, ok)
	_, ok = TournamentStage("round_0").RoundNumber()
	assert.False(t, ok)
}

func TestIsValidStageTransition(t *testing.T) {
	tests := []struct {
		current TournamentStage
		next    TournamentStage
		want    bool
	}{
		{StageRegistration, StageRound(1), true},
		{StageRound(1), StageRound(2), true},
		{StageRound(2), StageRound(4), false},
		{StageRound(2), StageRound(1), false},
		{StageRound(1), StageFinale, true},
		// a tournament small enough for one room skips numbered rounds
		{StageRegistration, StageFinale, true},
		{StageFinale, StageCompleted, true},
		{StageRound(1), StageCompleted, false},
		{StageRegistration, StageCancelled, true},
		{StageRound(3), StageCancelled, true},
		{StageFinale, StageCancelled, true},
		{StageCompleted, StageCancelled, false},
		{StageCancelled, StageRound(1), false},
		{StageCompleted, StageFinale, false},
		{StageFinale, StageFinale, true},
		// terminal stages stay terminal even against themselves
		{StageCancelled, StageCancelled, false},
		{StageCompleted, StageCompleted, false},
	}

	for _, tc := range tests {
		got := IsValidStageTransition(tc.current, tc.next)
		assert.Equal(t, tc.want, got, "%s -> %s", tc.current, tc.next)
	}
}

func TestTeamLeader(t *testing.T) {
	team := Team{MemberIDs: []int64{42, 7, 9}}
	leader, ok := team.Leader()
	assert.True(t, ok)
	assert.Equal(t, 42, leader)

	_, ok = (&Team{}).Leader()
	assert.False(t, ok)
}

func TestRoomHasTeam(t *testing.T) {
	room := Room{AssignedTeamIDs: []int64{3, 5}}
	assert.True(t, room.HasTeam(5))
	assert.False(t, room.HasTeam(4))
}
