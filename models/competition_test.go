package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompetitionStatusTransitions(t *testing.T) {
	tests := []struct {
		current CompetitionStatus
		next    CompetitionStatus
		want    bool
	}{
		{CompetitionUpcoming, CompetitionOngoing, true},
		{CompetitionUpcoming, CompetitionCancelled, true},
		{CompetitionUpcoming, CompetitionCompleted, false},
		{CompetitionOngoing, CompetitionCompleted, true},
		{CompetitionOngoing, CompetitionCancelled, true},
		{CompetitionOngoing, CompetitionUpcoming, false},
		{CompetitionCompleted, CompetitionCancelled, false},
		{CompetitionCancelled, CompetitionOngoing, false},
	}
	for _, tc := range tests {
		got := IsValidCompetitionStatusTransition(tc.current, tc.next)
		assert.Equal(t, tc.want, got, "%s -> %s", tc.current, tc.next)
	}
}

func TestPrizeDistributionRoundTrip(t *testing.T) {
	dist := PrizeDistribution{1: 100, 2: 40, 3: 20}
	assert.Equal(t, int64(160), dist.Total())

	data, err := dist.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"1":100`)

	c := Competition{DistributionJSON: data}
	require.NoError(t, c.DecodeDistribution())
	assert.Equal(t, dist, c.PrizeDistribution)

	empty := Competition{}
	require.NoError(t, empty.DecodeDistribution())
	assert.Empty(t, empty.PrizeDistribution)

	bad := Competition{DistributionJSON: []byte(`{"first":100}`)}
	assert.Error(t, bad.DecodeDistribution())
}

func TestModeTeamSize(t *testing.T) {
	assert.Equal(t, 1, ModeSolo.TeamSize())
	assert.Equal(t, 2, ModeDuo.TeamSize())
	assert.Equal(t, 4, ModeSquad.TeamSize())
	assert.False(t, CompetitionMode("trio").Valid())
}
