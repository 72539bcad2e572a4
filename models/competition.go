package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type CompetitionMode string

const (
	ModeSolo  CompetitionMode = "solo"
	ModeDuo   CompetitionMode = "duo"
	ModeSquad CompetitionMode = "squad"
)

func (m CompetitionMode) Valid() bool {
	return m == ModeSolo || m == ModeDuo || m == ModeSquad
}

// TeamSize returns the number of players per slot for the mode.
func (m CompetitionMode) TeamSize() int {
	switch m {
	case ModeDuo:
		return 2
	case ModeSquad:
		return 4
	default:
		return 1
	}
}

type CompetitionStatus string

const (
	CompetitionUpcoming  CompetitionStatus = "upcoming"
	CompetitionOngoing   CompetitionStatus = "ongoing"
	CompetitionCompleted CompetitionStatus = "completed"
	CompetitionCancelled CompetitionStatus = "cancelled"
)

// IsValidCompetitionStatusTransition is the transition table for the
// scheduled-competition lifecycle.
func IsValidCompetitionStatusTransition(current, next CompetitionStatus) bool {
	allowed := map[CompetitionStatus][]CompetitionStatus{
		CompetitionUpcoming:  {CompetitionOngoing, CompetitionCancelled},
		CompetitionOngoing:   {CompetitionCompleted, CompetitionCancelled},
		CompetitionCompleted: {},
		CompetitionCancelled: {},
	}
	for _, s := range allowed[current] {
		if s == next {
			return true
		}
	}
	return false
}

// PrizeDistribution maps a rank (1-based) to the prize amount for that
// rank. Stored as JSONB.
type PrizeDistribution map[int]int64

func (d PrizeDistribution) Total() int64 {
	var sum int64
	for _, amount := range d {
		sum += amount
	}
	return sum
}

// MarshalJSON keys must be strings in JSON; ranks round-trip through
// string keys.
func (d PrizeDistribution) MarshalJSON() ([]byte, error) {
	m := make(map[string]int64, len(d))
	for rank, amount := range d {
		m[fmt.Sprintf("%d", rank)] = amount
	}
	return json.Marshal(m)
}

func (d *PrizeDistribution) UnmarshalJSON(data []byte) error {
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(PrizeDistribution, len(m))
	for k, amount := range m {
		var rank int
		if _, err := fmt.Sscanf(k, "%d", &rank); err != nil {
			return fmt.Errorf("invalid prize rank %q: %w", k, err)
		}
		out[rank] = amount
	}
	*d = out
	return nil
}

// Competition is a fixed-size, fixed-start scheduled contest.
// CurrentPrizePool is provisionally estimated at creation assuming full
// capacity and recalculated exactly once from the real joined count when
// the competition goes ongoing.
type Competition struct {
	ID                 int               `json:"id" db:"id"`
	Name               string            `json:"name" db:"name"`
	Game               string            `json:"game" db:"game"`
	OrganizerID        int               `json:"organizer_id" db:"organizer_id"`
	Mode               CompetitionMode   `json:"mode" db:"mode"`
	Status             CompetitionStatus `json:"status" db:"status"`
	Capacity           int               `json:"capacity" db:"capacity"`
	EntryFee           int64             `json:"entry_fee" db:"entry_fee"`
	JoinedCount        int               `json:"joined_count" db:"joined_count"`
	CurrentPrizePool   int64             `json:"current_prize_pool" db:"current_prize_pool"`
	DistributionJSON   []byte            `json:"-" db:"prize_distribution"`
	StartTime          time.Time         `json:"start_time" db:"start_time"`
	EndTime            time.Time         `json:"end_time" db:"end_time"`
	RoomID             *string           `json:"room_id,omitempty" db:"room_id"`
	RoomPassword       *string           `json:"-" db:"room_password"`
	PoolRecalculatedAt *time.Time        `json:"pool_recalculated_at,omitempty" db:"pool_recalculated_at"`
	WinnerDeclaredAt   *time.Time        `json:"winner_declared_at,omitempty" db:"winner_declared_at"`
	CancelReason       *string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`

	// Populated by services, not mapped directly.
	PrizeDistribution PrizeDistribution `json:"prize_distribution,omitempty" db:"-"`
	Registrations     []Registration    `json:"registrations,omitempty" db:"-"`
}

// DecodeDistribution parses the stored JSONB into PrizeDistribution.
func (c *Competition) DecodeDistribution() error {
	if len(c.DistributionJSON) == 0 {
		c.PrizeDistribution = PrizeDistribution{}
		return nil
	}
	return json.Unmarshal(c.DistributionJSON, &c.PrizeDistribution)
}

// Registration links one account to a competition. For duo/squad modes it
// carries the team name the account registered under; members of one team
// share the same team_name on the same competition.
type Registration struct {
	ID            int       `json:"id" db:"id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	AccountID     int       `json:"account_id" db:"account_id"`
	TeamName      *string   `json:"team_name,omitempty" db:"team_name"`
	PaidFee       int64     `json:"paid_fee" db:"paid_fee"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
