package sale

import (
	"fmt"
	"math/big"
)

// RatePoint activates a unit price at a timestamp. Rates are issued-asset
// units per base-currency unit in smallest denominations.
type RatePoint struct {
	Timestamp int64    `json:"timestamp"`
	Rate      *big.Int `json:"rate"`
}

func (p RatePoint) clone() RatePoint {
	clone := p
	if p.Rate != nil {
		clone.Rate = new(big.Int).Set(p.Rate)
	}
	return clone
}

// RateSchedule is an ordered table of rate activations. The engine keeps the
// cursor in the persisted sale record; the schedule itself is immutable and
// answers lookups relative to that cursor.
type RateSchedule struct {
	points []RatePoint
}

// NewRateSchedule validates and copies the supplied points. Timestamps must be
// strictly increasing and every rate strictly positive.
func NewRateSchedule(points []RatePoint) (*RateSchedule, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: schedule is empty", ErrInvalidSchedule)
	}
	copied := make([]RatePoint, len(points))
	for i, p := range points {
		if p.Rate == nil || p.Rate.Sign() <= 0 {
			return nil, fmt.Errorf("%w: entry %d", ErrZeroRate, i)
		}
		if i > 0 && p.Timestamp <= points[i-1].Timestamp {
			return nil, fmt.Errorf("%w: timestamps must be strictly increasing", ErrInvalidSchedule)
		}
		copied[i] = p.clone()
	}
	return &RateSchedule{points: copied}, nil
}

// Len returns the number of schedule entries.
func (s *RateSchedule) Len() int { return len(s.points) }

// RateAt returns the rate stored at the supplied cursor index.
func (s *RateSchedule) RateAt(index int) *big.Int {
	if index < 0 || index >= len(s.points) {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.points[index].Rate)
}

// TimestampAt returns the activation timestamp at the supplied cursor index.
func (s *RateSchedule) TimestampAt(index int) int64 {
	if index < 0 || index >= len(s.points) {
		return 0
	}
	return s.points[index].Timestamp
}

// FurthestIndex scans forward from the cursor and returns the largest index
// whose timestamp has elapsed. The result never regresses below the cursor,
// which keeps repeated refreshes idempotent.
func (s *RateSchedule) FurthestIndex(now int64, cursor int) int {
	if cursor < 0 {
		cursor = 0
	}
	idx := cursor
	for i := cursor + 1; i < len(s.points); i++ {
		if s.points[i].Timestamp > now {
			break
		}
		idx = i
	}
	return idx
}
