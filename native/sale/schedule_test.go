package sale

import (
	"errors"
	"math/big"
	"testing"
)

func TestNewRateScheduleValidation(t *testing.T) {
	if _, err := NewRateSchedule(nil); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("empty schedule: got %v, want ErrInvalidSchedule", err)
	}
	if _, err := NewRateSchedule([]RatePoint{{Timestamp: 10, Rate: big.NewInt(0)}}); !errors.Is(err, ErrZeroRate) {
		t.Fatalf("zero rate: got %v, want ErrZeroRate", err)
	}
	if _, err := NewRateSchedule([]RatePoint{{Timestamp: 10, Rate: nil}}); !errors.Is(err, ErrZeroRate) {
		t.Fatalf("nil rate: got %v, want ErrZeroRate", err)
	}
	_, err := NewRateSchedule([]RatePoint{
		{Timestamp: 10, Rate: big.NewInt(1)},
		{Timestamp: 10, Rate: big.NewInt(2)},
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("duplicate timestamp: got %v, want ErrInvalidSchedule", err)
	}
}

func TestRateScheduleIsCopied(t *testing.T) {
	points := []RatePoint{{Timestamp: 10, Rate: big.NewInt(7)}}
	schedule, err := NewRateSchedule(points)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	points[0].Rate.SetInt64(999)
	if got := schedule.RateAt(0); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("schedule aliased caller memory: rate %s", got)
	}
}

func TestFurthestIndex(t *testing.T) {
	schedule, err := NewRateSchedule([]RatePoint{
		{Timestamp: 100, Rate: big.NewInt(2)},
		{Timestamp: 200, Rate: big.NewInt(3)},
		{Timestamp: 300, Rate: big.NewInt(5)},
	})
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}

	cases := []struct {
		name   string
		now    int64
		cursor int
		want   int
	}{
		{"before second entry", 150, 0, 0},
		{"exactly at activation", 200, 0, 1},
		{"skips a whole phase", 999, 0, 2},
		{"never regresses", 150, 2, 2},
		{"negative cursor clamps", 150, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := schedule.FurthestIndex(tc.now, tc.cursor); got != tc.want {
				t.Fatalf("FurthestIndex(%d, %d) = %d, want %d", tc.now, tc.cursor, got, tc.want)
			}
		})
	}
}

func TestRateAtOutOfRange(t *testing.T) {
	schedule, err := NewRateSchedule([]RatePoint{{Timestamp: 100, Rate: big.NewInt(2)}})
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	if got := schedule.RateAt(5); got.Sign() != 0 {
		t.Fatalf("out-of-range rate %s, want 0", got)
	}
	if got := schedule.TimestampAt(-1); got != 0 {
		t.Fatalf("out-of-range timestamp %d, want 0", got)
	}
}
