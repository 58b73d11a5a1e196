package sale

import (
	"math/big"
	"testing"
)

func TestQuoteETH(t *testing.T) {
	if got := quoteETH(big.NewInt(6), big.NewInt(5)); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("quoteETH(6, 5) = %s, want 30", got)
	}
	if got := quoteETH(nil, big.NewInt(5)); got.Sign() != 0 {
		t.Fatalf("quoteETH(nil, 5) = %s, want 0", got)
	}
}

func TestQuoteSTARDividesLast(t *testing.T) {
	// 7 STAR at 2/3 and rate 5: 7*2*5 = 70, /3 = 23 (truncated). Dividing
	// before multiplying would lose the fraction entirely.
	got, err := quoteSTAR(big.NewInt(7), big.NewInt(5), big.NewInt(2), big.NewInt(3))
	if err != nil {
		t.Fatalf("quoteSTAR: %v", err)
	}
	if got.Cmp(big.NewInt(23)) != 0 {
		t.Fatalf("quoteSTAR = %s, want 23", got)
	}
}

func TestQuoteSTARRejectsNonPositiveRate(t *testing.T) {
	if _, err := quoteSTAR(big.NewInt(1), big.NewInt(5), big.NewInt(0), big.NewInt(3)); err == nil {
		t.Fatal("expected error for zero numerator")
	}
	if _, err := quoteSTAR(big.NewInt(1), big.NewInt(5), big.NewInt(2), big.NewInt(0)); err == nil {
		t.Fatal("expected error for zero denominator")
	}
	got, err := quoteSTAR(big.NewInt(0), big.NewInt(5), big.NewInt(0), big.NewInt(0))
	if err != nil || got.Sign() != 0 {
		t.Fatalf("zero payment short-circuits: got %s, %v", got, err)
	}
}

func TestClampToCap(t *testing.T) {
	cases := []struct {
		name        string
		sold        int64
		cap         int64
		requested   int64
		payment     int64
		wantGranted int64
		wantExcess  int64
	}{
		{"fits entirely", 0, 100, 60, 12, 60, 0},
		{"exactly fills", 40, 100, 60, 12, 60, 0},
		{"overshoots by a third", 0, 100, 150, 30, 100, 10},
		{"cap already hit", 100, 100, 50, 10, 0, 10},
		{"zero request", 0, 100, 0, 10, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			granted, excess := clampToCap(
				big.NewInt(tc.sold), big.NewInt(tc.cap),
				big.NewInt(tc.requested), big.NewInt(tc.payment))
			if granted.Cmp(big.NewInt(tc.wantGranted)) != 0 {
				t.Fatalf("granted %s, want %d", granted, tc.wantGranted)
			}
			if excess.Cmp(big.NewInt(tc.wantExcess)) != 0 {
				t.Fatalf("excess %s, want %d", excess, tc.wantExcess)
			}
		})
	}
}

func TestClampToCapTruncatesRefund(t *testing.T) {
	// 7 payment units requesting 7 tokens with 5 denied: 7*5/7 = 5 exactly,
	// but 10 payment for 3 requested with 1 denied truncates 10*1/3 to 3.
	_, excess := clampToCap(big.NewInt(98), big.NewInt(100), big.NewInt(3), big.NewInt(10))
	if excess.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("excess %s, want truncated 3", excess)
	}
}
