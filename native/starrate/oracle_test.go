package starrate

import (
	"errors"
	"math/big"
	"testing"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestNewValidatesRate(t *testing.T) {
	if _, err := New(addr(1), big.NewInt(0), big.NewInt(10)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("zero numerator: got %v, want ErrInvalidRate", err)
	}
	if _, err := New(addr(1), big.NewInt(1), nil); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("nil denominator: got %v, want ErrInvalidRate", err)
	}
	if _, err := New(addr(1), big.NewInt(1), big.NewInt(10)); err != nil {
		t.Fatalf("valid rate: %v", err)
	}
}

func TestSetRateOwnerOnly(t *testing.T) {
	owner := addr(1)
	oracle, err := New(owner, big.NewInt(1), big.NewInt(10))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := oracle.SetRate(addr(9), big.NewInt(2), big.NewInt(10)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("update by stranger: got %v, want ErrNotOwner", err)
	}
	if err := oracle.SetRate(owner, big.NewInt(2), big.NewInt(15)); err != nil {
		t.Fatalf("update: %v", err)
	}
	num, den, err := oracle.Rate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if num.Cmp(big.NewInt(2)) != 0 || den.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("rate %s/%s, want 2/15", num, den)
	}
}

func TestRateReturnsCopies(t *testing.T) {
	oracle, err := New(addr(1), big.NewInt(1), big.NewInt(10))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	num, _, _ := oracle.Rate()
	num.SetInt64(999)
	fresh, _, _ := oracle.Rate()
	if fresh.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("oracle aliased caller memory: numerator %s", fresh)
	}
}
