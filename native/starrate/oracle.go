package starrate

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrNotOwner rejects rate updates from anyone but the oracle owner.
	ErrNotOwner = errors.New("starrate: caller is not the owner")
	// ErrInvalidRate rejects a non-positive numerator or denominator.
	ErrInvalidRate = errors.New("starrate: rate components must be positive")
)

// Oracle publishes the STAR/ETH exchange rate as a fixed-point
// numerator/denominator pair: one STAR unit is worth numerator/denominator
// ETH units. Sale engines read it once per purchase; only the owner updates
// it.
type Oracle struct {
	mu          sync.RWMutex
	owner       [20]byte
	numerator   *big.Int
	denominator *big.Int
}

// New constructs an oracle with the initial rate.
func New(owner [20]byte, numerator, denominator *big.Int) (*Oracle, error) {
	if numerator == nil || numerator.Sign() <= 0 || denominator == nil || denominator.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	return &Oracle{
		owner:       owner,
		numerator:   new(big.Int).Set(numerator),
		denominator: new(big.Int).Set(denominator),
	}, nil
}

// Rate returns the current numerator/denominator pair.
func (o *Oracle) Rate() (numerator, denominator *big.Int, err error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return new(big.Int).Set(o.numerator), new(big.Int).Set(o.denominator), nil
}

// SetRate replaces the published rate. Owner only.
func (o *Oracle) SetRate(caller [20]byte, numerator, denominator *big.Int) error {
	if numerator == nil || numerator.Sign() <= 0 || denominator == nil || denominator.Sign() <= 0 {
		return ErrInvalidRate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if caller != o.owner {
		return ErrNotOwner
	}
	o.numerator = new(big.Int).Set(numerator)
	o.denominator = new(big.Int).Set(denominator)
	return nil
}
