package sale

import (
	"fmt"
	"math/big"
	"strings"
)

// Token symbols accepted by the settlement engine. ETH is the base currency,
// STAR the secondary currency converted through the rate oracle.
const (
	TokenETH  = "ETH"
	TokenSTAR = "STAR"
)

// NormalizeToken returns the canonical uppercase symbol for a supported
// payment currency.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case TokenETH, TokenSTAR:
		return trimmed, nil
	default:
		return "", fmt.Errorf("sale: unsupported payment token %s", symbol)
	}
}

// Status is the lifecycle phase of a sale instance.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusFinalizedSuccess
	StatusFinalizedFailure
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusFinalizedSuccess:
		return "finalized_success"
	case StatusFinalizedFailure:
		return "finalized_failure"
	default:
		return "unknown"
	}
}

// Config is the write-once sale configuration. Caps and the schedule are
// validated during Initialize and never mutated afterwards.
type Config struct {
	StartTime    int64       `json:"startTime"`
	EndTime      int64       `json:"endTime"`
	SoftCap      *big.Int    `json:"softCap"`
	CrowdsaleCap *big.Int    `json:"crowdsaleCap"`
	ETHAccepted  bool        `json:"ethAccepted"`
	Minting      bool        `json:"minting"`
	TokenOwner   [20]byte    `json:"tokenOwner"`
	Wallet       [20]byte    `json:"wallet"`
	Schedule     []RatePoint `json:"schedule"`
}

func (c Config) validate() error {
	if c.StartTime >= c.EndTime {
		return fmt.Errorf("sale: start time must precede end time")
	}
	if c.SoftCap == nil || c.SoftCap.Sign() <= 0 {
		return fmt.Errorf("sale: soft cap must be positive")
	}
	if c.CrowdsaleCap == nil || c.CrowdsaleCap.Sign() <= 0 {
		return fmt.Errorf("sale: crowdsale cap must be positive")
	}
	if c.SoftCap.Cmp(c.CrowdsaleCap) >= 0 {
		return fmt.Errorf("sale: soft cap must be strictly below the crowdsale cap")
	}
	schedule, err := NewRateSchedule(c.Schedule)
	if err != nil {
		return err
	}
	if schedule.points[0].Timestamp > c.StartTime {
		return fmt.Errorf("%w: first entry activates after the sale start", ErrInvalidSchedule)
	}
	return nil
}

func (c Config) clone() Config {
	clone := c
	if c.SoftCap != nil {
		clone.SoftCap = new(big.Int).Set(c.SoftCap)
	}
	if c.CrowdsaleCap != nil {
		clone.CrowdsaleCap = new(big.Int).Set(c.CrowdsaleCap)
	}
	clone.Schedule = make([]RatePoint, len(c.Schedule))
	for i, p := range c.Schedule {
		clone.Schedule[i] = p.clone()
	}
	return clone
}

// Remainder is the single overshoot-remainder slot: the excess payment held
// briefly when the final purchase pushes past the crowdsale cap. It is
// consumed exactly once by the immediate refund in the same purchase.
type Remainder struct {
	Account [20]byte `json:"account"`
	ETH     *big.Int `json:"eth"`
	STAR    *big.Int `json:"star"`
}

// Record is the persisted runtime state of a sale instance. The coordinator
// exclusively owns every counter and flag in here.
type Record struct {
	ID             [32]byte   `json:"-"`
	Config         Config     `json:"config"`
	TokensSold     *big.Int   `json:"tokensSold"`
	RaisedETH      *big.Int   `json:"raisedEth"`
	RaisedSTAR     *big.Int   `json:"raisedStar"`
	EscrowedETH    *big.Int   `json:"escrowedEth"`
	EscrowedSTAR   *big.Int   `json:"escrowedStar"`
	SoftCapReached bool       `json:"softCapReached"`
	RateIndex      int        `json:"rateIndex"`
	Paused         bool       `json:"paused"`
	Finalized      bool       `json:"finalized"`
	Successful     bool       `json:"successful"`
	Remainder      *Remainder `json:"remainder,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Config = r.Config.clone()
	clone.TokensSold = cloneBigInt(r.TokensSold)
	clone.RaisedETH = cloneBigInt(r.RaisedETH)
	clone.RaisedSTAR = cloneBigInt(r.RaisedSTAR)
	clone.EscrowedETH = cloneBigInt(r.EscrowedETH)
	clone.EscrowedSTAR = cloneBigInt(r.EscrowedSTAR)
	if r.Remainder != nil {
		rem := *r.Remainder
		rem.ETH = cloneBigInt(r.Remainder.ETH)
		rem.STAR = cloneBigInt(r.Remainder.STAR)
		clone.Remainder = &rem
	}
	return &clone
}

// StatusAt derives the lifecycle phase as of the supplied instant.
func (r *Record) StatusAt(now int64) Status {
	if r.Finalized {
		if r.Successful {
			return StatusFinalizedSuccess
		}
		return StatusFinalizedFailure
	}
	if now < r.Config.StartTime {
		return StatusPending
	}
	return StatusActive
}

// Ended reports whether the sale window has elapsed or the crowdsale cap has
// been exhausted. Reaching the cap ends the sale early but finalization must
// still be invoked explicitly.
func (r *Record) Ended(now int64) bool {
	if now >= r.Config.EndTime {
		return true
	}
	return r.TokensSold != nil && r.Config.CrowdsaleCap != nil &&
		r.TokensSold.Cmp(r.Config.CrowdsaleCap) >= 0
}

// Deposit is an investor's escrowed contribution, recorded only while the
// soft cap is unreached. Balances are zeroed exactly once by a refund
// withdrawal after a failed sale.
type Deposit struct {
	SaleID  [32]byte `json:"-"`
	Account [20]byte `json:"-"`
	ETH     *big.Int `json:"eth"`
	STAR    *big.Int `json:"star"`
}

// Clone returns a deep copy of the deposit.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	clone.ETH = cloneBigInt(d.ETH)
	clone.STAR = cloneBigInt(d.STAR)
	return &clone
}

// Receipt summarises the settlement of a single purchase.
type Receipt struct {
	Tokens       *big.Int
	AcceptedETH  *big.Int
	AcceptedSTAR *big.Int
	RefundedETH  *big.Int
	RefundedSTAR *big.Int
	Rate         *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
