package events

import (
	"math/big"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

const TypeStakeDeposited = "staking.deposited"

// StakeDeposited is emitted when an account locks STAR in the staking pool.
type StakeDeposited struct {
	Account [20]byte
	Amount  *big.Int
	Points  *big.Int
}

func (StakeDeposited) EventType() string { return TypeStakeDeposited }

func (e StakeDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeDeposited,
		Attributes: map[string]string{
			"account": hexAddr(e.Account),
			"amount":  formatAmount(e.Amount),
			"points":  formatAmount(e.Points),
		},
	}
}
