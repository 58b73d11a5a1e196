package types

import "math/big"

// Account holds the payment-currency balances tracked by the platform state.
// BalanceETH is denominated in wei; BalanceSTAR in the smallest STAR unit.
// Issued sale tokens live in the per-sale token ledger, not here.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceETH  *big.Int `json:"balanceEth"`
	BalanceSTAR *big.Int `json:"balanceStar"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceETH != nil {
		clone.BalanceETH = new(big.Int).Set(a.BalanceETH)
	}
	if a.BalanceSTAR != nil {
		clone.BalanceSTAR = new(big.Int).Set(a.BalanceSTAR)
	}
	return &clone
}
