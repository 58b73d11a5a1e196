package sale

import (
	"fmt"
	"math/big"
)

// quoteETH converts a base-currency payment into issued-asset units at the
// supplied schedule rate. Both values are in smallest denominations.
func quoteETH(amount, rate *big.Int) *big.Int {
	if amount == nil || rate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(amount, rate)
}

// quoteSTAR converts a secondary-currency payment through the oracle's
// numerator/denominator pair before applying the schedule rate. The division
// happens last and truncates toward zero so no fractional unit is credited.
func quoteSTAR(amount, rate, numerator, denominator *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if numerator == nil || numerator.Sign() <= 0 || denominator == nil || denominator.Sign() <= 0 {
		return nil, fmt.Errorf("sale: conversion rate must be positive")
	}
	tokens := new(big.Int).Mul(amount, numerator)
	tokens.Mul(tokens, rate)
	return tokens.Quo(tokens, denominator), nil
}

// clampToCap limits a token request to the remaining crowdsale capacity. When
// the request overshoots, the granted amount is the exact remainder and the
// returned excess is the proportional share of the payment that must flow back
// to the buyer.
func clampToCap(sold, cap, requested, payment *big.Int) (granted, excess *big.Int) {
	granted = cloneBigInt(requested)
	excess = big.NewInt(0)
	if requested == nil || requested.Sign() == 0 {
		return big.NewInt(0), excess
	}
	total := new(big.Int).Add(cloneBigInt(sold), requested)
	if total.Cmp(cap) <= 0 {
		return granted, excess
	}
	granted = new(big.Int).Sub(cap, sold)
	if granted.Sign() < 0 {
		granted = big.NewInt(0)
	}
	denied := new(big.Int).Sub(requested, granted)
	excess = new(big.Int).Mul(cloneBigInt(payment), denied)
	excess.Quo(excess, requested)
	return granted, excess
}

// issue credits granted tokens to the buyer, either by minting fresh units or
// by transferring from the sale's pre-funded pool. Authority over the ledger
// is re-checked on every call because it can be revoked externally.
func (e *Engine) issue(rec *Record, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if e.token == nil {
		return fmt.Errorf("sale: token ledger not configured")
	}
	if rec.Config.Minting {
		if e.token.AuthorityHolder() != e.vault {
			return ErrIssuanceAuthority
		}
		return e.token.Mint(e.vault, to, amount)
	}
	if e.token.BalanceOf(e.vault).Cmp(amount) < 0 {
		return fmt.Errorf("sale: token pool underfunded")
	}
	return e.token.Transfer(e.vault, to, amount)
}
