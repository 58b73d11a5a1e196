package events

import (
	"encoding/hex"
	"math/big"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

const (
	TypeSaleTokenPurchase  = "sale.token_purchase"
	TypeSaleRateChanged    = "sale.rate_changed"
	TypeSaleSoftCapReached = "sale.softcap_reached"
	TypeSaleFinalized      = "sale.finalized"
	TypeSaleRefundIssued   = "sale.refund_issued"
)

// SaleTokenPurchase is emitted for every successful purchase, including the
// partially filled purchase that exhausts the crowdsale cap.
type SaleTokenPurchase struct {
	SaleID     [32]byte
	Buyer      [20]byte
	ETHAmount  *big.Int
	STARAmount *big.Int
	Tokens     *big.Int
	Rate       *big.Int
}

func (SaleTokenPurchase) EventType() string { return TypeSaleTokenPurchase }

func (e SaleTokenPurchase) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleTokenPurchase,
		Attributes: map[string]string{
			"saleId":     hex.EncodeToString(e.SaleID[:]),
			"buyer":      hexAddr(e.Buyer),
			"ethAmount":  formatAmount(e.ETHAmount),
			"starAmount": formatAmount(e.STARAmount),
			"tokens":     formatAmount(e.Tokens),
			"rate":       formatAmount(e.Rate),
		},
	}
}

// SaleRateChanged is emitted whenever the rate-schedule cursor advances.
type SaleRateChanged struct {
	SaleID    [32]byte
	Index     int
	Rate      *big.Int
	Timestamp int64
}

func (SaleRateChanged) EventType() string { return TypeSaleRateChanged }

func (e SaleRateChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleRateChanged,
		Attributes: map[string]string{
			"saleId":    hex.EncodeToString(e.SaleID[:]),
			"index":     intToString(int64(e.Index)),
			"rate":      formatAmount(e.Rate),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// SaleSoftCapReached marks the one-way transition from escrowed to forwarded
// settlement, carrying the aggregate balances swept to the funds splitter.
type SaleSoftCapReached struct {
	SaleID    [32]byte
	SweptETH  *big.Int
	SweptSTAR *big.Int
	Sold      *big.Int
}

func (SaleSoftCapReached) EventType() string { return TypeSaleSoftCapReached }

func (e SaleSoftCapReached) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleSoftCapReached,
		Attributes: map[string]string{
			"saleId":    hex.EncodeToString(e.SaleID[:]),
			"sweptEth":  formatAmount(e.SweptETH),
			"sweptStar": formatAmount(e.SweptSTAR),
			"sold":      formatAmount(e.Sold),
		},
	}
}

// SaleFinalized records the terminal outcome of a sale.
type SaleFinalized struct {
	SaleID     [32]byte
	Successful bool
	Sold       *big.Int
	RaisedETH  *big.Int
	RaisedSTAR *big.Int
}

func (SaleFinalized) EventType() string { return TypeSaleFinalized }

func (e SaleFinalized) Event() *types.Event {
	outcome := "failure"
	if e.Successful {
		outcome = "success"
	}
	return &types.Event{
		Type: TypeSaleFinalized,
		Attributes: map[string]string{
			"saleId":     hex.EncodeToString(e.SaleID[:]),
			"outcome":    outcome,
			"sold":       formatAmount(e.Sold),
			"raisedEth":  formatAmount(e.RaisedETH),
			"raisedStar": formatAmount(e.RaisedSTAR),
		},
	}
}

// SaleRefundIssued is emitted when an investor withdraws escrowed funds after
// a failed sale.
type SaleRefundIssued struct {
	SaleID     [32]byte
	Account    [20]byte
	ETHAmount  *big.Int
	STARAmount *big.Int
}

func (SaleRefundIssued) EventType() string { return TypeSaleRefundIssued }

func (e SaleRefundIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleRefundIssued,
		Attributes: map[string]string{
			"saleId":     hex.EncodeToString(e.SaleID[:]),
			"account":    hexAddr(e.Account),
			"ethAmount":  formatAmount(e.ETHAmount),
			"starAmount": formatAmount(e.STARAmount),
		},
	}
}
