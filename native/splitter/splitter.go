package splitter

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

var (
	// ErrNotConfigured signals a splitter without payees or state backend.
	ErrNotConfigured = errors.New("splitter: not configured")
	// ErrInvalidPercentage rejects a starbase share above 100%.
	ErrInvalidPercentage = errors.New("splitter: percentage out of range")

	errNegativeAmount = errors.New("splitter: negative amount")
)

type splitterState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// TokenHolder is the slice of the issued-asset ledger the splitter needs to
// sweep leftover tokens parked at its address.
type TokenHolder interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) *big.Int
}

// Splitter distributes settled sale funds between the client and starbase
// payees at a fixed basis-point split. It implements the sale engine's
// FundsRouter interface.
type Splitter struct {
	state       splitterState
	addr        [20]byte
	client      [20]byte
	starbase    [20]byte
	starbaseBps uint32
}

// New constructs a splitter. starbaseBps is the share (in basis points) routed
// to the starbase payee; the remainder goes to the client.
func New(addr, client, starbase [20]byte, starbaseBps uint32) (*Splitter, error) {
	if starbaseBps > 10_000 {
		return nil, ErrInvalidPercentage
	}
	if client == ([20]byte{}) || starbase == ([20]byte{}) {
		return nil, ErrNotConfigured
	}
	return &Splitter{addr: addr, client: client, starbase: starbase, starbaseBps: starbaseBps}, nil
}

// SetState configures the account state backend.
func (s *Splitter) SetState(state splitterState) { s.state = state }

// Address returns the splitter's own fund-holding address.
func (s *Splitter) Address() [20]byte { return s.addr }

// Split moves the amount from the source address and distributes it between
// the two payees. The starbase share truncates toward zero; the client payee
// absorbs the rounding dust.
func (s *Splitter) Split(token string, from [20]byte, amount *big.Int) error {
	if s == nil || s.state == nil {
		return ErrNotConfigured
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	starbaseShare := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(s.starbaseBps)))
	starbaseShare.Quo(starbaseShare, big.NewInt(10_000))
	clientShare := new(big.Int).Sub(amount, starbaseShare)
	if err := s.transfer(from, s.starbase, token, starbaseShare); err != nil {
		return err
	}
	return s.transfer(from, s.client, token, clientShare)
}

// WithdrawRemainingTokens sweeps any issued-asset balance parked at the
// splitter's address to the client payee.
func (s *Splitter) WithdrawRemainingTokens(ledger TokenHolder) (*big.Int, error) {
	if s == nil || ledger == nil {
		return nil, ErrNotConfigured
	}
	balance := ledger.BalanceOf(s.addr)
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := ledger.Transfer(s.addr, s.client, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *Splitter) transfer(from, to [20]byte, token string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := s.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := s.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	switch token {
	case "ETH":
		if fromAcc.BalanceETH.Cmp(amount) < 0 {
			return fmt.Errorf("splitter: insufficient balance")
		}
		fromAcc.BalanceETH = new(big.Int).Sub(fromAcc.BalanceETH, amount)
		toAcc.BalanceETH = new(big.Int).Add(toAcc.BalanceETH, amount)
	case "STAR":
		if fromAcc.BalanceSTAR.Cmp(amount) < 0 {
			return fmt.Errorf("splitter: insufficient balance")
		}
		fromAcc.BalanceSTAR = new(big.Int).Sub(fromAcc.BalanceSTAR, amount)
		toAcc.BalanceSTAR = new(big.Int).Add(toAcc.BalanceSTAR, amount)
	default:
		return fmt.Errorf("splitter: unsupported token %s", token)
	}
	if err := s.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return s.state.PutAccount(to[:], toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceETH: big.NewInt(0), BalanceSTAR: big.NewInt(0)}
	}
	if acc.BalanceETH == nil {
		acc.BalanceETH = big.NewInt(0)
	}
	if acc.BalanceSTAR == nil {
		acc.BalanceSTAR = big.NewInt(0)
	}
	return acc
}
