package token

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrNotAuthority rejects privileged calls from anyone but the holder.
	ErrNotAuthority = errors.New("token: caller does not hold authority")
	// ErrPaused rejects transfers and mints while the ledger is paused.
	ErrPaused = errors.New("token: ledger is paused")
	// ErrInsufficientBalance rejects transfers exceeding the sender balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	errInvalidAmount = errors.New("token: amount must be positive")
	errZeroAddress   = errors.New("token: zero address")
)

// Ledger is a minimal issued-asset ledger: mint, transfer and a single
// authority account that can be handed over. A sale engine holds authority
// for the duration of a minting-mode sale and returns it on finalization.
type Ledger struct {
	mu        sync.Mutex
	balances  map[[20]byte]*big.Int
	supply    *big.Int
	authority [20]byte
	paused    bool
}

// NewLedger constructs a ledger with the supplied initial authority holder.
func NewLedger(authority [20]byte) *Ledger {
	return &Ledger{
		balances:  make(map[[20]byte]*big.Int),
		supply:    big.NewInt(0),
		authority: authority,
	}
}

// Mint issues new units to the recipient. Only the authority holder may mint,
// and minting is blocked while the ledger is paused.
func (l *Ledger) Mint(caller, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if to == ([20]byte{}) {
		return errZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return ErrPaused
	}
	if caller != l.authority {
		return ErrNotAuthority
	}
	l.credit(to, amount)
	l.supply = new(big.Int).Add(l.supply, amount)
	return nil
}

// Transfer moves units between accounts.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if to == ([20]byte{}) {
		return errZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return ErrPaused
	}
	balance := l.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

// TransferAuthority hands minting/pausing control to a new holder.
func (l *Ledger) TransferAuthority(caller, newOwner [20]byte) error {
	if newOwner == ([20]byte{}) {
		return errZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.authority {
		return ErrNotAuthority
	}
	l.authority = newOwner
	return nil
}

// AuthorityHolder returns the account currently controlling the ledger.
func (l *Ledger) AuthorityHolder() [20]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.authority
}

// Pause blocks mints and transfers until Unpause.
func (l *Ledger) Pause(caller [20]byte) error {
	return l.setPaused(caller, true)
}

// Unpause re-enables mints and transfers.
func (l *Ledger) Unpause(caller [20]byte) error {
	return l.setPaused(caller, false)
}

func (l *Ledger) setPaused(caller [20]byte, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.authority {
		return ErrNotAuthority
	}
	l.paused = paused
	return nil
}

// IsPaused reports whether transfers are currently blocked.
func (l *Ledger) IsPaused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// BalanceOf returns the balance of the supplied account.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

// TotalSupply returns the cumulative minted amount.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.supply)
}

func (l *Ledger) balanceLocked(addr [20]byte) *big.Int {
	if balance, ok := l.balances[addr]; ok && balance != nil {
		return balance
	}
	return big.NewInt(0)
}

func (l *Ledger) credit(addr [20]byte, amount *big.Int) {
	l.balances[addr] = new(big.Int).Add(l.balanceLocked(addr), amount)
}
