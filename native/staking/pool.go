package staking

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/events"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/lib/linkedlist"
)

var (
	// ErrOutsideWindow rejects stakes before the start or after the end time.
	ErrOutsideWindow = errors.New("staking: outside the staking window")
	// ErrStillLocked rejects withdrawals before the window closes.
	ErrStillLocked = errors.New("staking: stake is still locked")
	// ErrNoStake rejects withdrawals for accounts without a balance.
	ErrNoStake = errors.New("staking: no staked balance")

	errNilState      = errors.New("staking: state not configured")
	errInvalidAmount = errors.New("staking: amount must be positive")
	errInsufficient  = errors.New("staking: insufficient STAR balance")
)

type poolState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	StakeGet(account [20]byte) (*Stake, bool, error)
	StakePut(stake *Stake) error
	StakeAccounts() ([][20]byte, error)
}

// Stake is a single account's locked balance and accrued points.
type Stake struct {
	Account [20]byte `json:"-"`
	Amount  *big.Int `json:"amount"`
	Points  *big.Int `json:"points"`
}

// Clone returns a deep copy of the stake entry.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Amount != nil {
		clone.Amount = new(big.Int).Set(s.Amount)
	}
	if s.Points != nil {
		clone.Points = new(big.Int).Set(s.Points)
	}
	return &clone
}

// Pool is a fixed-duration STAR staking ledger. Earlier and larger stakes
// accrue more points; the top stakers by points are tracked in a bounded,
// descending-ordered rank list. Balances unlock in full once the window ends.
type Pool struct {
	mu      sync.Mutex
	state   poolState
	emitter events.Emitter
	nowFn   func() int64

	vault  [20]byte
	start  int64
	end    int64
	topMax int
	stakes map[[20]byte]*Stake
	ranks  *linkedlist.List[[20]byte]
	nodes  map[[20]byte]*linkedlist.Node[[20]byte]
	staked *big.Int
}

// NewPool constructs a staking pool for the supplied window. topMax bounds the
// tracked rank list.
func NewPool(vault [20]byte, start, end int64, topMax int) *Pool {
	return &Pool{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		vault:   vault,
		start:   start,
		end:     end,
		topMax:  topMax,
		stakes:  make(map[[20]byte]*Stake),
		ranks:   linkedlist.New[[20]byte](),
		nodes:   make(map[[20]byte]*linkedlist.Node[[20]byte]),
		staked:  big.NewInt(0),
	}
}

// SetState configures the account state backend.
func (p *Pool) SetState(state poolState) { p.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (p *Pool) SetNowFunc(now func() int64) {
	if now == nil {
		p.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	p.nowFn = now
}

// Deposit locks STAR for the remainder of the window. Points accrue linearly
// with the time left: amount x (end - max(now, start)).
func (p *Pool) Deposit(account [20]byte, amount *big.Int) (*Stake, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowFn()
	if now >= p.end {
		return nil, ErrOutsideWindow
	}
	effective := now
	if effective < p.start {
		effective = p.start
	}
	acc, err := p.state.GetAccount(account[:])
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.BalanceSTAR == nil || acc.BalanceSTAR.Cmp(amount) < 0 {
		return nil, errInsufficient
	}
	vaultAcc, err := p.state.GetAccount(p.vault[:])
	if err != nil {
		return nil, err
	}
	if vaultAcc == nil {
		vaultAcc = &types.Account{BalanceETH: big.NewInt(0), BalanceSTAR: big.NewInt(0)}
	}
	if vaultAcc.BalanceSTAR == nil {
		vaultAcc.BalanceSTAR = big.NewInt(0)
	}
	acc.BalanceSTAR = new(big.Int).Sub(acc.BalanceSTAR, amount)
	vaultAcc.BalanceSTAR = new(big.Int).Add(vaultAcc.BalanceSTAR, amount)
	if err := p.state.PutAccount(account[:], acc); err != nil {
		return nil, err
	}
	if err := p.state.PutAccount(p.vault[:], vaultAcc); err != nil {
		return nil, err
	}

	points := new(big.Int).Mul(amount, big.NewInt(p.end-effective))
	stake, ok := p.stakes[account]
	if !ok {
		stake = &Stake{Account: account, Amount: big.NewInt(0), Points: big.NewInt(0)}
		p.stakes[account] = stake
	}
	stake.Amount = new(big.Int).Add(stake.Amount, amount)
	stake.Points = new(big.Int).Add(stake.Points, points)
	p.staked = new(big.Int).Add(p.staked, amount)
	p.reRank(account, stake.Points)
	if err := p.state.StakePut(stake.Clone()); err != nil {
		return nil, err
	}

	p.emitter.Emit(events.StakeDeposited{
		Account: account,
		Amount:  new(big.Int).Set(amount),
		Points:  new(big.Int).Set(stake.Points),
	})
	return stake.Clone(), nil
}

// WithdrawAll releases the full staked balance once the window has closed.
func (p *Pool) WithdrawAll(account [20]byte) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nowFn() < p.end {
		return nil, ErrStillLocked
	}
	stake, ok := p.stakes[account]
	if !ok || stake.Amount.Sign() == 0 {
		return nil, ErrNoStake
	}
	amount := new(big.Int).Set(stake.Amount)
	vaultAcc, err := p.state.GetAccount(p.vault[:])
	if err != nil {
		return nil, err
	}
	if vaultAcc == nil || vaultAcc.BalanceSTAR == nil || vaultAcc.BalanceSTAR.Cmp(amount) < 0 {
		return nil, errInsufficient
	}
	acc, err := p.state.GetAccount(account[:])
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{BalanceETH: big.NewInt(0), BalanceSTAR: big.NewInt(0)}
	}
	if acc.BalanceSTAR == nil {
		acc.BalanceSTAR = big.NewInt(0)
	}
	vaultAcc.BalanceSTAR = new(big.Int).Sub(vaultAcc.BalanceSTAR, amount)
	acc.BalanceSTAR = new(big.Int).Add(acc.BalanceSTAR, amount)
	if err := p.state.PutAccount(p.vault[:], vaultAcc); err != nil {
		return nil, err
	}
	if err := p.state.PutAccount(account[:], acc); err != nil {
		return nil, err
	}
	stake.Amount = big.NewInt(0)
	p.staked = new(big.Int).Sub(p.staked, amount)
	if err := p.state.StakePut(stake.Clone()); err != nil {
		return nil, err
	}
	return amount, nil
}

// Load rebuilds the in-memory stake index and rank list from persisted
// entries, e.g. after a daemon restart. Locked balances outlive the process;
// only the ordering is recomputed.
func (p *Pool) Load() error {
	if p == nil || p.state == nil {
		return errNilState
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	accounts, err := p.state.StakeAccounts()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		stake, ok, err := p.state.StakeGet(account)
		if err != nil {
			return err
		}
		if !ok || stake == nil {
			continue
		}
		if stake.Amount == nil {
			stake.Amount = big.NewInt(0)
		}
		if stake.Points == nil {
			stake.Points = big.NewInt(0)
		}
		p.stakes[account] = stake
		p.staked = new(big.Int).Add(p.staked, stake.Amount)
		p.reRank(account, stake.Points)
	}
	return nil
}

// StakeOf returns a copy of the account's stake entry.
func (p *Pool) StakeOf(account [20]byte) (*Stake, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stake, ok := p.stakes[account]
	if !ok {
		return nil, false
	}
	return stake.Clone(), true
}

// TotalStaked returns the aggregate locked balance.
func (p *Pool) TotalStaked() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.staked)
}

// TopRanks returns the tracked accounts in descending point order.
func (p *Pool) TopRanks() [][20]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][20]byte, 0, p.ranks.Len())
	for node := p.ranks.Front(); node != nil; node = node.Next() {
		out = append(out, node.Value)
	}
	return out
}

// reRank repositions the account in the descending rank list and trims the
// list back to the configured bound.
func (p *Pool) reRank(account [20]byte, points *big.Int) {
	if node, ok := p.nodes[account]; ok {
		p.ranks.Remove(node)
		delete(p.nodes, account)
	}
	var mark *linkedlist.Node[[20]byte]
	for node := p.ranks.Front(); node != nil; node = node.Next() {
		if p.stakes[node.Value].Points.Cmp(points) < 0 {
			mark = node
			break
		}
	}
	if mark != nil {
		p.nodes[account] = p.ranks.InsertBefore(account, mark)
	} else {
		p.nodes[account] = p.ranks.PushBack(account)
	}
	for p.topMax > 0 && p.ranks.Len() > p.topMax {
		back := p.ranks.Back()
		delete(p.nodes, back.Value)
		p.ranks.Remove(back)
	}
}
