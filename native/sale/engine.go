package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/events"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

// EngineState is the persistence surface required by the engine. It is
// implemented by the platform state manager and by test fixtures.
type EngineState interface {
	SaleGet(id [32]byte) (*Record, bool, error)
	SalePut(record *Record) error
	DepositGet(saleID [32]byte, account [20]byte) (*Deposit, bool, error)
	DepositPut(deposit *Deposit) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// TokenLedger is the issued-asset ledger the engine settles against. Authority
// can be revoked externally, so callers re-check AuthorityHolder at point of
// use instead of caching the result.
type TokenLedger interface {
	Mint(caller, to [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferAuthority(caller, newOwner [20]byte) error
	AuthorityHolder() [20]byte
	BalanceOf(addr [20]byte) *big.Int
	IsPaused() bool
}

// Membership is the boolean membership oracle gating purchases.
type Membership interface {
	IsMember(addr [20]byte) bool
}

// Converter supplies the STAR/ETH exchange rate as a numerator/denominator
// pair. It is consulted once per purchase that carries a STAR payment.
type Converter interface {
	Rate() (numerator, denominator *big.Int, err error)
}

// FundsRouter forwards settled funds to the beneficiaries. The engine calls it
// for the one-time escrow sweep when the soft cap is crossed and for every
// post-soft-cap payment.
type FundsRouter interface {
	Split(token string, from [20]byte, amount *big.Int) error
}

// Engine is the settlement coordinator for a single sale instance. All
// operations run under a per-instance mutex: the execution model is strictly
// serialized and single-writer.
type Engine struct {
	mu         sync.Mutex
	state      EngineState
	emitter    events.Emitter
	nowFn      func() int64
	token      TokenLedger
	membership Membership
	converter  Converter
	router     FundsRouter
	schedule   *RateSchedule
	id         [32]byte
	vault      [20]byte
	bound      bool
}

// NewEngine constructs a sale engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetTokenLedger configures the issued-asset ledger.
func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.token = ledger }

// SetMembership configures the purchase whitelist.
func (e *Engine) SetMembership(membership Membership) { e.membership = membership }

// SetConverter configures the STAR/ETH conversion oracle.
func (e *Engine) SetConverter(converter Converter) { e.converter = converter }

// SetRouter configures the funds splitter that receives settled payments.
func (e *Engine) SetRouter(router FundsRouter) { e.router = router }

// ID returns the sale identifier the engine is bound to.
func (e *Engine) ID() [32]byte { return e.id }

// Vault returns the address holding escrowed funds and the pre-funded token
// pool for this sale instance.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// VaultAddress derives the deterministic fund-holding address for a sale id.
func VaultAddress(id [32]byte) [20]byte {
	digest := ethcrypto.Keccak256([]byte("sale/vault"), id[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

func (e *Engine) bind(rec *Record) error {
	schedule, err := NewRateSchedule(rec.Config.Schedule)
	if err != nil {
		return err
	}
	e.schedule = schedule
	e.id = rec.ID
	e.vault = VaultAddress(rec.ID)
	e.bound = true
	return nil
}

// Initialize writes the immutable sale configuration exactly once. A second
// attempt for the same id fails with ErrAlreadyInitialized.
func (e *Engine) Initialize(id [32]byte, cfg Config) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.state.SaleGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rec := &Record{
		ID:           id,
		Config:       cfg.clone(),
		TokensSold:   big.NewInt(0),
		RaisedETH:    big.NewInt(0),
		RaisedSTAR:   big.NewInt(0),
		EscrowedETH:  big.NewInt(0),
		EscrowedSTAR: big.NewInt(0),
	}
	if err := e.state.SalePut(rec); err != nil {
		return nil, err
	}
	if err := e.bind(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Load binds the engine to an already-initialized sale record, e.g. after a
// daemon restart.
func (e *Engine) Load(id [32]byte) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok, err := e.state.SaleGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitialized
	}
	if err := e.bind(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (e *Engine) loadRecord() (*Record, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if !e.bound {
		return nil, errNotInitialized
	}
	rec, ok, err := e.state.SaleGet(e.id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitialized
	}
	return rec, nil
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

func (e *Engine) moveFunds(from, to [20]byte, token string, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return errNegativeAmount
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	switch normalized {
	case TokenETH:
		if fromAcc.BalanceETH.Cmp(amt) < 0 {
			return errInsufficient
		}
		fromAcc.BalanceETH = new(big.Int).Sub(fromAcc.BalanceETH, amt)
		toAcc.BalanceETH = new(big.Int).Add(toAcc.BalanceETH, amt)
	case TokenSTAR:
		if fromAcc.BalanceSTAR.Cmp(amt) < 0 {
			return errInsufficient
		}
		fromAcc.BalanceSTAR = new(big.Int).Sub(fromAcc.BalanceSTAR, amt)
		toAcc.BalanceSTAR = new(big.Int).Add(toAcc.BalanceSTAR, amt)
	}
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// Buy settles a contribution of ETH and/or STAR for the calling buyer. The
// payment is priced at the current schedule rate, clamped to the crowdsale
// cap with the proportional excess refunded immediately, and routed to escrow
// or the funds splitter depending on whether the soft cap has been crossed.
func (e *Engine) Buy(buyer [20]byte, ethAmount, starAmount *big.Int) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if rec.Paused {
		return nil, ErrPaused
	}
	if rec.Finalized || rec.StatusAt(now) != StatusActive || rec.Ended(now) {
		return nil, ErrNotActive
	}
	if isZeroAddress(buyer) {
		return nil, errBuyerRequired
	}
	if e.membership == nil || !e.membership.IsMember(buyer) {
		return nil, ErrNotWhitelisted
	}
	eth := cloneBigInt(ethAmount)
	star := cloneBigInt(starAmount)
	if eth.Sign() < 0 || star.Sign() < 0 {
		return nil, errNegativeAmount
	}
	if eth.Sign() == 0 && star.Sign() == 0 {
		return nil, errPaymentRequired
	}
	if eth.Sign() > 0 && !rec.Config.ETHAccepted {
		return nil, errETHDisabled
	}

	// Pricing uses the persisted cursor, refreshed before the quote.
	var rateEvent events.Event
	if idx := e.schedule.FurthestIndex(now, rec.RateIndex); idx > rec.RateIndex {
		rec.RateIndex = idx
		rateEvent = events.SaleRateChanged{
			SaleID:    e.id,
			Index:     idx,
			Rate:      e.schedule.RateAt(idx),
			Timestamp: e.schedule.TimestampAt(idx),
		}
	}
	rate := e.schedule.RateAt(rec.RateIndex)

	tokensETH := quoteETH(eth, rate)
	var tokensSTAR *big.Int
	if star.Sign() > 0 {
		if e.converter == nil {
			return nil, fmt.Errorf("sale: conversion oracle not configured")
		}
		numerator, denominator, err := e.converter.Rate()
		if err != nil {
			return nil, err
		}
		tokensSTAR, err = quoteSTAR(star, rate, numerator, denominator)
		if err != nil {
			return nil, err
		}
	} else {
		tokensSTAR = big.NewInt(0)
	}
	// Each paid leg must price to at least one token; otherwise STAR that
	// truncates to zero would be consumed for nothing inside a mixed payment.
	if star.Sign() > 0 && tokensSTAR.Sign() == 0 {
		return nil, fmt.Errorf("sale: payment below minimum priced unit")
	}
	requested := new(big.Int).Add(tokensETH, tokensSTAR)
	if requested.Sign() == 0 {
		return nil, fmt.Errorf("sale: payment below minimum priced unit")
	}

	grantedETH, excessETH := clampToCap(rec.TokensSold, rec.Config.CrowdsaleCap, tokensETH, eth)
	soldAfterETH := new(big.Int).Add(rec.TokensSold, grantedETH)
	grantedSTAR, excessSTAR := clampToCap(soldAfterETH, rec.Config.CrowdsaleCap, tokensSTAR, star)
	granted := new(big.Int).Add(grantedETH, grantedSTAR)
	acceptedETH := new(big.Int).Sub(eth, excessETH)
	acceptedSTAR := new(big.Int).Sub(star, excessSTAR)

	// Pre-flight the issuance leg so rejections stay atomic: no account is
	// touched unless the grant can actually be credited.
	if e.token == nil || e.token.IsPaused() {
		return nil, fmt.Errorf("sale: token ledger unavailable")
	}
	if rec.Config.Minting {
		if e.token.AuthorityHolder() != e.vault {
			return nil, ErrIssuanceAuthority
		}
	} else if e.token.BalanceOf(e.vault).Cmp(granted) < 0 {
		return nil, fmt.Errorf("sale: token pool underfunded")
	}
	buyerAcc, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAcc = ensureAccount(buyerAcc)
	if buyerAcc.BalanceETH.Cmp(eth) < 0 || buyerAcc.BalanceSTAR.Cmp(star) < 0 {
		return nil, errInsufficient
	}

	if err := e.moveFunds(buyer, e.vault, TokenETH, eth); err != nil {
		return nil, err
	}
	if err := e.moveFunds(buyer, e.vault, TokenSTAR, star); err != nil {
		return nil, err
	}
	if excessETH.Sign() > 0 || excessSTAR.Sign() > 0 {
		// Single overshoot-remainder slot, consumed by the immediate refund.
		rec.Remainder = &Remainder{Account: buyer, ETH: cloneBigInt(excessETH), STAR: cloneBigInt(excessSTAR)}
		if err := e.moveFunds(e.vault, buyer, TokenETH, excessETH); err != nil {
			return nil, err
		}
		if err := e.moveFunds(e.vault, buyer, TokenSTAR, excessSTAR); err != nil {
			return nil, err
		}
		rec.Remainder = nil
	}

	if err := e.issue(rec, buyer, granted); err != nil {
		return nil, err
	}

	rec.TokensSold = new(big.Int).Add(rec.TokensSold, granted)
	rec.RaisedETH = new(big.Int).Add(rec.RaisedETH, acceptedETH)
	rec.RaisedSTAR = new(big.Int).Add(rec.RaisedSTAR, acceptedSTAR)

	var softCapEvent events.Event
	if !rec.SoftCapReached {
		rec.EscrowedETH = new(big.Int).Add(rec.EscrowedETH, acceptedETH)
		rec.EscrowedSTAR = new(big.Int).Add(rec.EscrowedSTAR, acceptedSTAR)
		if err := e.recordDeposit(buyer, acceptedETH, acceptedSTAR); err != nil {
			return nil, err
		}
		if rec.TokensSold.Cmp(rec.Config.SoftCap) >= 0 {
			sweptETH := cloneBigInt(rec.EscrowedETH)
			sweptSTAR := cloneBigInt(rec.EscrowedSTAR)
			if err := e.routeFunds(TokenETH, sweptETH); err != nil {
				return nil, err
			}
			if err := e.routeFunds(TokenSTAR, sweptSTAR); err != nil {
				return nil, err
			}
			rec.SoftCapReached = true
			rec.EscrowedETH = big.NewInt(0)
			rec.EscrowedSTAR = big.NewInt(0)
			softCapEvent = events.SaleSoftCapReached{
				SaleID:    e.id,
				SweptETH:  sweptETH,
				SweptSTAR: sweptSTAR,
				Sold:      cloneBigInt(rec.TokensSold),
			}
		}
	} else {
		if err := e.routeFunds(TokenETH, acceptedETH); err != nil {
			return nil, err
		}
		if err := e.routeFunds(TokenSTAR, acceptedSTAR); err != nil {
			return nil, err
		}
	}

	if err := e.state.SalePut(rec); err != nil {
		return nil, err
	}

	if rateEvent != nil {
		e.emit(rateEvent)
	}
	e.emit(events.SaleTokenPurchase{
		SaleID:     e.id,
		Buyer:      buyer,
		ETHAmount:  cloneBigInt(acceptedETH),
		STARAmount: cloneBigInt(acceptedSTAR),
		Tokens:     cloneBigInt(granted),
		Rate:       cloneBigInt(rate),
	})
	if softCapEvent != nil {
		e.emit(softCapEvent)
	}

	return &Receipt{
		Tokens:       granted,
		AcceptedETH:  acceptedETH,
		AcceptedSTAR: acceptedSTAR,
		RefundedETH:  excessETH,
		RefundedSTAR: excessSTAR,
		Rate:         rate,
	}, nil
}

func (e *Engine) routeFunds(token string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if e.router == nil {
		return fmt.Errorf("sale: funds splitter not configured")
	}
	return e.router.Split(token, e.vault, amount)
}

func (e *Engine) recordDeposit(account [20]byte, eth, star *big.Int) error {
	if eth.Sign() == 0 && star.Sign() == 0 {
		return nil
	}
	deposit, ok, err := e.state.DepositGet(e.id, account)
	if err != nil {
		return err
	}
	if !ok || deposit == nil {
		deposit = &Deposit{SaleID: e.id, Account: account, ETH: big.NewInt(0), STAR: big.NewInt(0)}
	}
	deposit.ETH = new(big.Int).Add(cloneBigInt(deposit.ETH), eth)
	deposit.STAR = new(big.Int).Add(cloneBigInt(deposit.STAR), star)
	return e.state.DepositPut(deposit)
}

// Finalize locks in the terminal outcome. Permitted once the end time has
// elapsed or the crowdsale cap has been exhausted, and exactly once.
func (e *Engine) Finalize() (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	if rec.Finalized {
		return nil, ErrAlreadyFinalized
	}
	if !rec.Ended(e.now()) {
		return nil, ErrTooEarlyToFinalize
	}
	if rec.SoftCapReached {
		if rec.Config.Minting {
			if e.token == nil || e.token.AuthorityHolder() != e.vault {
				return nil, ErrIssuanceAuthority
			}
			if err := e.token.TransferAuthority(e.vault, rec.Config.TokenOwner); err != nil {
				return nil, err
			}
		}
		if e.token != nil {
			if unsold := e.token.BalanceOf(e.vault); unsold.Sign() > 0 {
				if err := e.token.Transfer(e.vault, rec.Config.Wallet, unsold); err != nil {
					return nil, err
				}
			}
		}
		rec.Successful = true
	}
	rec.Finalized = true
	if err := e.state.SalePut(rec); err != nil {
		return nil, err
	}
	e.emit(events.SaleFinalized{
		SaleID:     e.id,
		Successful: rec.Successful,
		Sold:       cloneBigInt(rec.TokensSold),
		RaisedETH:  cloneBigInt(rec.RaisedETH),
		RaisedSTAR: cloneBigInt(rec.RaisedSTAR),
	})
	return rec.Clone(), nil
}

// Withdraw refunds an investor's escrowed contributions after a failed sale.
// Both currency legs are validated before any balance moves so the refund is
// all-or-nothing; a second call fails with ErrNoFunds.
func (e *Engine) Withdraw(account [20]byte) (ethAmount, starAmount *big.Int, err error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadRecord()
	if err != nil {
		return nil, nil, err
	}
	if !rec.Finalized || rec.Successful {
		return nil, nil, ErrNotActive
	}
	deposit, ok, err := e.state.DepositGet(e.id, account)
	if err != nil {
		return nil, nil, err
	}
	if !ok || deposit == nil {
		return nil, nil, ErrNoFunds
	}
	eth := cloneBigInt(deposit.ETH)
	star := cloneBigInt(deposit.STAR)
	if eth.Sign() == 0 && star.Sign() == 0 {
		return nil, nil, ErrNoFunds
	}
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, nil, err
	}
	vaultAcc = ensureAccount(vaultAcc)
	if vaultAcc.BalanceETH.Cmp(eth) < 0 || vaultAcc.BalanceSTAR.Cmp(star) < 0 {
		return nil, nil, fmt.Errorf("sale: escrow vault underfunded")
	}
	if err := e.moveFunds(e.vault, account, TokenETH, eth); err != nil {
		return nil, nil, err
	}
	if err := e.moveFunds(e.vault, account, TokenSTAR, star); err != nil {
		return nil, nil, err
	}
	deposit.ETH = big.NewInt(0)
	deposit.STAR = big.NewInt(0)
	if err := e.state.DepositPut(deposit); err != nil {
		return nil, nil, err
	}
	e.emit(events.SaleRefundIssued{
		SaleID:     e.id,
		Account:    account,
		ETHAmount:  cloneBigInt(eth),
		STARAmount: cloneBigInt(star),
	})
	return eth, star, nil
}

// Pause blocks future purchases. Finalize and Withdraw are unaffected.
func (e *Engine) Pause() error { return e.setPaused(true) }

// Unpause re-enables purchases.
func (e *Engine) Unpause() error { return e.setPaused(false) }

func (e *Engine) setPaused(paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadRecord()
	if err != nil {
		return err
	}
	if rec.Paused == paused {
		return nil
	}
	rec.Paused = paused
	return e.state.SalePut(rec)
}

// Sale returns a copy of the current sale record.
func (e *Engine) Sale() (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// DepositOf returns a copy of the investor's escrow ledger entry.
func (e *Engine) DepositOf(account [20]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.bound {
		return nil, errNotInitialized
	}
	deposit, ok, err := e.state.DepositGet(e.id, account)
	if err != nil {
		return nil, err
	}
	if !ok || deposit == nil {
		return &Deposit{SaleID: e.id, Account: account, ETH: big.NewInt(0), STAR: big.NewInt(0)}, nil
	}
	return deposit.Clone(), nil
}
