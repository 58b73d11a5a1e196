package sale

import (
	"errors"
	"math/big"
	"testing"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
)

type memState struct {
	accounts map[string]*types.Account
	sales    map[[32]byte]*Record
	deposits map[string]*Deposit
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[string]*types.Account),
		sales:    make(map[[32]byte]*Record),
		deposits: make(map[string]*Deposit),
	}
}

func (m *memState) GetAccount(addr []byte) (*types.Account, error) {
	acc, ok := m.accounts[string(addr)]
	if !ok {
		return nil, nil
	}
	return acc.Clone(), nil
}

func (m *memState) PutAccount(addr []byte, account *types.Account) error {
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *memState) SaleGet(id [32]byte) (*Record, bool, error) {
	rec, ok := m.sales[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (m *memState) SalePut(record *Record) error {
	m.sales[record.ID] = record.Clone()
	return nil
}

func depositMapKey(saleID [32]byte, account [20]byte) string {
	return string(saleID[:]) + string(account[:])
}

func (m *memState) DepositGet(saleID [32]byte, account [20]byte) (*Deposit, bool, error) {
	dep, ok := m.deposits[depositMapKey(saleID, account)]
	if !ok {
		return nil, false, nil
	}
	return dep.Clone(), true, nil
}

func (m *memState) DepositPut(deposit *Deposit) error {
	m.deposits[depositMapKey(deposit.SaleID, deposit.Account)] = deposit.Clone()
	return nil
}

type fakeLedger struct {
	authority [20]byte
	paused    bool
	balances  map[[20]byte]*big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[[20]byte]*big.Int)}
}

func (l *fakeLedger) balance(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *fakeLedger) Mint(caller, to [20]byte, amount *big.Int) error {
	if caller != l.authority {
		return errors.New("fake ledger: not authority")
	}
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

func (l *fakeLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.balance(from).Cmp(amount) < 0 {
		return errors.New("fake ledger: insufficient")
	}
	l.balances[from] = new(big.Int).Sub(l.balance(from), amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

func (l *fakeLedger) TransferAuthority(caller, newOwner [20]byte) error {
	if caller != l.authority {
		return errors.New("fake ledger: not authority")
	}
	l.authority = newOwner
	return nil
}

func (l *fakeLedger) AuthorityHolder() [20]byte { return l.authority }

func (l *fakeLedger) BalanceOf(addr [20]byte) *big.Int { return new(big.Int).Set(l.balance(addr)) }

func (l *fakeLedger) IsPaused() bool { return l.paused }

type fakeMembership struct {
	members map[[20]byte]bool
}

func (f *fakeMembership) IsMember(addr [20]byte) bool { return f.members[addr] }

type fakeConverter struct {
	numerator   *big.Int
	denominator *big.Int
}

func (f *fakeConverter) Rate() (*big.Int, *big.Int, error) {
	return new(big.Int).Set(f.numerator), new(big.Int).Set(f.denominator), nil
}

type routedAmount struct {
	token  string
	amount *big.Int
}

type fakeRouter struct {
	splits []routedAmount
}

func (f *fakeRouter) Split(token string, from [20]byte, amount *big.Int) error {
	f.splits = append(f.splits, routedAmount{token: token, amount: new(big.Int).Set(amount)})
	return nil
}

func (f *fakeRouter) total(token string) *big.Int {
	sum := big.NewInt(0)
	for _, split := range f.splits {
		if split.token == token {
			sum.Add(sum, split.amount)
		}
	}
	return sum
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func saleID(b byte) [32]byte {
	var id [32]byte
	id[31] = b
	return id
}

func testConfig() Config {
	return Config{
		StartTime:    100,
		EndTime:      1000,
		SoftCap:      big.NewInt(100),
		CrowdsaleCap: big.NewInt(500),
		ETHAccepted:  true,
		Minting:      true,
		TokenOwner:   addr(0xAA),
		Wallet:       addr(0xBB),
		Schedule:     []RatePoint{{Timestamp: 100, Rate: big.NewInt(5)}},
	}
}

type engineFixture struct {
	engine     *Engine
	state      *memState
	ledger     *fakeLedger
	membership *fakeMembership
	router     *fakeRouter
	now        int64
}

func newFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()
	fix := &engineFixture{
		state:      newMemState(),
		ledger:     newFakeLedger(),
		membership: &fakeMembership{members: make(map[[20]byte]bool)},
		router:     &fakeRouter{},
		now:        cfg.StartTime,
	}
	fix.engine = NewEngine()
	fix.engine.SetState(fix.state)
	fix.engine.SetTokenLedger(fix.ledger)
	fix.engine.SetMembership(fix.membership)
	fix.engine.SetConverter(&fakeConverter{numerator: big.NewInt(1), denominator: big.NewInt(10)})
	fix.engine.SetRouter(fix.router)
	fix.engine.SetNowFunc(func() int64 { return fix.now })
	if _, err := fix.engine.Initialize(saleID(1), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	fix.ledger.authority = fix.engine.Vault()
	return fix
}

func (f *engineFixture) fund(t *testing.T, account [20]byte, eth, star int64) {
	t.Helper()
	err := f.state.PutAccount(account[:], &types.Account{
		BalanceETH:  big.NewInt(eth),
		BalanceSTAR: big.NewInt(star),
	})
	if err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func (f *engineFixture) allow(account [20]byte) {
	f.membership.members[account] = true
}

func (f *engineFixture) balanceOf(t *testing.T, account [20]byte) (eth, star *big.Int) {
	t.Helper()
	acc, err := f.state.GetAccount(account[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil {
		return big.NewInt(0), big.NewInt(0)
	}
	return acc.BalanceETH, acc.BalanceSTAR
}

func mustBuy(t *testing.T, fix *engineFixture, buyer [20]byte, eth, star int64) *Receipt {
	t.Helper()
	receipt, err := fix.engine.Buy(buyer, big.NewInt(eth), big.NewInt(star))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	return receipt
}

func TestInitializeWriteOnce(t *testing.T) {
	fix := newFixture(t, testConfig())
	if _, err := fix.engine.Initialize(saleID(1), testConfig()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialize: got %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitializeRejectsInvalidCaps(t *testing.T) {
	cfg := testConfig()
	cfg.SoftCap = big.NewInt(500) // equal to the crowdsale cap
	engine := NewEngine()
	engine.SetState(newMemState())
	if _, err := engine.Initialize(saleID(2), cfg); err == nil {
		t.Fatal("expected soft cap validation error")
	}
}

func TestBuyLifecycleGates(t *testing.T) {
	fix := newFixture(t, testConfig())
	buyer := addr(1)
	fix.fund(t, buyer, 1000, 1000)

	fix.now = 50 // before the start time
	fix.allow(buyer)
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("pending sale: got %v, want ErrNotActive", err)
	}

	fix.now = 200
	fix.membership.members[buyer] = false
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("non-member: got %v, want ErrNotWhitelisted", err)
	}
	fix.allow(buyer)

	if _, err := fix.engine.Buy(buyer, big.NewInt(0), big.NewInt(0)); err == nil {
		t.Fatal("expected rejection of a zero payment")
	}
	if _, err := fix.engine.Buy(buyer, big.NewInt(-1), nil); err == nil {
		t.Fatal("expected rejection of a negative payment")
	}

	fix.now = 2000 // past the end time
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("ended sale: got %v, want ErrNotActive", err)
	}
}

func TestBuyRejectsETHWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ETHAccepted = false
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 100, 100)
	fix.allow(buyer)

	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); err == nil {
		t.Fatal("expected rejection of an ether payment")
	}
	// A pure STAR payment still settles.
	receipt := mustBuy(t, fix, buyer, 0, 100)
	if receipt.Tokens.Sign() <= 0 {
		t.Fatalf("star purchase granted %s tokens", receipt.Tokens)
	}
}

func TestPauseBlocksBuyOnly(t *testing.T) {
	fix := newFixture(t, testConfig())
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)

	if err := fix.engine.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("paused buy: got %v, want ErrPaused", err)
	}

	// Finalization ignores the pause flag.
	fix.now = 2000
	if _, err := fix.engine.Finalize(); err != nil {
		t.Fatalf("finalize while paused: %v", err)
	}

	if err := fix.engine.Unpause(); err != nil {
		t.Fatalf("unpause: %v", err)
	}
}

func TestBuyPhasedPricingAndCursor(t *testing.T) {
	cfg := testConfig()
	cfg.CrowdsaleCap = big.NewInt(100000)
	cfg.SoftCap = big.NewInt(99999)
	cfg.Schedule = []RatePoint{
		{Timestamp: 100, Rate: big.NewInt(2)},
		{Timestamp: 300, Rate: big.NewInt(3)},
		{Timestamp: 500, Rate: big.NewInt(5)},
	}
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 1000, 0)
	fix.allow(buyer)

	fix.now = 150
	if got := mustBuy(t, fix, buyer, 6, 0).Tokens; got.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("phase one: got %s tokens, want 12", got)
	}

	fix.now = 350
	if got := mustBuy(t, fix, buyer, 6, 0).Tokens; got.Cmp(big.NewInt(18)) != 0 {
		t.Fatalf("phase two: got %s tokens, want 18", got)
	}

	// The cursor never regresses, even if the clock is read earlier.
	fix.now = 150
	if got := mustBuy(t, fix, buyer, 6, 0).Rate; got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("cursor regressed: rate %s, want 3", got)
	}

	// Skipping a whole phase lands on the furthest elapsed entry.
	fix.now = 700
	if got := mustBuy(t, fix, buyer, 6, 0).Tokens; got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("phase three: got %s tokens, want 30", got)
	}

	rec, err := fix.engine.Sale()
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if rec.RateIndex != 2 {
		t.Fatalf("rate index %d, want 2", rec.RateIndex)
	}
}

func TestBuyDualCurrencyEquivalence(t *testing.T) {
	cfg := testConfig()
	cfg.CrowdsaleCap = big.NewInt(100000)
	cfg.SoftCap = big.NewInt(99999)
	cfg.Schedule = []RatePoint{{Timestamp: 100, Rate: big.NewInt(50)}}
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 1000, 1000)
	fix.allow(buyer)
	fix.now = 200

	// With the oracle at 1/10 a STAR is worth a tenth of an ETH unit, so ten
	// STAR must price identically to one ETH.
	receipt := mustBuy(t, fix, buyer, 1, 10)
	if receipt.Tokens.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("combined purchase: got %s tokens, want 100", receipt.Tokens)
	}
	if receipt.AcceptedETH.Cmp(big.NewInt(1)) != 0 || receipt.AcceptedSTAR.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("accepted %s ETH / %s STAR, want 1 / 10", receipt.AcceptedETH, receipt.AcceptedSTAR)
	}

	if got := fix.ledger.BalanceOf(buyer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("minted balance %s, want 100", got)
	}
}

func TestBuySoftCapSweep(t *testing.T) {
	fix := newFixture(t, testConfig()) // soft cap 100, cap 500, rate 5
	alice, bob := addr(1), addr(2)
	fix.fund(t, alice, 100, 0)
	fix.fund(t, bob, 100, 0)
	fix.allow(alice)
	fix.allow(bob)
	fix.now = 200

	// 10 ETH buys 50 tokens, below the soft cap: escrowed, nothing routed.
	mustBuy(t, fix, alice, 10, 0)
	rec, _ := fix.engine.Sale()
	if rec.SoftCapReached {
		t.Fatal("soft cap flagged too early")
	}
	if rec.EscrowedETH.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrowed %s ETH, want 10", rec.EscrowedETH)
	}
	if len(fix.router.splits) != 0 {
		t.Fatalf("router received %d splits before the soft cap", len(fix.router.splits))
	}
	dep, err := fix.engine.DepositOf(alice)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if dep.ETH.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("deposit %s ETH, want 10", dep.ETH)
	}

	// Bob's purchase crosses the soft cap: the whole escrow is swept once.
	mustBuy(t, fix, bob, 10, 0)
	rec, _ = fix.engine.Sale()
	if !rec.SoftCapReached {
		t.Fatal("soft cap not flagged")
	}
	if rec.EscrowedETH.Sign() != 0 {
		t.Fatalf("escrow not zeroed: %s", rec.EscrowedETH)
	}
	if got := fix.router.total(TokenETH); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("swept %s ETH, want 20", got)
	}

	// Post-soft-cap payments route directly and leave escrow untouched.
	mustBuy(t, fix, alice, 5, 0)
	rec, _ = fix.engine.Sale()
	if rec.EscrowedETH.Sign() != 0 {
		t.Fatalf("escrow grew after the soft cap: %s", rec.EscrowedETH)
	}
	if got := fix.router.total(TokenETH); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("routed %s ETH total, want 25", got)
	}
	dep, _ = fix.engine.DepositOf(alice)
	if dep.ETH.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("deposit changed after the soft cap: %s", dep.ETH)
	}
}

func TestBuyCapClampProportionalRefund(t *testing.T) {
	cfg := testConfig()
	cfg.SoftCap = big.NewInt(50)
	cfg.CrowdsaleCap = big.NewInt(100)
	fix := newFixture(t, cfg) // rate 5
	buyer := addr(1)
	fix.fund(t, buyer, 30, 0)
	fix.allow(buyer)
	fix.now = 200

	// 30 ETH requests 150 tokens against a 100 token cap: 100 granted, the
	// denied third of the payment refunded in place.
	receipt := mustBuy(t, fix, buyer, 30, 0)
	if receipt.Tokens.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("granted %s tokens, want 100", receipt.Tokens)
	}
	if receipt.AcceptedETH.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("accepted %s ETH, want 20", receipt.AcceptedETH)
	}
	if receipt.RefundedETH.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("refunded %s ETH, want 10", receipt.RefundedETH)
	}

	eth, _ := fix.balanceOf(t, buyer)
	if eth.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("buyer balance %s ETH, want the 10 refunded", eth)
	}

	rec, _ := fix.engine.Sale()
	if rec.Remainder != nil {
		t.Fatal("remainder slot not consumed")
	}
	if rec.TokensSold.Cmp(rec.Config.CrowdsaleCap) != 0 {
		t.Fatalf("sold %s, want the full cap", rec.TokensSold)
	}

	// Reaching the cap ends the sale even inside the time window.
	fix.fund(t, addr(2), 100, 0)
	fix.allow(addr(2))
	if _, err := fix.engine.Buy(addr(2), big.NewInt(1), nil); !errors.Is(err, ErrNotActive) {
		t.Fatalf("post-cap buy: got %v, want ErrNotActive", err)
	}
}

func TestBuySequentialClampETHFirst(t *testing.T) {
	cfg := testConfig()
	cfg.SoftCap = big.NewInt(25)
	cfg.CrowdsaleCap = big.NewInt(50)
	fix := newFixture(t, cfg) // rate 5, oracle 1/10
	buyer := addr(1)
	fix.fund(t, buyer, 10, 100)
	fix.allow(buyer)
	fix.now = 200

	// The ETH leg alone exhausts the cap, so the STAR payment comes back whole.
	receipt := mustBuy(t, fix, buyer, 10, 100)
	if receipt.Tokens.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("granted %s tokens, want 50", receipt.Tokens)
	}
	if receipt.AcceptedSTAR.Sign() != 0 {
		t.Fatalf("accepted %s STAR, want 0", receipt.AcceptedSTAR)
	}
	if receipt.RefundedSTAR.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("refunded %s STAR, want 100", receipt.RefundedSTAR)
	}
	_, star := fix.balanceOf(t, buyer)
	if star.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer STAR balance %s, want 100", star)
	}
}

func TestBuyIssuanceAuthorityRecheck(t *testing.T) {
	fix := newFixture(t, testConfig())
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)
	fix.now = 200

	// Revoke the vault's mint authority out from under the engine.
	fix.ledger.authority = addr(0xEE)
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); !errors.Is(err, ErrIssuanceAuthority) {
		t.Fatalf("revoked authority: got %v, want ErrIssuanceAuthority", err)
	}
	// The rejection left the buyer untouched.
	eth, _ := fix.balanceOf(t, buyer)
	if eth.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer balance %s after rejection, want 100", eth)
	}
}

func TestBuyTransferModeUsesPool(t *testing.T) {
	cfg := testConfig()
	cfg.Minting = false
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)
	fix.now = 200

	// Empty pool rejects the purchase outright.
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), nil); err == nil {
		t.Fatal("expected rejection on an empty token pool")
	}

	fix.ledger.balances[fix.engine.Vault()] = big.NewInt(1000)
	receipt := mustBuy(t, fix, buyer, 2, 0)
	if receipt.Tokens.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("granted %s tokens, want 10", receipt.Tokens)
	}
	if got := fix.ledger.BalanceOf(fix.engine.Vault()); got.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("pool balance %s, want 990", got)
	}
}

func TestFinalizeSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.Minting = false
	fix := newFixture(t, cfg) // soft cap 100, rate 5
	fix.ledger.balances[fix.engine.Vault()] = big.NewInt(1000)
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)
	fix.now = 200
	mustBuy(t, fix, buyer, 20, 0) // 100 tokens, exactly the soft cap

	if _, err := fix.engine.Finalize(); !errors.Is(err, ErrTooEarlyToFinalize) {
		t.Fatalf("early finalize: got %v, want ErrTooEarlyToFinalize", err)
	}

	fix.now = 2000
	rec, err := fix.engine.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !rec.Successful {
		t.Fatal("sale not marked successful")
	}
	// The unsold pool was swept to the wallet.
	if got := fix.ledger.BalanceOf(cfg.Wallet); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("wallet received %s unsold tokens, want 900", got)
	}

	if _, err := fix.engine.Finalize(); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("second finalize: got %v, want ErrAlreadyFinalized", err)
	}
}

func TestFinalizeMintingHandsBackAuthority(t *testing.T) {
	fix := newFixture(t, testConfig())
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)
	fix.now = 200
	mustBuy(t, fix, buyer, 20, 0) // crosses the soft cap

	fix.now = 2000
	rec, err := fix.engine.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !rec.Successful {
		t.Fatal("sale not marked successful")
	}
	if got := fix.ledger.AuthorityHolder(); got != rec.Config.TokenOwner {
		t.Fatalf("authority holder %x, want the token owner", got)
	}
}

func TestWithdrawRefundAfterFailure(t *testing.T) {
	fix := newFixture(t, testConfig()) // soft cap 100
	alice, bob := addr(1), addr(2)
	fix.fund(t, alice, 100, 50)
	fix.allow(alice)
	fix.now = 200
	mustBuy(t, fix, alice, 4, 30) // well below the soft cap

	// No refunds while the sale is live.
	if _, _, err := fix.engine.Withdraw(alice); !errors.Is(err, ErrNotActive) {
		t.Fatalf("live withdraw: got %v, want ErrNotActive", err)
	}

	fix.now = 2000
	rec, err := fix.engine.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if rec.Successful {
		t.Fatal("sale unexpectedly successful")
	}

	eth, star, err := fix.engine.Withdraw(alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if eth.Cmp(big.NewInt(4)) != 0 || star.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("refunded %s ETH / %s STAR, want 4 / 30", eth, star)
	}
	gotETH, gotSTAR := fix.balanceOf(t, alice)
	if gotETH.Cmp(big.NewInt(100)) != 0 || gotSTAR.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("balance %s ETH / %s STAR after refund, want 100 / 50", gotETH, gotSTAR)
	}

	// The deposit clears exactly once.
	if _, _, err := fix.engine.Withdraw(alice); !errors.Is(err, ErrNoFunds) {
		t.Fatalf("second withdraw: got %v, want ErrNoFunds", err)
	}
	// Accounts that never contributed have nothing to claim.
	if _, _, err := fix.engine.Withdraw(bob); !errors.Is(err, ErrNoFunds) {
		t.Fatalf("stranger withdraw: got %v, want ErrNoFunds", err)
	}
}

func TestLoadRebindsAfterRestart(t *testing.T) {
	fix := newFixture(t, testConfig())
	buyer := addr(1)
	fix.fund(t, buyer, 100, 0)
	fix.allow(buyer)
	fix.now = 200
	mustBuy(t, fix, buyer, 2, 0)

	restarted := NewEngine()
	restarted.SetState(fix.state)
	restarted.SetTokenLedger(fix.ledger)
	restarted.SetMembership(fix.membership)
	restarted.SetConverter(&fakeConverter{numerator: big.NewInt(1), denominator: big.NewInt(10)})
	restarted.SetRouter(fix.router)
	restarted.SetNowFunc(func() int64 { return fix.now })

	rec, err := restarted.Load(saleID(1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.TokensSold.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("reloaded tokens sold %s, want 10", rec.TokensSold)
	}
	if _, err := restarted.Buy(buyer, big.NewInt(2), nil); err != nil {
		t.Fatalf("buy after reload: %v", err)
	}
}

func TestBuyRejectsPaymentBelowPricedUnit(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = []RatePoint{{Timestamp: 100, Rate: big.NewInt(3)}}
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 0, 100)
	fix.allow(buyer)
	fix.now = 200

	// 3 STAR at oracle 1/10 and rate 3 quotes 3*1*3/10 = 0 tokens.
	if _, err := fix.engine.Buy(buyer, nil, big.NewInt(3)); err == nil {
		t.Fatal("expected rejection of a sub-unit payment")
	}
}

func TestBuyRejectsMixedPaymentWithZeroTokenLeg(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = []RatePoint{{Timestamp: 100, Rate: big.NewInt(3)}}
	fix := newFixture(t, cfg)
	buyer := addr(1)
	fix.fund(t, buyer, 10, 100)
	fix.allow(buyer)
	fix.now = 200

	// The ETH leg alone quotes 3 tokens, but the 3 STAR leg still truncates
	// to zero; the whole purchase is rejected rather than consuming STAR for
	// nothing.
	if _, err := fix.engine.Buy(buyer, big.NewInt(1), big.NewInt(3)); err == nil {
		t.Fatal("expected rejection of a zero-token payment leg")
	}
	eth, star := fix.balanceOf(t, buyer)
	if eth.Cmp(big.NewInt(10)) != 0 || star.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer balances %s ETH / %s STAR after rejection, want 10 / 100", eth, star)
	}
	rec, err := fix.engine.Sale()
	if err != nil {
		t.Fatalf("sale record: %v", err)
	}
	if rec.EscrowedSTAR.Sign() != 0 || rec.TokensSold.Sign() != 0 {
		t.Fatalf("rejected payment mutated the sale: escrowed %s STAR, sold %s", rec.EscrowedSTAR, rec.TokensSold)
	}
}
