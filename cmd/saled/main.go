package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/config"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/events"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/factory"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/sale"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/splitter"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/staking"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/starrate"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/token"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/whitelist"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/observability/logging"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/observability/metrics"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/state"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/storage"
)

// logEmitter forwards engine events to the structured logger.
type logEmitter struct {
	log *slog.Logger
}

type attributed interface {
	Event() *types.Event
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if withAttrs, ok := evt.(attributed); ok {
		if payload := withAttrs.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	l.log.Info("engine event", args...)
}

type server struct {
	log       *slog.Logger
	engine    *sale.Engine
	whitelist *whitelist.Whitelist
	staking   *staking.Pool
	operator  [20]byte
	state     *state.Manager
}

func main() {
	configPath := flag.String("config", "saled.toml", "path to the daemon configuration")
	flag.Parse()

	logger := logging.Setup("saled", os.Getenv("SALED_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := logEmitter{log: logger}

	operator, err := config.ParseAddress(cfg.Whitelist.Owner)
	if err != nil {
		logger.Error("invalid whitelist owner", "error", err)
		os.Exit(1)
	}
	members := whitelist.New(operator)
	members.SetEmitter(emitter)

	oracleOwner, err := config.ParseAddress(cfg.Oracle.Owner)
	if err != nil {
		logger.Error("invalid oracle owner", "error", err)
		os.Exit(1)
	}
	numerator, _ := new(big.Int).SetString(cfg.Oracle.Numerator, 10)
	denominator, _ := new(big.Int).SetString(cfg.Oracle.Denominator, 10)
	oracle, err := starrate.New(oracleOwner, numerator, denominator)
	if err != nil {
		logger.Error("invalid oracle rate", "error", err)
		os.Exit(1)
	}

	splitterAddr, err := config.ParseAddress(cfg.Splitter.Address)
	if err != nil {
		logger.Error("invalid splitter address", "error", err)
		os.Exit(1)
	}
	client, _ := config.ParseAddress(cfg.Splitter.Client)
	starbase, _ := config.ParseAddress(cfg.Splitter.Starbase)
	funds, err := splitter.New(splitterAddr, client, starbase, cfg.Splitter.StarbaseBps)
	if err != nil {
		logger.Error("invalid splitter configuration", "error", err)
		os.Exit(1)
	}
	funds.SetState(manager)

	saleParams, err := cfg.SaleParams()
	if err != nil {
		logger.Error("invalid sale parameters", "error", err)
		os.Exit(1)
	}
	tokenPool, err := cfg.TokenPool()
	if err != nil {
		logger.Error("invalid token pool", "error", err)
		os.Exit(1)
	}

	registry := factory.New(operator)
	registry.SetEmitter(emitter)

	template := &factory.Template{
		State:      manager,
		Emitter:    emitter,
		Membership: members,
		Converter:  oracle,
		Router:     funds,
	}

	engine, saleID, err := bootstrapSale(registry, operator, template, saleParams, tokenPool)
	if err != nil {
		logger.Error("failed to bootstrap sale", "error", err)
		os.Exit(1)
	}
	vault := engine.Vault()
	logger.Info("sale instance ready",
		"saleId", hex.EncodeToString(saleID[:]),
		"vault", "0x"+hex.EncodeToString(vault[:]))

	var pool *staking.Pool
	if cfg.Staking.Enabled {
		stakingVault, err := config.ParseAddress(cfg.Staking.Vault)
		if err != nil {
			logger.Error("invalid staking vault", "error", err)
			os.Exit(1)
		}
		pool = staking.NewPool(stakingVault, cfg.Staking.StartTime, cfg.Staking.EndTime, cfg.Staking.TopRanks)
		pool.SetState(manager)
		pool.SetEmitter(emitter)
		if err := pool.Load(); err != nil {
			logger.Error("failed to load staking entries", "error", err)
			os.Exit(1)
		}
		logger.Info("staking pool enabled", "topRanks", cfg.Staking.TopRanks)
	}

	srv := &server{log: logger, engine: engine, whitelist: members, staking: pool, operator: operator, state: manager}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sale/buy", srv.handleBuy)
	mux.HandleFunc("POST /sale/finalize", srv.handleFinalize)
	mux.HandleFunc("POST /sale/withdraw", srv.handleWithdraw)
	mux.HandleFunc("GET /sale/status", srv.handleStatus)
	mux.HandleFunc("POST /whitelist/add", srv.handleWhitelistAdd)
	mux.HandleFunc("POST /whitelist/remove", srv.handleWhitelistRemove)
	mux.HandleFunc("POST /accounts/credit", srv.handleAccountCredit)
	mux.HandleFunc("GET /accounts/balance", srv.handleAccountBalance)
	if pool != nil {
		mux.HandleFunc("POST /staking/deposit", srv.handleStakeDeposit)
		mux.HandleFunc("POST /staking/withdraw", srv.handleStakeWithdraw)
		mux.HandleFunc("GET /staking/ranks", srv.handleStakeRanks)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	logger.Info("saled listening", "address", cfg.ListenAddress)
	if err := http.ListenAndServe(cfg.ListenAddress, mux); err != nil {
		logger.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}

// bootstrapSale instantiates the configured sale through the clone factory,
// wiring a fresh token ledger. In minting mode the ledger authority is handed
// to the sale vault; in transfer mode the configured token pool is minted into
// the vault instead, so purchases draw down a fixed allotment. The ledger is
// rebuilt on every process start, so both steps repeat on restart.
func bootstrapSale(registry *factory.Factory, operator [20]byte, template *factory.Template, params sale.Config, tokenPool *big.Int) (*sale.Engine, [32]byte, error) {
	if err := registry.SetTemplate(operator, template); err != nil {
		return nil, [32]byte{}, err
	}
	// The ledger authority must be the instance vault, which is only known
	// once the id is derived; seed with the operator and hand over below.
	ledger := token.NewLedger(operator)
	template.Token = ledger
	engine, id, err := registry.Create(operator, params)
	if errors.Is(err, sale.ErrAlreadyInitialized) {
		engine, id, err = registry.Load(operator, 0)
	}
	if err != nil {
		return nil, [32]byte{}, err
	}
	if params.Minting {
		if err := ledger.TransferAuthority(operator, engine.Vault()); err != nil {
			return nil, [32]byte{}, err
		}
	} else if err := ledger.Mint(operator, engine.Vault(), tokenPool); err != nil {
		return nil, [32]byte{}, err
	}
	return engine, id, nil
}

type buyRequest struct {
	Buyer string `json:"buyer"`
	ETH   string `json:"eth"`
	STAR  string `json:"star"`
}

func (s *server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	buyer, err := config.ParseAddress(req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	eth, err := parseAmount(req.ETH)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	star, err := parseAmount(req.STAR)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.engine.Buy(buyer, eth, star)
	if err != nil {
		metrics.Sale().ObserveRejection(rejectionReason(err))
		writeError(w, statusFor(err), err)
		return
	}
	if receipt.AcceptedETH.Sign() > 0 {
		metrics.Sale().ObservePurchase(sale.TokenETH)
	}
	if receipt.AcceptedSTAR.Sign() > 0 {
		metrics.Sale().ObservePurchase(sale.TokenSTAR)
	}
	tokens, _ := new(big.Float).SetInt(receipt.Tokens).Float64()
	metrics.Sale().ObserveTokensSold(tokens)
	writeJSON(w, map[string]string{
		"tokens":       receipt.Tokens.String(),
		"acceptedEth":  receipt.AcceptedETH.String(),
		"acceptedStar": receipt.AcceptedSTAR.String(),
		"refundedEth":  receipt.RefundedETH.String(),
		"refundedStar": receipt.RefundedSTAR.String(),
		"rate":         receipt.Rate.String(),
	})
}

func (s *server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.Finalize()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	outcome := "failure"
	if record.Successful {
		outcome = "success"
	}
	metrics.Sale().ObserveFinalization(outcome)
	s.log.Info("sale finalized", "outcome", outcome, "tokensSold", record.TokensSold.String())
	writeJSON(w, map[string]string{"outcome": outcome, "tokensSold": record.TokensSold.String()})
}

type withdrawRequest struct {
	Account string `json:"account"`
}

func (s *server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := config.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	eth, star, err := s.engine.Withdraw(account)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	metrics.Sale().ObserveRefund()
	writeJSON(w, map[string]string{"eth": eth.String(), "star": star.String()})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.Sale()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]string{
		"tokensSold":     record.TokensSold.String(),
		"raisedEth":      record.RaisedETH.String(),
		"raisedStar":     record.RaisedSTAR.String(),
		"escrowedEth":    record.EscrowedETH.String(),
		"escrowedStar":   record.EscrowedSTAR.String(),
		"softCapReached": strconv.FormatBool(record.SoftCapReached),
		"finalized":      strconv.FormatBool(record.Finalized),
		"paused":         strconv.FormatBool(record.Paused),
		"rateIndex":      strconv.Itoa(record.RateIndex),
	})
}

type membersRequest struct {
	Members []string `json:"members"`
}

func (s *server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateWhitelist(w, r, s.whitelist.AddMany)
}

func (s *server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateWhitelist(w, r, s.whitelist.RemoveMany)
}

func (s *server) mutateWhitelist(w http.ResponseWriter, r *http.Request, apply func([20]byte, [][20]byte) error) {
	var req membersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	members := make([][20]byte, 0, len(req.Members))
	for _, raw := range req.Members {
		member, err := config.ParseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		members = append(members, member)
	}
	if err := apply(s.operator, members); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, map[string]int{"count": len(members)})
}

type creditRequest struct {
	Account string `json:"account"`
	ETH     string `json:"eth"`
	STAR    string `json:"star"`
}

// handleAccountCredit tops up an internal account, mirroring an external
// deposit observed by the operator.
func (s *server) handleAccountCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := config.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	eth, err := parseAmount(req.ETH)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	star, err := parseAmount(req.STAR)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if eth.Sign() < 0 || star.Sign() < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("credit amounts cannot be negative"))
		return
	}
	acc, err := s.state.GetAccount(account[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if acc == nil {
		acc = &types.Account{BalanceETH: big.NewInt(0), BalanceSTAR: big.NewInt(0)}
	}
	if acc.BalanceETH == nil {
		acc.BalanceETH = big.NewInt(0)
	}
	if acc.BalanceSTAR == nil {
		acc.BalanceSTAR = big.NewInt(0)
	}
	acc.BalanceETH = new(big.Int).Add(acc.BalanceETH, eth)
	acc.BalanceSTAR = new(big.Int).Add(acc.BalanceSTAR, star)
	if err := s.state.PutAccount(account[:], acc); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]string{"eth": acc.BalanceETH.String(), "star": acc.BalanceSTAR.String()})
}

func (s *server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	account, err := config.ParseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	acc, err := s.state.GetAccount(account[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	eth, star := "0", "0"
	if acc != nil {
		if acc.BalanceETH != nil {
			eth = acc.BalanceETH.String()
		}
		if acc.BalanceSTAR != nil {
			star = acc.BalanceSTAR.String()
		}
	}
	writeJSON(w, map[string]string{"eth": eth, "star": star})
}

type stakeRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *server) handleStakeDeposit(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := config.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stake, err := s.staking.Deposit(account, amount)
	if err != nil {
		writeError(w, stakingStatusFor(err), err)
		return
	}
	writeJSON(w, map[string]string{
		"staked": stake.Amount.String(),
		"points": stake.Points.String(),
	})
}

func (s *server) handleStakeWithdraw(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := config.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.staking.WithdrawAll(account)
	if err != nil {
		writeError(w, stakingStatusFor(err), err)
		return
	}
	writeJSON(w, map[string]string{"withdrawn": amount.String()})
}

func (s *server) handleStakeRanks(w http.ResponseWriter, r *http.Request) {
	ranks := s.staking.TopRanks()
	out := make([]string, 0, len(ranks))
	for _, account := range ranks {
		out = append(out, "0x"+hex.EncodeToString(account[:]))
	}
	writeJSON(w, map[string]any{
		"ranks":       out,
		"totalStaked": s.staking.TotalStaked().String(),
	})
}

func stakingStatusFor(err error) int {
	switch {
	case errors.Is(err, staking.ErrOutsideWindow),
		errors.Is(err, staking.ErrStillLocked),
		errors.Is(err, staking.ErrNoStake):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return parsed, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sale.ErrNotActive),
		errors.Is(err, sale.ErrPaused),
		errors.Is(err, sale.ErrAlreadyFinalized),
		errors.Is(err, sale.ErrTooEarlyToFinalize),
		errors.Is(err, sale.ErrNoFunds):
		return http.StatusConflict
	case errors.Is(err, sale.ErrNotWhitelisted), errors.Is(err, whitelist.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, sale.ErrIssuanceAuthority):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, sale.ErrNotActive):
		return "not_active"
	case errors.Is(err, sale.ErrPaused):
		return "paused"
	case errors.Is(err, sale.ErrNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, sale.ErrIssuanceAuthority):
		return "issuance_authority"
	default:
		return "invalid_request"
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
