package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/sale"
)

// Config is the saled daemon configuration, decoded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	Sale      SaleConfig      `toml:"sale"`
	Oracle    OracleConfig    `toml:"oracle"`
	Splitter  SplitterConfig  `toml:"splitter"`
	Whitelist WhitelistConfig `toml:"whitelist"`
	Staking   StakingConfig   `toml:"staking"`
}

// SaleConfig mirrors the engine's write-once configuration. Amounts are
// decimal strings so caps beyond uint64 survive the TOML round trip.
type SaleConfig struct {
	StartTime    int64           `toml:"StartTime"`
	EndTime      int64           `toml:"EndTime"`
	SoftCap      string          `toml:"SoftCap"`
	CrowdsaleCap string          `toml:"CrowdsaleCap"`
	ETHAccepted  bool            `toml:"ETHAccepted"`
	Minting      bool            `toml:"Minting"`
	TokenPool    string          `toml:"TokenPool"`
	TokenOwner   string          `toml:"TokenOwner"`
	Wallet       string          `toml:"Wallet"`
	Schedule     []ScheduleEntry `toml:"schedule"`
}

// ScheduleEntry is one rate activation of the phased pricing table.
type ScheduleEntry struct {
	Timestamp int64  `toml:"Timestamp"`
	Rate      string `toml:"Rate"`
}

// OracleConfig seeds the STAR/ETH conversion oracle.
type OracleConfig struct {
	Owner       string `toml:"Owner"`
	Numerator   string `toml:"Numerator"`
	Denominator string `toml:"Denominator"`
}

// SplitterConfig wires the funds splitter payees.
type SplitterConfig struct {
	Address     string `toml:"Address"`
	Client      string `toml:"Client"`
	Starbase    string `toml:"Starbase"`
	StarbaseBps uint32 `toml:"StarbaseBps"`
}

// WhitelistConfig sets the whitelist owner.
type WhitelistConfig struct {
	Owner string `toml:"Owner"`
}

// StakingConfig describes the fixed staking window.
type StakingConfig struct {
	Enabled   bool   `toml:"Enabled"`
	Vault     string `toml:"Vault"`
	StartTime int64  `toml:"StartTime"`
	EndTime   int64  `toml:"EndTime"`
	TopRanks  int    `toml:"TopRanks"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8651"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./saled-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Staking.Enabled && cfg.Staking.TopRanks <= 0 {
		cfg.Staking.TopRanks = 100
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.SaleParams(); err != nil {
		return err
	}
	if _, err := ParseAddress(c.Splitter.Client); err != nil {
		return fmt.Errorf("config: splitter client: %w", err)
	}
	if _, err := ParseAddress(c.Splitter.Starbase); err != nil {
		return fmt.Errorf("config: splitter starbase: %w", err)
	}
	if c.Splitter.StarbaseBps > 10_000 {
		return fmt.Errorf("config: splitter share exceeds 100%%")
	}
	if _, err := parseBigInt(c.Oracle.Numerator); err != nil {
		return fmt.Errorf("config: oracle numerator: %w", err)
	}
	if _, err := parseBigInt(c.Oracle.Denominator); err != nil {
		return fmt.Errorf("config: oracle denominator: %w", err)
	}
	if !c.Sale.Minting {
		pool, err := c.TokenPool()
		if err != nil {
			return fmt.Errorf("config: token pool: %w", err)
		}
		if pool.Sign() <= 0 {
			return fmt.Errorf("config: transfer-mode sale requires a positive TokenPool")
		}
	}
	return nil
}

// TokenPool returns the issued-asset allotment pre-funded into the sale vault
// for a transfer-mode sale. Minting-mode sales leave it empty.
func (c *Config) TokenPool() (*big.Int, error) {
	if strings.TrimSpace(c.Sale.TokenPool) == "" {
		return big.NewInt(0), nil
	}
	return parseBigInt(c.Sale.TokenPool)
}

// SaleParams converts the TOML sale section into the engine configuration.
func (c *Config) SaleParams() (sale.Config, error) {
	softCap, err := parseBigInt(c.Sale.SoftCap)
	if err != nil {
		return sale.Config{}, fmt.Errorf("config: soft cap: %w", err)
	}
	crowdsaleCap, err := parseBigInt(c.Sale.CrowdsaleCap)
	if err != nil {
		return sale.Config{}, fmt.Errorf("config: crowdsale cap: %w", err)
	}
	tokenOwner, err := ParseAddress(c.Sale.TokenOwner)
	if err != nil {
		return sale.Config{}, fmt.Errorf("config: token owner: %w", err)
	}
	wallet, err := ParseAddress(c.Sale.Wallet)
	if err != nil {
		return sale.Config{}, fmt.Errorf("config: wallet: %w", err)
	}
	schedule := make([]sale.RatePoint, 0, len(c.Sale.Schedule))
	for i, entry := range c.Sale.Schedule {
		rate, err := parseBigInt(entry.Rate)
		if err != nil {
			return sale.Config{}, fmt.Errorf("config: schedule entry %d: %w", i, err)
		}
		schedule = append(schedule, sale.RatePoint{Timestamp: entry.Timestamp, Rate: rate})
	}
	return sale.Config{
		StartTime:    c.Sale.StartTime,
		EndTime:      c.Sale.EndTime,
		SoftCap:      softCap,
		CrowdsaleCap: crowdsaleCap,
		ETHAccepted:  c.Sale.ETHAccepted,
		Minting:      c.Sale.Minting,
		TokenOwner:   tokenOwner,
		Wallet:       wallet,
		Schedule:     schedule,
	}, nil
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", value)
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("value required")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	return parsed, nil
}
