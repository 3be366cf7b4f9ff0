package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/defistate/defistate-maker-go/maker"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry/indexer"
	uniswapv2 "github.com/defistate/defistate-maker-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRPCAddr     = "127.0.0.1:8545"
	DefaultMetricsAddr = "127.0.0.1:9100"
)

// DefaultLiquidityProvider funds the configured pools when no provider is set.
var DefaultLiquidityProvider = common.HexToAddress("0x000000000000000000000000000000000000bEEF")

// Amount is a non-negative integer written in YAML as a decimal string or
// number, so that 18-decimal quantities survive.
type Amount struct {
	*big.Int
}

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	v, ok := new(big.Int).SetString(value.Value, 10)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("line %d: %q is not a non-negative integer", value.Line, value.Value)
	}
	a.Int = v
	return nil
}

// PoolConfig deploys a pair and seeds it from the liquidity provider.
// Tokens are referenced by symbol or address.
type PoolConfig struct {
	TokenA   string `yaml:"tokenA"`
	TokenB   string `yaml:"tokenB"`
	FeeBps   uint16 `yaml:"feeBps"`
	ReserveA Amount `yaml:"reserveA"`
	ReserveB Amount `yaml:"reserveB"`
}

// BalanceConfig mints a loose token balance. A zero account means the maker.
type BalanceConfig struct {
	Token   string         `yaml:"token"`
	Account common.Address `yaml:"account"`
	Amount  Amount         `yaml:"amount"`
}

// PositionConfig gives the maker a liquidity position in an existing pool.
type PositionConfig struct {
	TokenA  string `yaml:"tokenA"`
	TokenB  string `yaml:"tokenB"`
	AmountA Amount `yaml:"amountA"`
	AmountB Amount `yaml:"amountB"`
}

type BridgeConfig struct {
	Token  string `yaml:"token"`
	Bridge string `yaml:"bridge"`
}

// MakerSettings configures the maker itself.
type MakerSettings struct {
	Address     common.Address   `yaml:"address"`
	Owner       common.Address   `yaml:"owner"`
	BaseAsset   string           `yaml:"baseAsset"`
	TargetAsset string           `yaml:"targetAsset"`
	DevAddr     common.Address   `yaml:"devAddr"`
	StakingAddr common.Address   `yaml:"stakingAddr"`
	DevCut      *uint16          `yaml:"devCut"`
	MaxHops     int              `yaml:"maxHops"`
	Bridges     []BridgeConfig   `yaml:"bridges"`
	Authorized  []common.Address `yaml:"authorized"`
}

// MakerConfig is the configuration file of the maker binary.
type MakerConfig struct {
	RPCAddr     string   `yaml:"rpcAddr"`
	MetricsAddr string   `yaml:"metricsAddr"`
	WSOrigins   []string `yaml:"wsOrigins"`
	// RateLimitPerMinute caps RPC requests per client IP. Zero disables it.
	RateLimitPerMinute int                   `yaml:"rateLimitPerMinute"`
	Factory            common.Address        `yaml:"factory"`
	LiquidityProvider  common.Address        `yaml:"liquidityProvider"`
	Tokens             []tokenregistry.Token `yaml:"tokens"`
	Pools              []PoolConfig          `yaml:"pools"`
	Balances           []BalanceConfig       `yaml:"balances"`
	Positions          []PositionConfig      `yaml:"positions"`
	Maker              MakerSettings         `yaml:"maker"`
}

// LoadConfig reads, defaults and validates the configuration at path.
func LoadConfig(path string) (*MakerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (*MakerConfig, error) {
	var cfg MakerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MakerConfig) applyDefaults() {
	if c.RPCAddr == "" {
		c.RPCAddr = DefaultRPCAddr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if len(c.WSOrigins) == 0 {
		c.WSOrigins = []string{"*"}
	}
	if c.LiquidityProvider == (common.Address{}) {
		c.LiquidityProvider = DefaultLiquidityProvider
	}
	if c.Maker.MaxHops == 0 {
		c.Maker.MaxHops = maker.DefaultMaxHops
	}
}

// Index returns the configured tokens indexed for lookup by symbol or address.
func (c *MakerConfig) Index() indexer.IndexedTokenSystem {
	return indexer.New().Index(c.Tokens)
}

// validate checks if the configuration is valid.
func (c *MakerConfig) validate() error {
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: rateLimitPerMinute must not be negative, got %d", c.RateLimitPerMinute)
	}
	if len(c.Tokens) == 0 {
		return errors.New("config: at least one token is required")
	}
	seen := make(map[common.Address]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Address == (common.Address{}) {
			return fmt.Errorf("config: token %q has no address", t.Symbol)
		}
		if _, dup := seen[t.Address]; dup {
			return fmt.Errorf("config: token %s is listed twice", t.Address.Hex())
		}
		if t.TransferTaxBps > uniswapv2.MaxFeeBps {
			return fmt.Errorf("config: token %s transfer tax %d exceeds 10000 bps", t.Address.Hex(), t.TransferTaxBps)
		}
		seen[t.Address] = struct{}{}
	}

	tokens := c.Index()
	resolve := func(what, ref string) error {
		if _, err := tokens.Resolve(ref); err != nil {
			return fmt.Errorf("config: %s: %w", what, err)
		}
		return nil
	}

	for i, p := range c.Pools {
		if err := resolve(fmt.Sprintf("pools[%d].tokenA", i), p.TokenA); err != nil {
			return err
		}
		if err := resolve(fmt.Sprintf("pools[%d].tokenB", i), p.TokenB); err != nil {
			return err
		}
		if p.FeeBps > uniswapv2.MaxFeeBps {
			return fmt.Errorf("config: pools[%d].feeBps %d exceeds 10000", i, p.FeeBps)
		}
		if p.ReserveA.Int == nil || p.ReserveB.Int == nil || p.ReserveA.Sign() == 0 || p.ReserveB.Sign() == 0 {
			return fmt.Errorf("config: pools[%d] needs positive reserves", i)
		}
	}
	for i, b := range c.Balances {
		if err := resolve(fmt.Sprintf("balances[%d].token", i), b.Token); err != nil {
			return err
		}
		if b.Amount.Int == nil {
			return fmt.Errorf("config: balances[%d].amount is required", i)
		}
	}
	for i, p := range c.Positions {
		if err := resolve(fmt.Sprintf("positions[%d].tokenA", i), p.TokenA); err != nil {
			return err
		}
		if err := resolve(fmt.Sprintf("positions[%d].tokenB", i), p.TokenB); err != nil {
			return err
		}
		if p.AmountA.Int == nil || p.AmountB.Int == nil {
			return fmt.Errorf("config: positions[%d] needs both amounts", i)
		}
	}

	m := c.Maker
	zero := common.Address{}
	switch {
	case m.Address == zero:
		return errors.New("config: maker.address is required")
	case m.Owner == zero:
		return errors.New("config: maker.owner is required")
	case m.DevAddr == zero:
		return errors.New("config: maker.devAddr is required")
	case m.StakingAddr == zero:
		return errors.New("config: maker.stakingAddr is required")
	case m.MaxHops < 1:
		return fmt.Errorf("config: maker.maxHops must be positive, got %d", m.MaxHops)
	case m.DevCut != nil && *m.DevCut > maker.MaxDevCutBps:
		return fmt.Errorf("config: maker.devCut %d exceeds %d", *m.DevCut, maker.MaxDevCutBps)
	}
	if err := resolve("maker.baseAsset", m.BaseAsset); err != nil {
		return err
	}
	if err := resolve("maker.targetAsset", m.TargetAsset); err != nil {
		return err
	}
	for i, b := range m.Bridges {
		if err := resolve(fmt.Sprintf("maker.bridges[%d].token", i), b.Token); err != nil {
			return err
		}
		if err := resolve(fmt.Sprintf("maker.bridges[%d].bridge", i), b.Bridge); err != nil {
			return err
		}
	}
	return nil
}
