// Package maker converts a treasury's liquidity positions and loose token
// balances into a single target asset and splits the proceeds between a dev
// address and a staking address.
//
// Every public entry point runs as one invocation against a chains.Chain:
// it either completes and emits its notifications, or it fails and leaves
// no trace on the chain.
package maker

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/defistate/defistate-maker-go/chains"
	"github.com/defistate/defistate-maker-go/maker/logs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CallContext identifies who is invoking the maker. Sender is the immediate
// caller and Origin the account that initiated the whole call chain.
type CallContext struct {
	Sender common.Address
	Origin common.Address
}

// InitiatorPolicy decides whether a call may trigger a conversion before
// the authorized-caller set is consulted.
type InitiatorPolicy func(call CallContext) bool

// DirectInitiatorOnly admits a call only when the sender initiated it
// itself. It screens out calls composed inside another contract, such as a
// flash loan, but it is a heuristic with known bypasses and not a security
// boundary.
func DirectInitiatorOnly(call CallContext) bool {
	return call.Sender == call.Origin
}

// Config holds the dependencies and initial settings of a Maker.
type Config struct {
	Name          string
	Address       common.Address
	Chain         chains.Chain
	Owner         common.Address
	BaseAsset     common.Address
	TargetAsset   common.Address
	DevAddr       common.Address
	StakingAddr   common.Address
	DevCut        *uint16 // nil selects DefaultDevCutBps
	PrometheusReg prometheus.Registerer
	Logger        Logger
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Chain == nil {
		return errors.New("config: Chain is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.PrometheusReg == nil {
		return errors.New("config: PrometheusReg is required")
	}
	zero := common.Address{}
	if c.Address == zero {
		return errors.New("config: Address is required")
	}
	if c.Owner == zero {
		return errors.New("config: Owner is required")
	}
	if c.BaseAsset == zero {
		return errors.New("config: BaseAsset is required")
	}
	if c.TargetAsset == zero {
		return errors.New("config: TargetAsset is required")
	}
	if c.DevAddr == zero {
		return errors.New("config: DevAddr is required")
	}
	if c.StakingAddr == zero {
		return errors.New("config: StakingAddr is required")
	}
	if c.DevCut != nil && *c.DevCut > MaxDevCutBps {
		return fmt.Errorf("config: DevCut %d exceeds %d bps", *c.DevCut, MaxDevCutBps)
	}
	return nil
}

// Option configures a Maker.
type Option interface {
	apply(*Maker)
}

type funcOption func(*Maker)

func (f funcOption) apply(m *Maker) {
	f(m)
}

// WithInitiatorPolicy replaces DirectInitiatorOnly. A nil policy is ignored.
func WithInitiatorPolicy(policy InitiatorPolicy) Option {
	return funcOption(func(m *Maker) {
		if policy != nil {
			m.initiatorPolicy = policy
		}
	})
}

// WithMaxHops bounds the routing steps a single pair may take. Values below
// one are ignored.
func WithMaxHops(n int) Option {
	return funcOption(func(m *Maker) {
		if n > 0 {
			m.bridges.maxHops = n
		}
	})
}

// Maker is the treasury converter. Its methods are safe for concurrent use;
// invocations are serialized.
type Maker struct {
	mu sync.Mutex

	name            string
	address         common.Address
	chain           chains.Chain
	settings        *settings
	access          *accessControl
	bridges         *bridgeRegistry
	engine          *conversionEngine
	initiatorPolicy InitiatorPolicy
	metrics         *Metrics
	logger          Logger
}

// New creates a Maker from cfg.
func New(cfg *Config, opts ...Option) (*Maker, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid maker configuration: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "maker"
	}
	devCut := uint16(DefaultDevCutBps)
	if cfg.DevCut != nil {
		devCut = *cfg.DevCut
	}

	s := &settings{
		targetAsset: cfg.TargetAsset,
		baseAsset:   cfg.BaseAsset,
		devAddr:     cfg.DevAddr,
		stakingAddr: cfg.StakingAddr,
		devCut:      devCut,
	}
	m := &Maker{
		name:            name,
		address:         cfg.Address,
		chain:           cfg.Chain,
		settings:        s,
		access:          newAccessControl(cfg.Owner),
		bridges:         newBridgeRegistry(cfg.BaseAsset, DefaultMaxHops),
		initiatorPolicy: DirectInitiatorOnly,
		logger:          cfg.Logger,
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	m.metrics = NewMetrics(cfg.PrometheusReg, name, m.bridges.maxHops)

	gateway := &poolGateway{chain: cfg.Chain, self: cfg.Address}
	m.engine = &conversionEngine{
		self:     cfg.Address,
		settings: s,
		bridges:  m.bridges,
		gateway:  gateway,
		swaps: &swapExecutor{
			gateway: gateway,
			onSwap:  m.metrics.SwapsTotal.Inc,
		},
		distributor: &distributor{chain: cfg.Chain, self: cfg.Address, settings: s},
		logger:      cfg.Logger,
	}

	m.logger.Info("Maker created",
		"name", name, "address", cfg.Address.Hex(),
		"target", cfg.TargetAsset.Hex(), "base", cfg.BaseAsset.Hex(),
		"devCut", devCut, "maxHops", m.bridges.maxHops)
	return m, nil
}

// Address returns the account the maker holds its treasury in.
func (m *Maker) Address() common.Address {
	return m.address
}

// --- Conversions ---

// Convert converts the maker's holdings for one token pair and returns the
// amount of target asset distributed.
func (m *Maker) Convert(call CallContext, token0, token1 common.Address, slippageBps uint16) (*big.Int, error) {
	results, err := m.ConvertBatch(call, []common.Address{token0}, []common.Address{token1}, slippageBps)
	if err != nil {
		return nil, err
	}
	return results[0].TargetOut, nil
}

// ConvertMultiple converts every (token0s[i], token1s[i]) pair in one
// invocation. A failure on any pair undoes all of them.
func (m *Maker) ConvertMultiple(call CallContext, token0s, token1s []common.Address, slippageBps uint16) ([]*big.Int, error) {
	results, err := m.ConvertBatch(call, token0s, token1s, slippageBps)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(results))
	for i, r := range results {
		out[i] = r.TargetOut
	}
	return out, nil
}

// ConvertBatch is ConvertMultiple with a full report per pair.
func (m *Maker) ConvertBatch(call CallContext, token0s, token1s []common.Address, slippageBps uint16) ([]ConvertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	results, err := m.convertBatch(call, token0s, token1s, slippageBps)
	m.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.ConversionsTotal.WithLabelValues("failure").Inc()
		m.recordError(err)
		return nil, err
	}

	m.metrics.ConversionsTotal.WithLabelValues("success").Inc()
	for _, r := range results {
		m.metrics.RouteHops.Observe(float64(r.Hops))
		f, _ := new(big.Float).SetInt(r.TargetOut).Float64()
		m.metrics.TargetDistributed.Add(f)
	}
	return results, nil
}

func (m *Maker) convertBatch(call CallContext, token0s, token1s []common.Address, slippageBps uint16) ([]ConvertResult, error) {
	if !m.initiatorPolicy(call) {
		return nil, fmt.Errorf("%w: %s is not the initiating account", ErrUnauthorized, call.Sender.Hex())
	}
	if err := m.access.requireAuthorized(call.Sender); err != nil {
		return nil, err
	}
	if slippageBps >= MaxSlippageBps {
		return nil, &ConfigError{Field: "slippage", Err: fmt.Errorf("%w: %d bps is not below %d", ErrInvalidConfiguration, slippageBps, MaxSlippageBps)}
	}
	if len(token0s) != len(token1s) {
		return nil, fmt.Errorf("%w: %d token0s, %d token1s", ErrArityMismatch, len(token0s), len(token1s))
	}

	snapshot := m.chain.Snapshot()
	results := make([]ConvertResult, 0, len(token0s))
	pending := make([]*types.Log, 0, len(token0s))
	for i := range token0s {
		result, err := m.engine.convert(token0s[i], token1s[i], slippageBps)
		if err == nil {
			var log *types.Log
			log, err = logs.Convert(m.address, call.Sender, result.Token0, result.Token1, result.Amount0, result.Amount1, result.TargetOut)
			pending = append(pending, log)
		}
		if err != nil {
			m.chain.RevertToSnapshot(snapshot)
			return nil, &ConversionError{Index: i, Token0: token0s[i], Token1: token1s[i], Err: err}
		}
		results = append(results, result)
	}

	for _, log := range pending {
		m.chain.AddLog(log)
	}
	m.chain.Commit()
	m.logger.Info("Converted", "sender", call.Sender.Hex(), "pairs", len(results), "slippageBps", slippageBps)
	return results, nil
}

// --- Configuration ---

// BridgeFor returns the token that token is routed through.
func (m *Maker) BridgeFor(token common.Address) common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bridges.bridgeFor(token)
}

// SetBridge routes token through bridge. A zero bridge clears the entry so
// the token falls back to the base asset. LogBridgeSet carries the previous
// entry, so the first call for a token reports a zero old bridge and repeats
// of the same call report identical payloads from the second call on.
func (m *Maker) SetBridge(caller, token, bridge common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "bridge", func() (*types.Log, error) {
		if err := m.bridges.validate(token, bridge, m.settings.targetAsset); err != nil {
			return nil, err
		}
		log, err := logs.BridgeSet(m.address, token, m.bridges.configured(token), bridge)
		if err != nil {
			return nil, err
		}
		m.bridges.set(token, bridge)
		return log, nil
	})
}

// SetDevCut sets the dev share of proceeds, in basis points.
func (m *Maker) SetDevCut(caller common.Address, devCut uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "devCut", func() (*types.Log, error) {
		if devCut > MaxDevCutBps {
			return nil, fmt.Errorf("%w: %d exceeds %d bps", ErrInvalidConfiguration, devCut, MaxDevCutBps)
		}
		log, err := logs.SetDevCut(m.address, devCut)
		if err != nil {
			return nil, err
		}
		m.settings.devCut = devCut
		return log, nil
	})
}

func (m *Maker) SetDevAddr(caller, devAddr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "devAddr", func() (*types.Log, error) {
		if err := requireNonZero(devAddr); err != nil {
			return nil, err
		}
		log, err := logs.DevAddr(m.address, devAddr)
		if err != nil {
			return nil, err
		}
		m.settings.devAddr = devAddr
		return log, nil
	})
}

func (m *Maker) SetTargetAsset(caller, target common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "targetAsset", func() (*types.Log, error) {
		if err := requireNonZero(target); err != nil {
			return nil, err
		}
		log, err := logs.SetTargetAsset(m.address, target)
		if err != nil {
			return nil, err
		}
		m.settings.targetAsset = target
		return log, nil
	})
}

// AddAuthorized admits addr to the authorized-caller set. Adding a member
// twice is a no-op that still emits a notification.
func (m *Maker) AddAuthorized(caller, addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "authorized", func() (*types.Log, error) {
		if err := requireNonZero(addr); err != nil {
			return nil, err
		}
		log, err := logs.AddAuthorized(m.address, addr)
		if err != nil {
			return nil, err
		}
		m.access.add(addr)
		m.metrics.AuthorizedCallers.Set(float64(m.access.count()))
		return log, nil
	})
}

func (m *Maker) RemoveAuthorized(caller, addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "authorized", func() (*types.Log, error) {
		log, err := logs.RemoveAuthorized(m.address, addr)
		if err != nil {
			return nil, err
		}
		m.access.remove(addr)
		m.metrics.AuthorizedCallers.Set(float64(m.access.count()))
		return log, nil
	})
}

// TransferOwnership hands the owner capability to newOwner.
func (m *Maker) TransferOwnership(caller, newOwner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.configure(caller, "owner", func() (*types.Log, error) {
		if err := requireNonZero(newOwner); err != nil {
			return nil, err
		}
		log, err := logs.OwnershipTransferred(m.address, m.access.owner, newOwner)
		if err != nil {
			return nil, err
		}
		m.access.owner = newOwner
		return log, nil
	})
}

// configure runs an owner-gated change. apply validates before it mutates
// anything and returns the notification to emit.
func (m *Maker) configure(caller common.Address, field string, apply func() (*types.Log, error)) error {
	if err := m.access.requireOwner(caller); err != nil {
		m.recordError(err)
		return err
	}
	log, err := apply()
	if err != nil {
		err = &ConfigError{Field: field, Err: err}
		m.recordError(err)
		return err
	}
	m.chain.AddLog(log)
	m.chain.Commit()
	m.logger.Info("Configuration changed", "field", field, "caller", caller.Hex())
	return nil
}

func (m *Maker) recordError(err error) {
	errorType := determineErrorType(err)
	m.logger.Warn("Maker request rejected", "name", m.name, "type", errorType, "error", err)
	m.metrics.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func requireNonZero(addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidConfiguration)
	}
	return nil
}

// --- Views ---

func (m *Maker) Owner() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.owner
}

func (m *Maker) DevCut() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.devCut
}

func (m *Maker) DevAddr() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.devAddr
}

func (m *Maker) TargetAsset() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.targetAsset
}

func (m *Maker) BaseAsset() common.Address {
	return m.settings.baseAsset
}

func (m *Maker) StakingAddr() common.Address {
	return m.settings.stakingAddr
}

// MaxHops returns the routing step bound.
func (m *Maker) MaxHops() int {
	return m.bridges.maxHops
}

// IsAuthorized reports whether addr may trigger conversions.
func (m *Maker) IsAuthorized(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.contains(addr)
}

// AuthorizedAt returns the member at index. Removals reorder members.
func (m *Maker) AuthorizedAt(index int) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.at(index)
}

func (m *Maker) AuthorizedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.count()
}
