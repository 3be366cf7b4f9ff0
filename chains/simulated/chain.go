// Package simulated is an in-memory chain that implements chains.Chain.
// It keeps token ledgers, fee-on-transfer tokens and constant-product pairs,
// and journals every state change so a whole invocation can be rolled back.
package simulated

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-maker-go/chains"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/defistate-maker-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
)

// DefaultFactoryAddress is the factory address pairs are derived from when
// none is configured.
var DefaultFactoryAddress = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")

// pairInitCodeHash is the CREATE2 init code hash used to derive pair addresses.
var pairInitCodeHash = crypto.Keccak256([]byte("defistate-maker/simulated/pair@v1"))

var (
	ErrUnknownToken                = errors.New("unknown token")
	ErrUnknownPair                 = errors.New("unknown pair")
	ErrTokenExists                 = errors.New("token already registered")
	ErrPairExists                  = errors.New("pair already exists")
	ErrIdenticalAddresses          = errors.New("identical addresses")
	ErrZeroAddress                 = errors.New("zero address")
	ErrInsufficientBalance         = errors.New("transfer amount exceeds balance")
	ErrOverflow                    = errors.New("amount overflows uint256")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInvalidTo                   = errors.New("invalid to")
	ErrK                           = errors.New("constant product invariant violated")
)

type tokenState struct {
	meta        tokenregistry.Token
	balances    map[common.Address]*uint256.Int
	totalSupply *uint256.Int
}

type pairState struct {
	address  common.Address
	token0   common.Address
	token1   common.Address
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	feeBps   uint16
}

// Chain is a single-ledger, journaled, in-memory chain.
// All methods are safe for concurrent use; a snapshot/revert sequence is only
// meaningful when the caller serializes its own invocations.
type Chain struct {
	mu        sync.Mutex
	factory   common.Address
	tokens    map[common.Address]*tokenState
	pairs     map[common.Address]*pairState
	pairIndex map[uniswapv2.PairKey]common.Address
	journal   journal
	logs      []*types.Log
	logFeed   event.Feed
}

var _ chains.Chain = (*Chain)(nil)

// New creates an empty chain whose pairs are derived from factory.
// A zero factory selects DefaultFactoryAddress.
func New(factory common.Address) *Chain {
	if factory == (common.Address{}) {
		factory = DefaultFactoryAddress
	}
	return &Chain{
		factory:   factory,
		tokens:    make(map[common.Address]*tokenState),
		pairs:     make(map[common.Address]*pairState),
		pairIndex: make(map[uniswapv2.PairKey]common.Address),
	}
}

// --- Setup ---

// AddToken registers a token. Registration is not journaled.
func (c *Chain) AddToken(meta tokenregistry.Token) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if meta.Address == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if meta.TransferTaxBps > uniswapv2.MaxFeeBps {
		return nil, fmt.Errorf("token %s: transfer tax %d exceeds 10000 bps", meta.Address.Hex(), meta.TransferTaxBps)
	}
	if _, exists := c.tokens[meta.Address]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, meta.Address.Hex())
	}
	c.tokens[meta.Address] = &tokenState{
		meta:        meta,
		balances:    make(map[common.Address]*uint256.Int),
		totalSupply: new(uint256.Int),
	}
	return &Token{chain: c, address: meta.Address}, nil
}

// CreatePair deploys a pair for tokenA/tokenB at its CREATE2 address.
// Deployment is not journaled.
func (c *Chain) CreatePair(tokenA, tokenB common.Address, feeBps uint16) (*Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tokenA == tokenB {
		return nil, ErrIdenticalAddresses
	}
	if feeBps > uniswapv2.MaxFeeBps {
		return nil, fmt.Errorf("pair fee %d exceeds 10000 bps", feeBps)
	}
	for _, t := range []common.Address{tokenA, tokenB} {
		if _, ok := c.tokens[t]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToken, t.Hex())
		}
	}

	key := uniswapv2.NewPairKey(tokenA, tokenB)
	if _, exists := c.pairIndex[key]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairExists, key.Token0.Hex(), key.Token1.Hex())
	}

	address := PairAddress(c.factory, tokenA, tokenB)
	c.pairs[address] = &pairState{
		address:  address,
		token0:   key.Token0,
		token1:   key.Token1,
		reserve0: new(uint256.Int),
		reserve1: new(uint256.Int),
		feeBps:   feeBps,
	}
	c.pairIndex[key] = address
	c.tokens[address] = &tokenState{
		meta: tokenregistry.Token{
			Address:  address,
			Name:     "Liquidity Position",
			Symbol:   "LP",
			Decimals: 18,
		},
		balances:    make(map[common.Address]*uint256.Int),
		totalSupply: new(uint256.Int),
	}
	return &Pair{Token{chain: c, address: address}}, nil
}

// PairAddress derives the CREATE2 address of the tokenA/tokenB pair.
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	token0, token1 := uniswapv2.SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, pairInitCodeHash)
}

// Mint credits amount of token to account and grows the supply.
func (c *Chain) Mint(token, to common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tokens[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, v)
	if overflow {
		return ErrOverflow
	}
	c.setSupply(t, supply)
	c.setBalance(t, to, new(uint256.Int).Add(c.balance(t, to), v))
	return nil
}

// --- chains.Chain ---

// Snapshot returns an identifier for the current state.
func (c *Chain) Snapshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.journal.length()
}

// RevertToSnapshot discards every change made after the snapshot was taken.
func (c *Chain) RevertToSnapshot(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id < 0 || id > c.journal.length() {
		panic(fmt.Sprintf("snapshot %d cannot be reverted (journal length %d)", id, c.journal.length()))
	}
	c.journal.revertTo(c, id)
}

// Commit drops the journal. Snapshots taken before it can no longer be
// reverted.
func (c *Chain) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal.reset()
}

// GetPair returns the pair for the unordered tokenA/tokenB.
func (c *Chain) GetPair(tokenA, tokenB common.Address) (chains.Pair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	address, ok := c.pairIndex[uniswapv2.NewPairKey(tokenA, tokenB)]
	if !ok {
		return nil, false
	}
	return &Pair{Token{chain: c, address: address}}, true
}

// Token returns a handle to the token at address. Operations on an
// unregistered address fail with ErrUnknownToken.
func (c *Chain) Token(address common.Address) chains.ERC20 {
	return &Token{chain: c, address: address}
}

// AddLog records a committed notification.
func (c *Chain) AddLog(log *types.Log) {
	c.mu.Lock()
	cpy := *log
	cpy.Index = uint(len(c.logs))
	c.logs = append(c.logs, &cpy)
	c.journal.append(logChange{})
	c.mu.Unlock()

	c.logFeed.Send(cpy)
}

// SubscribeLogs delivers every log added after the call to ch. Delivery
// blocks AddLog until ch accepts, so subscribers should drain promptly.
func (c *Chain) SubscribeLogs(ch chan<- types.Log) event.Subscription {
	return c.logFeed.Subscribe(ch)
}

// Logs returns a copy of every committed notification, oldest first.
func (c *Chain) Logs() []types.Log {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Log, len(c.logs))
	for i, l := range c.logs {
		out[i] = *l
	}
	return out
}

// Pool returns a snapshot of the pair at address.
func (c *Chain) Pool(address common.Address) (uniswapv2.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pairs[address]
	if !ok {
		return uniswapv2.Pool{}, fmt.Errorf("%w: %s", ErrUnknownPair, address.Hex())
	}
	return uniswapv2.Pool{
		Address:  p.address,
		Token0:   p.token0,
		Token1:   p.token1,
		Reserve0: p.reserve0.ToBig(),
		Reserve1: p.reserve1.ToBig(),
		FeeBps:   p.feeBps,
	}, nil
}

// --- internal, callers hold c.mu ---

func (c *Chain) token(address common.Address) (*tokenState, error) {
	t, ok := c.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, address.Hex())
	}
	return t, nil
}

func (c *Chain) balance(t *tokenState, account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

// setBalance stores v as the new balance. Stored values are never mutated in
// place so that journal entries keep their previous values intact.
func (c *Chain) setBalance(t *tokenState, account common.Address, v *uint256.Int) {
	c.journal.append(balanceChange{token: t.meta.Address, account: account, prev: t.balances[account]})
	t.balances[account] = v
}

func (c *Chain) setSupply(t *tokenState, v *uint256.Int) {
	c.journal.append(supplyChange{token: t.meta.Address, prev: t.totalSupply})
	t.totalSupply = v
}

func (c *Chain) setReserves(p *pairState, r0, r1 *uint256.Int) {
	c.journal.append(reservesChange{pair: p.address, prev0: p.reserve0, prev1: p.reserve1})
	p.reserve0 = r0
	p.reserve1 = r1
}

// transfer moves amount from 'from' to 'to'. The token's transfer tax is
// withheld from the recipient and burned.
func (c *Chain) transfer(t *tokenState, from, to common.Address, amount *uint256.Int) error {
	fromBalance := c.balance(t, from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), fromBalance.Dec(), t.meta.Address.Hex(), amount.Dec())
	}

	received := new(uint256.Int).Set(amount)
	if t.meta.TransferTaxBps > 0 {
		tax, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(t.meta.TransferTaxBps)), uint256.NewInt(10000))
		received.Sub(received, tax)
		c.setSupply(t, new(uint256.Int).Sub(t.totalSupply, tax))
	}

	c.setBalance(t, from, new(uint256.Int).Sub(fromBalance, amount))
	toBalance, overflow := new(uint256.Int).AddOverflow(c.balance(t, to), received)
	if overflow {
		return ErrOverflow
	}
	c.setBalance(t, to, toBalance)
	return nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %v", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// call runs fn as a single call frame: if fn fails, every change it made is
// undone before the error is returned. Callers hold c.mu.
func (c *Chain) call(fn func() error) error {
	mark := c.journal.length()
	if err := fn(); err != nil {
		c.journal.revertTo(c, mark)
		return err
	}
	return nil
}

func (c *Chain) pair(address common.Address) (*pairState, error) {
	p, ok := c.pairs[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, address.Hex())
	}
	return p, nil
}
