package simulated

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var bps = big.NewInt(10000)

// Pair is a handle to a constant-product pair. It implements chains.Pair and,
// through the embedded Token, the ERC20 surface of its liquidity position.
type Pair struct {
	Token
}

func (p *Pair) Token0() common.Address {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	return p.chain.pairs[p.address].token0
}

func (p *Pair) Token1() common.Address {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	return p.chain.pairs[p.address].token1
}

func (p *Pair) GetReserves() (*big.Int, *big.Int, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	state, err := p.chain.pair(p.address)
	if err != nil {
		return nil, nil, err
	}
	return state.reserve0.ToBig(), state.reserve1.ToBig(), nil
}

func (p *Pair) SwapFee() (uint16, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	state, err := p.chain.pair(p.address)
	if err != nil {
		return 0, err
	}
	return state.feeBps, nil
}

// AddLiquidity moves amount0 of token0 and amount1 of token1 from provider
// into the pair and mints the liquidity position to provider. Deposits are
// measured after transfer tax. The first deposit mints sqrt(amount0*amount1).
func (p *Pair) AddLiquidity(provider common.Address, amount0, amount1 *big.Int) (*big.Int, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	var liquidity *uint256.Int
	err := p.chain.call(func() error {
		c := p.chain
		state, err := c.pair(p.address)
		if err != nil {
			return err
		}
		t0, t1, lp := c.tokens[state.token0], c.tokens[state.token1], c.tokens[state.address]

		in0, err := toUint256(amount0)
		if err != nil {
			return err
		}
		in1, err := toUint256(amount1)
		if err != nil {
			return err
		}
		if err := c.transfer(t0, provider, state.address, in0); err != nil {
			return err
		}
		if err := c.transfer(t1, provider, state.address, in1); err != nil {
			return err
		}

		balance0, balance1 := c.balance(t0, state.address), c.balance(t1, state.address)
		deposit0 := new(uint256.Int).Sub(balance0, state.reserve0)
		deposit1 := new(uint256.Int).Sub(balance1, state.reserve1)

		if lp.totalSupply.IsZero() {
			product, overflow := new(uint256.Int).MulOverflow(deposit0, deposit1)
			if overflow {
				return ErrOverflow
			}
			liquidity = new(uint256.Int).Sqrt(product)
		} else {
			l0, _ := new(uint256.Int).MulDivOverflow(deposit0, lp.totalSupply, state.reserve0)
			l1, _ := new(uint256.Int).MulDivOverflow(deposit1, lp.totalSupply, state.reserve1)
			liquidity = l0
			if l1.Lt(l0) {
				liquidity = l1
			}
		}
		if liquidity.IsZero() {
			return ErrInsufficientLiquidityMinted
		}

		c.setSupply(lp, new(uint256.Int).Add(lp.totalSupply, liquidity))
		c.setBalance(lp, provider, new(uint256.Int).Add(c.balance(lp, provider), liquidity))
		c.setReserves(state, balance0, balance1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add liquidity to %s: %w", p.address.Hex(), err)
	}
	return liquidity.ToBig(), nil
}

// Burn redeems the liquidity position held by the pair itself, pro rata to
// the pair's token balances, and sends both tokens to 'to'.
func (p *Pair) Burn(to common.Address) (*big.Int, *big.Int, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	var amount0, amount1 *uint256.Int
	err := p.chain.call(func() error {
		c := p.chain
		state, err := c.pair(p.address)
		if err != nil {
			return err
		}
		t0, t1, lp := c.tokens[state.token0], c.tokens[state.token1], c.tokens[state.address]

		liquidity := c.balance(lp, state.address)
		if lp.totalSupply.IsZero() {
			return ErrInsufficientLiquidityBurned
		}
		amount0, _ = new(uint256.Int).MulDivOverflow(liquidity, c.balance(t0, state.address), lp.totalSupply)
		amount1, _ = new(uint256.Int).MulDivOverflow(liquidity, c.balance(t1, state.address), lp.totalSupply)
		if amount0.IsZero() || amount1.IsZero() {
			return ErrInsufficientLiquidityBurned
		}

		c.setBalance(lp, state.address, new(uint256.Int))
		c.setSupply(lp, new(uint256.Int).Sub(lp.totalSupply, liquidity))
		if err := c.transfer(t0, state.address, to, amount0); err != nil {
			return err
		}
		if err := c.transfer(t1, state.address, to, amount1); err != nil {
			return err
		}
		c.setReserves(state, c.balance(t0, state.address), c.balance(t1, state.address))
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("burn %s: %w", p.address.Hex(), err)
	}
	return amount0.ToBig(), amount1.ToBig(), nil
}

// Swap sends the requested outputs to 'to' and then checks that the input
// already sitting in the pair keeps the fee-adjusted constant product.
// Flash-swap callbacks are not supported, so data is ignored.
func (p *Pair) Swap(amount0Out, amount1Out *big.Int, to common.Address, data []byte) error {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	err := p.chain.call(func() error {
		c := p.chain
		state, err := c.pair(p.address)
		if err != nil {
			return err
		}
		t0, t1 := c.tokens[state.token0], c.tokens[state.token1]

		out0, err := toUint256(amount0Out)
		if err != nil {
			return err
		}
		out1, err := toUint256(amount1Out)
		if err != nil {
			return err
		}
		if out0.IsZero() && out1.IsZero() {
			return ErrInsufficientOutputAmount
		}
		if !out0.Lt(state.reserve0) || !out1.Lt(state.reserve1) {
			return ErrInsufficientLiquidity
		}
		if to == state.token0 || to == state.token1 {
			return ErrInvalidTo
		}

		if !out0.IsZero() {
			if err := c.transfer(t0, state.address, to, out0); err != nil {
				return err
			}
		}
		if !out1.IsZero() {
			if err := c.transfer(t1, state.address, to, out1); err != nil {
				return err
			}
		}

		balance0, balance1 := c.balance(t0, state.address), c.balance(t1, state.address)
		in0 := amountIn(balance0, state.reserve0, out0)
		in1 := amountIn(balance1, state.reserve1, out1)
		if in0.Sign() == 0 && in1.Sign() == 0 {
			return ErrInsufficientInputAmount
		}

		fee := big.NewInt(int64(state.feeBps))
		adjusted0 := new(big.Int).Sub(new(big.Int).Mul(balance0.ToBig(), bps), new(big.Int).Mul(in0, fee))
		adjusted1 := new(big.Int).Sub(new(big.Int).Mul(balance1.ToBig(), bps), new(big.Int).Mul(in1, fee))
		k := new(big.Int).Mul(state.reserve0.ToBig(), state.reserve1.ToBig())
		k.Mul(k, bps).Mul(k, bps)
		if new(big.Int).Mul(adjusted0, adjusted1).Cmp(k) < 0 {
			return ErrK
		}

		c.setReserves(state, balance0, balance1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("swap on %s: %w", p.address.Hex(), err)
	}
	return nil
}

// amountIn returns how much of a token arrived in the pair beyond what the
// reserve minus the optimistic output accounts for.
func amountIn(balance, reserve, out *uint256.Int) *big.Int {
	expected := new(big.Int).Sub(reserve.ToBig(), out.ToBig())
	in := new(big.Int).Sub(balance.ToBig(), expected)
	if in.Sign() < 0 {
		return new(big.Int)
	}
	return in
}
