package maker

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-maker-go/chains"
	"github.com/ethereum/go-ethereum/common"
)

// poolGateway talks to pairs on behalf of the maker. Every amount it reports
// is measured from balances rather than taken from what was requested.
type poolGateway struct {
	chain chains.Chain
	self  common.Address
}

func (g *poolGateway) findPool(tokenA, tokenB common.Address) (chains.Pair, error) {
	pair, ok := g.chain.GetPair(tokenA, tokenB)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return pair, nil
}

// orderedReserves returns the pair's reserves oriented so that reserveIn
// belongs to tokenIn.
func (g *poolGateway) orderedReserves(pair chains.Pair, tokenIn common.Address) (reserveIn, reserveOut *big.Int, err error) {
	reserve0, reserve1, err := pair.GetReserves()
	if err != nil {
		return nil, nil, fmt.Errorf("reserves of %s: %w", pair.Address().Hex(), err)
	}
	if tokenIn == pair.Token0() {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// transferIn moves amount of token from the maker to the pair and returns
// what the pair actually received.
func (g *poolGateway) transferIn(pair chains.Pair, token common.Address, amount *big.Int) (*big.Int, error) {
	erc20 := g.chain.Token(token)
	netIn, err := balanceDelta(erc20, pair.Address(), func() error {
		return erc20.Transfer(g.self, pair.Address(), amount)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer %s of %s to %s: %w", amount, token.Hex(), pair.Address().Hex(), err)
	}
	return netIn, nil
}

// executeSwap asks the pair for amountOut of the token opposite fromToken,
// placed on the output slot that matches the pair's canonical ordering, and
// returns what recipient actually received.
func (g *poolGateway) executeSwap(pair chains.Pair, fromToken common.Address, amountOut *big.Int, recipient common.Address) (*big.Int, error) {
	amount0Out, amount1Out := new(big.Int), new(big.Int).Set(amountOut)
	toToken := pair.Token1()
	if fromToken != pair.Token0() {
		amount0Out, amount1Out = amount1Out, amount0Out
		toToken = pair.Token0()
	}

	received, err := balanceDelta(g.chain.Token(toToken), recipient, func() error {
		return pair.Swap(amount0Out, amount1Out, recipient, []byte{})
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// burn sends the maker's whole position in pair back to the pair, redeems it
// and returns the amounts of tokenA and tokenB the maker gained.
func (g *poolGateway) burn(pair chains.Pair, tokenA, tokenB common.Address) (amountA, amountB *big.Int, err error) {
	position := g.chain.Token(pair.Address())
	liquidity, err := position.BalanceOf(g.self)
	if err != nil {
		return nil, nil, err
	}
	if err := position.Transfer(g.self, pair.Address(), liquidity); err != nil {
		return nil, nil, fmt.Errorf("return position to %s: %w", pair.Address().Hex(), err)
	}

	ercA, ercB := g.chain.Token(tokenA), g.chain.Token(tokenB)
	beforeA, err := ercA.BalanceOf(g.self)
	if err != nil {
		return nil, nil, err
	}
	beforeB, err := ercB.BalanceOf(g.self)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := pair.Burn(g.self); err != nil {
		return nil, nil, fmt.Errorf("burn %s: %w", pair.Address().Hex(), err)
	}
	afterA, err := ercA.BalanceOf(g.self)
	if err != nil {
		return nil, nil, err
	}
	afterB, err := ercB.BalanceOf(g.self)
	if err != nil {
		return nil, nil, err
	}
	return afterA.Sub(afterA, beforeA), afterB.Sub(afterB, beforeB), nil
}

// balanceDelta runs fn and returns how much account's balance of token grew.
func balanceDelta(token chains.ERC20, account common.Address, fn func() error) (*big.Int, error) {
	before, err := token.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	if err := fn(); err != nil {
		return nil, err
	}
	after, err := token.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	return after.Sub(after, before), nil
}
