package simulated

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFundedPair(t *testing.T, c *Chain, reserveA, reserveB int64, feeBps uint16) *Pair {
	t.Helper()
	pair, err := c.CreatePair(tokenA, tokenB, feeBps)
	require.NoError(t, err)
	require.NoError(t, c.Mint(tokenA, alice, big.NewInt(reserveA)))
	require.NoError(t, c.Mint(tokenB, alice, big.NewInt(reserveB)))
	_, err = pair.AddLiquidity(alice, big.NewInt(reserveA), big.NewInt(reserveB))
	require.NoError(t, err)
	return pair
}

func TestAddLiquidity(t *testing.T) {
	c := newTestChain(t)
	pair := newFundedPair(t, c, 1000, 4000, 30)

	assertBigEqual(t, big.NewInt(2000), balanceOf(t, c, pair.Address(), alice))
	r0, r1, err := pair.GetReserves()
	require.NoError(t, err)
	assertBigEqual(t, big.NewInt(1000), r0)
	assertBigEqual(t, big.NewInt(4000), r1)

	// A second deposit mints at the lower of the two ratios.
	require.NoError(t, c.Mint(tokenA, bob, big.NewInt(100)))
	require.NoError(t, c.Mint(tokenB, bob, big.NewInt(800)))
	minted, err := pair.AddLiquidity(bob, big.NewInt(100), big.NewInt(800))
	require.NoError(t, err)
	assertBigEqual(t, big.NewInt(200), minted)

	supply, err := pair.TotalSupply()
	require.NoError(t, err)
	assertBigEqual(t, big.NewInt(2200), supply)
}

func TestAddLiquidity_FailureLeavesNoTrace(t *testing.T) {
	c := newTestChain(t)
	pair, err := c.CreatePair(tokenA, tokenB, 30)
	require.NoError(t, err)
	require.NoError(t, c.Mint(tokenA, alice, big.NewInt(1000)))

	_, err = pair.AddLiquidity(alice, big.NewInt(1000), big.NewInt(1000))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assertBigEqual(t, big.NewInt(1000), balanceOf(t, c, tokenA, alice))
	assertBigEqual(t, big.NewInt(0), balanceOf(t, c, tokenA, pair.Address()))
}

func TestBurn(t *testing.T) {
	c := newTestChain(t)
	pair := newFundedPair(t, c, 1000, 4000, 30)

	require.NoError(t, pair.Transfer(alice, pair.Address(), big.NewInt(500)))
	amount0, amount1, err := pair.Burn(bob)
	require.NoError(t, err)

	assertBigEqual(t, big.NewInt(250), amount0)
	assertBigEqual(t, big.NewInt(1000), amount1)
	assertBigEqual(t, big.NewInt(250), balanceOf(t, c, tokenA, bob))
	assertBigEqual(t, big.NewInt(1000), balanceOf(t, c, tokenB, bob))

	r0, r1, err := pair.GetReserves()
	require.NoError(t, err)
	assertBigEqual(t, big.NewInt(750), r0)
	assertBigEqual(t, big.NewInt(3000), r1)

	// Nothing left in the pair to burn.
	_, _, err = pair.Burn(bob)
	assert.ErrorIs(t, err, ErrInsufficientLiquidityBurned)
}

func TestSwap(t *testing.T) {
	testCases := []struct {
		name        string
		amountIn    int64
		amount1Out  int64
		to          common.Address
		expectedErr error
	}{
		{name: "quoted output passes the invariant", amountIn: 10, amount1Out: 9, to: bob},
		{name: "one unit too many breaks the invariant", amountIn: 10, amount1Out: 10, to: bob, expectedErr: ErrK},
		{name: "no input", amountIn: 0, amount1Out: 9, to: bob, expectedErr: ErrInsufficientInputAmount},
		{name: "no output", amountIn: 10, amount1Out: 0, to: bob, expectedErr: ErrInsufficientOutputAmount},
		{name: "output drains reserve", amountIn: 10, amount1Out: 1000, to: bob, expectedErr: ErrInsufficientLiquidity},
		{name: "recipient is a pool token", amountIn: 10, amount1Out: 9, to: tokenB, expectedErr: ErrInvalidTo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestChain(t)
			pair := newFundedPair(t, c, 1000, 1000, 30)
			require.NoError(t, c.Mint(tokenA, bob, big.NewInt(tc.amountIn)))
			if tc.amountIn > 0 {
				require.NoError(t, c.Token(tokenA).Transfer(bob, pair.Address(), big.NewInt(tc.amountIn)))
			}

			err := pair.Swap(big.NewInt(0), big.NewInt(tc.amount1Out), tc.to, nil)
			r0, r1, rerr := pair.GetReserves()
			require.NoError(t, rerr)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assertBigEqual(t, big.NewInt(1000), r0)
				assertBigEqual(t, big.NewInt(1000), r1)
				assertBigEqual(t, big.NewInt(0), balanceOf(t, c, tokenB, bob))
				return
			}
			require.NoError(t, err)
			assertBigEqual(t, big.NewInt(1000+tc.amountIn), r0)
			assertBigEqual(t, big.NewInt(1000-tc.amount1Out), r1)
			assertBigEqual(t, big.NewInt(tc.amount1Out), balanceOf(t, c, tokenB, bob))
		})
	}
}
