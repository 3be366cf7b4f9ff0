package maker

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinSlippage(t *testing.T) {
	testCases := []struct {
		name        string
		netIn       int64
		roundTripIn int64
		slippageBps uint16
		expected    bool
	}{
		{name: "no slippage needs the full amount back", netIn: 10_000, roundTripIn: 10_000, slippageBps: 0, expected: true},
		{name: "no slippage rejects one unit short", netIn: 10_000, roundTripIn: 9_999, slippageBps: 0, expected: false},
		{name: "1% applies twice", netIn: 10_000, roundTripIn: 9_801, slippageBps: 100, expected: true},
		{name: "1% applied once is not enough", netIn: 10_000, roundTripIn: 9_800, slippageBps: 100, expected: false},
		{name: "floor rounds the bound down", netIn: 10, roundTripIn: 9, slippageBps: 1, expected: true},
		{name: "nothing back", netIn: 10, roundTripIn: 0, slippageBps: 4999, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := withinSlippage(big.NewInt(tc.netIn), big.NewInt(tc.roundTripIn), tc.slippageBps)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSwap_RoundTripGate(t *testing.T) {
	testCases := []struct {
		name        string
		reserves    int64
		slippageBps uint16
		expectedOut int64
		expectedErr error
	}{
		{name: "balanced pool at 1 bps", reserves: 1000, slippageBps: 1, expectedOut: 9},
		{name: "balanced pool at 4999 bps", reserves: 1000, slippageBps: 4999, expectedOut: 9},
		{name: "dust pool at 4999 bps", reserves: 1, slippageBps: 4999, expectedErr: ErrSlippageExceeded},
		// 10 in quotes 4 out, and 4 back returns 7 against a floor of
		// 10*(10000-s)^2/10000^2.
		{name: "thin pool at 4999 bps", reserves: 10, slippageBps: 4999, expectedOut: 4},
		{name: "thin pool at 1056 bps", reserves: 10, slippageBps: 1056, expectedOut: 4},
		{name: "thin pool at 1055 bps", reserves: 10, slippageBps: 1055, expectedErr: ErrSlippageExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			pair := f.addPool(t, tokX, weth, tc.reserves, tc.reserves)
			require.NoError(t, f.chain.Mint(tokX, makerAddr, big.NewInt(10)))

			out, err := f.maker.engine.swaps.swap(tokX, weth, big.NewInt(10), makerAddr, tc.slippageBps)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assertBigEqual(t, big.NewInt(tc.expectedOut), out)
			assertBigEqual(t, big.NewInt(tc.expectedOut), f.balance(t, weth, makerAddr))

			reserveIn, reserveOut, err := f.maker.engine.gateway.orderedReserves(pair, tokX)
			require.NoError(t, err)
			assertBigEqual(t, big.NewInt(tc.reserves+10), reserveIn)
			assertBigEqual(t, big.NewInt(tc.reserves-tc.expectedOut), reserveOut)
		})
	}
}

func TestSwap_ZeroAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.maker.engine.swaps.swap(tokX, weth, new(big.Int), makerAddr, 100)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	f.addPool(t, tokX, weth, 1000, 1000)
	before := len(f.chain.Logs())
	out, err := f.maker.engine.swaps.swap(tokX, weth, new(big.Int), makerAddr, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Sign())
	assert.Len(t, f.chain.Logs(), before)
}

func TestGateway_TransferInMeasuresReceived(t *testing.T) {
	f := newFixture(t)
	pair := f.addPool(t, tax, weth, 1_000_000, 1_000_000)
	require.NoError(t, f.chain.Mint(tax, makerAddr, big.NewInt(10_000)))

	netIn, err := f.maker.engine.gateway.transferIn(pair, tax, big.NewInt(10_000))
	require.NoError(t, err)
	assertBigEqual(t, big.NewInt(9_900), netIn)
}

func TestGateway_ExecuteSwapUsesCanonicalSlot(t *testing.T) {
	for _, from := range []common.Address{tokX, weth} {
		t.Run(from.Hex(), func(t *testing.T) {
			f := newFixture(t)
			pair := f.addPool(t, tokX, weth, 1000, 1000)
			require.NoError(t, f.chain.Mint(from, makerAddr, big.NewInt(10)))

			netIn, err := f.maker.engine.gateway.transferIn(pair, from, big.NewInt(10))
			require.NoError(t, err)
			require.Equal(t, "10", netIn.String())

			received, err := f.maker.engine.gateway.executeSwap(pair, from, big.NewInt(9), makerAddr)
			require.NoError(t, err)
			assertBigEqual(t, big.NewInt(9), received)
		})
	}
}
