package indexer

import (
	"testing"

	tokenregistry "github.com/defistate/defistate-maker-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableTokenSystem(t *testing.T) {
	// --- Test Data Setup ---
	wethAddress := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddress := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	nonExistentAddress := common.HexToAddress("0x1111111111111111111111111111111111111111")

	testTokens := []tokenregistry.Token{
		{Address: wethAddress, Name: "Wrapped Ether", Symbol: "WETH"},
		{Address: usdcAddress, Name: "USD Coin", Symbol: "USDC"},
	}

	indexer := NewIndexableTokenSystem(testTokens)
	require.NotNil(t, indexer)

	t.Run("Successful Lookups", func(t *testing.T) {
		usdc, found := indexer.GetByAddress(usdcAddress)
		assert.True(t, found, "USDC should be found by its address")
		assert.Equal(t, "USDC", usdc.Symbol)

		weth, found := indexer.GetBySymbol("weth")
		assert.True(t, found, "symbols match case-insensitively")
		assert.Equal(t, wethAddress, weth.Address)
	})

	t.Run("Not Found Lookups", func(t *testing.T) {
		_, found := indexer.GetByAddress(nonExistentAddress)
		assert.False(t, found)

		_, found = indexer.GetBySymbol("DAI")
		assert.False(t, found)
	})

	t.Run("Resolve", func(t *testing.T) {
		testCases := []struct {
			name        string
			ref         string
			expected    common.Address
			expectedErr error
		}{
			{name: "by symbol", ref: "USDC", expected: usdcAddress},
			{name: "by address", ref: wethAddress.Hex(), expected: wethAddress},
			{name: "by lower-case address", ref: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", expected: wethAddress},
			{name: "unknown address", ref: nonExistentAddress.Hex(), expectedErr: ErrTokenNotFound},
			{name: "unknown symbol", ref: "DAI", expectedErr: ErrTokenNotFound},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				token, err := indexer.Resolve(tc.ref)
				if tc.expectedErr != nil {
					assert.ErrorIs(t, err, tc.expectedErr)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.expected, token.Address)
			})
		}
	})

	t.Run("Ambiguous Symbol", func(t *testing.T) {
		clash := NewIndexableTokenSystem(append(testTokens,
			tokenregistry.Token{Address: nonExistentAddress, Symbol: "usdc"}))

		_, found := clash.GetBySymbol("USDC")
		assert.False(t, found)
		_, err := clash.Resolve("USDC")
		assert.ErrorIs(t, err, ErrAmbiguousSymbol)

		token, err := clash.Resolve(usdcAddress.Hex())
		require.NoError(t, err)
		assert.Equal(t, "USDC", token.Symbol)
	})

	t.Run("All Method", func(t *testing.T) {
		allTokens := indexer.All()
		assert.Len(t, allTokens, 2, "All() should return 2 tokens")

		allTokens[0].Symbol = "MODIFIED"
		original, _ := indexer.GetByAddress(wethAddress)
		assert.Equal(t, "WETH", original.Symbol, "Modifying the returned slice should not affect the internal state")
	})

	t.Run("Edge Case - Nil Slice", func(t *testing.T) {
		nilIndexer := New().Index(nil)
		require.NotNil(t, nilIndexer)

		_, found := nilIndexer.GetBySymbol("WETH")
		assert.False(t, found)

		allTokens := nilIndexer.All()
		assert.Len(t, allTokens, 0)
		assert.NotNil(t, allTokens, "All() should return an empty slice, not nil")
	})
}
