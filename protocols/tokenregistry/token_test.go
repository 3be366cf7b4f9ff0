package tokenregistry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	testCases := []struct {
		name     string
		decimals uint8
		amount   *big.Int
		want     string
	}{
		{name: "six decimals", decimals: 6, amount: big.NewInt(1_500_000), want: "1.5"},
		{name: "dust", decimals: 18, amount: big.NewInt(1), want: "0.000000000000000001"},
		{name: "no decimals", decimals: 0, amount: big.NewInt(42), want: "42"},
		{name: "nil", decimals: 18, amount: nil, want: "0"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Token{Decimals: tc.decimals}.FormatAmount(tc.amount))
		})
	}
}

func TestHasTransferTax(t *testing.T) {
	assert.False(t, Token{}.HasTransferTax())
	assert.True(t, Token{TransferTaxBps: 100}.HasTransferTax())
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		name        string
		decimals    uint8
		input       string
		want        string
		expectError bool
	}{
		{name: "six decimals", decimals: 6, input: "1.5", want: "1500000"},
		{name: "whole", decimals: 18, input: "2", want: "2000000000000000000"},
		{name: "surrounding space", decimals: 0, input: " 42\n", want: "42"},
		{name: "too precise", decimals: 6, input: "0.0000001", expectError: true},
		{name: "negative", decimals: 6, input: "-1", expectError: true},
		{name: "not a number", decimals: 6, input: "abc", expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token := Token{Decimals: tc.decimals}
			got, err := token.ParseAmount(tc.input)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}
