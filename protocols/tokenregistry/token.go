package tokenregistry

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token is a safe, structured representation of a fungible token's data.
type Token struct {
	Address  common.Address `json:"address" yaml:"address"`
	Name     string         `json:"name" yaml:"name"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
	// TransferTaxBps is the share of every transfer the token withholds from
	// the recipient (fee-on-transfer tokens). Zero for plain tokens.
	TransferTaxBps uint16 `json:"transferTaxBps" yaml:"transferTaxBps"`
}

// HasTransferTax reports whether the recipient of a transfer may receive
// less than the sender sent.
func (t Token) HasTransferTax() bool {
	return t.TransferTaxBps > 0
}

// FormatAmount renders a base-unit amount in whole tokens, e.g. 1500000 of a
// 6-decimal token is "1.5". A nil amount renders as "0".
func (t Token) FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(t.Decimals)).String()
}

// ParseAmount is the inverse of FormatAmount: "1.5" of a 6-decimal token is
// 1500000. Amounts finer than the token's decimals are rejected.
func (t Token) ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", s)
	}
	shifted := d.Shift(int32(t.Decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", s, t.Decimals)
	}
	return shifted.BigInt(), nil
}
