package uniswapv2

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps is the largest swap fee a pair may charge (100%).
const MaxFeeBps uint16 = 10000

// Pool is a point-in-time view of a constant-product pair.
type Pool struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
	FeeBps   uint16         `json:"feeBps"` // i.e 30 for 0.3%
}

// SortTokens returns the pair in canonical order (token0 < token1).
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// PairKey is an order-independent identifier for a token pair.
type PairKey struct {
	Token0 common.Address
	Token1 common.Address
}

// NewPairKey builds the canonical key for tokenA/tokenB.
func NewPairKey(tokenA, tokenB common.Address) PairKey {
	t0, t1 := SortTokens(tokenA, tokenB)
	return PairKey{Token0: t0, Token1: t1}
}
