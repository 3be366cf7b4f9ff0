package chains

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ERC20 is the fungible-token surface the maker consumes.
// Transfers move value from the 'from' account; the received amount may be
// lower than 'amount' for fee-on-transfer tokens.
type ERC20 interface {
	Address() common.Address
	BalanceOf(account common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// Pair is a two-token constant-product venue. The pair is also the ERC20 of
// its own liquidity position.
type Pair interface {
	Address() common.Address
	// Token0 and Token1 are in canonical order (token0 < token1).
	Token0() common.Address
	Token1() common.Address
	GetReserves() (reserve0, reserve1 *big.Int, err error)
	SwapFee() (uint16, error)
	// Burn redeems the liquidity held by the pair itself and sends the
	// underlying tokens to 'to'.
	Burn(to common.Address) (amount0, amount1 *big.Int, err error)
	// Swap sends the requested outputs to 'to' after verifying that the
	// tokens already transferred in keep the fee-adjusted invariant.
	Swap(amount0Out, amount1Out *big.Int, to common.Address, data []byte) error
}

// Factory locates the pair for an unordered token pair.
type Factory interface {
	GetPair(tokenA, tokenB common.Address) (Pair, bool)
}

// Host gives the caller whole-invocation atomicity: state changes made after
// Snapshot are discarded by RevertToSnapshot. Commit makes every change so
// far permanent and invalidates outstanding snapshots.
type Host interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Commit()
}

// LogSink receives notifications once an invocation has committed.
type LogSink interface {
	AddLog(log *types.Log)
}

// Chain bundles every collaborator the maker consumes.
type Chain interface {
	Host
	Factory
	LogSink
	Token(address common.Address) ERC20
}
