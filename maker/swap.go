package maker

import (
	"fmt"
	"math/big"

	uniswapv2 "github.com/defistate/defistate-maker-go/protocols/uniswapv2"
	calculator "github.com/defistate/defistate-maker-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
)

// MaxSlippageBps is the exclusive ceiling on the slippage a caller may accept.
const MaxSlippageBps = 5000

var slippageScale = big.NewInt(100_000_000) // 10000^2

// swapExecutor performs single hops through the gateway, guarded by a
// round-trip slippage check.
type swapExecutor struct {
	gateway *poolGateway
	onSwap  func()
}

// swap converts amountIn of fromToken into toToken and returns the amount
// recipient received. The quote uses the amount the pair actually received,
// and the hop is rejected unless quoting the output straight back through
// the post-swap pair returns at least amountIn*(1-slippage)^2.
func (s *swapExecutor) swap(fromToken, toToken common.Address, amountIn *big.Int, recipient common.Address, slippageBps uint16) (*big.Int, error) {
	wrap := func(err error) error {
		return &SwapError{TokenIn: fromToken, TokenOut: toToken, AmountIn: new(big.Int).Set(amountIn), Err: err}
	}

	pair, err := s.gateway.findPool(fromToken, toToken)
	if err != nil {
		return nil, wrap(err)
	}
	if amountIn.Sign() == 0 {
		return new(big.Int), nil
	}

	reserveIn, reserveOut, err := s.gateway.orderedReserves(pair, fromToken)
	if err != nil {
		return nil, wrap(err)
	}
	netIn, err := s.gateway.transferIn(pair, fromToken, amountIn)
	if err != nil {
		return nil, wrap(err)
	}
	fee, err := pair.SwapFee()
	if err != nil {
		return nil, wrap(fmt.Errorf("swap fee of %s: %w", pair.Address().Hex(), err))
	}

	quoted := uniswapv2.Pool{
		Address:  pair.Address(),
		Token0:   fromToken,
		Token1:   toToken,
		Reserve0: reserveIn,
		Reserve1: reserveOut,
		FeeBps:   fee,
	}
	amountOut, roundTripIn, err := calculator.RoundTrip(netIn, fromToken, toToken, quoted)
	if err != nil {
		return nil, wrap(err)
	}
	if amountOut.Sign() == 0 {
		return nil, wrap(fmt.Errorf("%w: %s in quotes zero out", ErrSlippageExceeded, netIn))
	}
	if !withinSlippage(netIn, roundTripIn, slippageBps) {
		return nil, wrap(fmt.Errorf("%w: %s in round-trips to %s at %d bps", ErrSlippageExceeded, netIn, roundTripIn, slippageBps))
	}

	received, err := s.gateway.executeSwap(pair, fromToken, amountOut, recipient)
	if err != nil {
		return nil, wrap(err)
	}
	if s.onSwap != nil {
		s.onSwap()
	}
	return received, nil
}

// withinSlippage reports whether roundTripIn >= netIn*rest*rest/10000^2,
// where rest = 10000 - slippageBps.
func withinSlippage(netIn, roundTripIn *big.Int, slippageBps uint16) bool {
	rest := big.NewInt(int64(uniswapv2.MaxFeeBps) - int64(slippageBps))
	floor := new(big.Int).Mul(netIn, rest)
	floor.Mul(floor, rest).Div(floor, slippageScale)
	return roundTripIn.Cmp(floor) >= 0
}
