package maker

import (
	"fmt"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// ConversionStep is value still waiting to be routed into the target asset.
type ConversionStep struct {
	Token0  common.Address
	Token1  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

type stepKey struct {
	token0 common.Address
	token1 common.Address
}

// ConvertResult reports one converted pair.
type ConvertResult struct {
	Token0    common.Address
	Token1    common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	TargetOut *big.Int
	Hops      int
}

type conversionEngine struct {
	self        common.Address
	settings    *settings
	bridges     *bridgeRegistry
	gateway     *poolGateway
	swaps       *swapExecutor
	distributor *distributor
	logger      Logger
}

// convert redeems what the maker holds for token0/token1 and routes it into
// the target asset. When token0 == token1 the maker's balance of that token
// is routed as is; otherwise the maker's position in the token0/token1 pair
// is burned first.
func (e *conversionEngine) convert(token0, token1 common.Address, slippageBps uint16) (ConvertResult, error) {
	var amount0, amount1 *big.Int
	if token0 == token1 {
		balance, err := e.gateway.chain.Token(token0).BalanceOf(e.self)
		if err != nil {
			return ConvertResult{}, fmt.Errorf("balance of %s: %w", token0.Hex(), err)
		}
		amount0, amount1 = balance, new(big.Int)
	} else {
		pair, err := e.gateway.findPool(token0, token1)
		if err != nil {
			return ConvertResult{}, err
		}
		amount0, amount1, err = e.gateway.burn(pair, token0, token1)
		if err != nil {
			return ConvertResult{}, err
		}
	}

	targetOut, hops, err := e.route(ConversionStep{
		Token0:  token0,
		Token1:  token1,
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}, slippageBps)
	if err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{
		Token0:    token0,
		Token1:    token1,
		Amount0:   amount0,
		Amount1:   amount1,
		TargetOut: targetOut,
		Hops:      hops,
	}, nil
}

// route drains a LIFO worklist seeded with first. Each step either
// distributes or pushes the step it bridges into. A step that repeats an
// earlier token pair, or a route longer than maxHops, is a cycle.
func (e *conversionEngine) route(first ConversionStep, slippageBps uint16) (*big.Int, int, error) {
	total := new(big.Int)
	seen := mapset.NewThreadUnsafeSet[stepKey]()
	work := []ConversionStep{first}
	hops := 0

	for len(work) > 0 {
		step := work[len(work)-1]
		work = work[:len(work)-1]

		hops++
		if hops > e.bridges.maxHops {
			return nil, hops, fmt.Errorf("%w: route from (%s, %s) exceeds %d hops",
				ErrRoutingCycleDetected, first.Token0.Hex(), first.Token1.Hex(), e.bridges.maxHops)
		}
		if !seen.Add(stepKey{step.Token0, step.Token1}) {
			return nil, hops, fmt.Errorf("%w: step (%s, %s) repeats",
				ErrRoutingCycleDetected, step.Token0.Hex(), step.Token1.Hex())
		}

		distributed, next, err := e.step(step, slippageBps)
		if err != nil {
			return nil, hops, err
		}
		total.Add(total, distributed)
		if next != nil {
			e.logger.Debug("routing through bridge",
				"token0", next.Token0.Hex(), "token1", next.Token1.Hex(),
				"amount0", next.Amount0.String(), "amount1", next.Amount1.String())
			work = append(work, *next)
		}
	}
	return total, hops, nil
}

// step applies the first matching rule, in order:
//
//  1. token0 == token1: distribute target, swap base to target, or swap to
//     the bridge and continue as (bridge, bridge).
//  2. token0 is the target: distribute amount0, swap token1 to target.
//  3. token1 is the target: symmetric to 2.
//  4. token0 is the base: swap token1 to base, swap the sum to target.
//  5. token1 is the base: symmetric to 4.
//  6. otherwise bridge one or both legs and continue.
func (e *conversionEngine) step(s ConversionStep, slippageBps uint16) (*big.Int, *ConversionStep, error) {
	target, base := e.settings.targetAsset, e.settings.baseAsset

	switch {
	case s.Token0 == s.Token1:
		amount := new(big.Int).Add(s.Amount0, s.Amount1)
		switch s.Token0 {
		case target:
			distributed, err := e.distributor.distribute(amount)
			return distributed, nil, err
		case base:
			distributed, err := e.toTarget(base, amount, slippageBps)
			return distributed, nil, err
		}
		bridge := e.bridges.bridgeFor(s.Token0)
		out, err := e.swaps.swap(s.Token0, bridge, amount, e.self, slippageBps)
		if err != nil {
			return nil, nil, err
		}
		return new(big.Int), &ConversionStep{Token0: bridge, Token1: bridge, Amount0: out, Amount1: new(big.Int)}, nil

	case s.Token0 == target:
		distributed, err := e.targetAndSwap(s.Amount0, s.Token1, s.Amount1, slippageBps)
		return distributed, nil, err

	case s.Token1 == target:
		distributed, err := e.targetAndSwap(s.Amount1, s.Token0, s.Amount0, slippageBps)
		return distributed, nil, err

	case s.Token0 == base:
		distributed, err := e.viaBase(s.Amount0, s.Token1, s.Amount1, slippageBps)
		return distributed, nil, err

	case s.Token1 == base:
		distributed, err := e.viaBase(s.Amount1, s.Token0, s.Amount0, slippageBps)
		return distributed, nil, err
	}

	bridge0 := e.bridges.bridgeFor(s.Token0)
	bridge1 := e.bridges.bridgeFor(s.Token1)
	switch {
	case bridge0 == s.Token1:
		out, err := e.swaps.swap(s.Token0, bridge0, s.Amount0, e.self, slippageBps)
		if err != nil {
			return nil, nil, err
		}
		return new(big.Int), &ConversionStep{Token0: bridge0, Token1: s.Token1, Amount0: out, Amount1: s.Amount1}, nil

	case bridge1 == s.Token0:
		out, err := e.swaps.swap(s.Token1, bridge1, s.Amount1, e.self, slippageBps)
		if err != nil {
			return nil, nil, err
		}
		return new(big.Int), &ConversionStep{Token0: s.Token0, Token1: bridge1, Amount0: s.Amount0, Amount1: out}, nil
	}

	out0, err := e.swaps.swap(s.Token0, bridge0, s.Amount0, e.self, slippageBps)
	if err != nil {
		return nil, nil, err
	}
	out1, err := e.swaps.swap(s.Token1, bridge1, s.Amount1, e.self, slippageBps)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int), &ConversionStep{Token0: bridge0, Token1: bridge1, Amount0: out0, Amount1: out1}, nil
}

// toTarget swaps amount of token into the target asset and distributes it.
func (e *conversionEngine) toTarget(token common.Address, amount *big.Int, slippageBps uint16) (*big.Int, error) {
	out, err := e.swaps.swap(token, e.settings.targetAsset, amount, e.self, slippageBps)
	if err != nil {
		return nil, err
	}
	return e.distributor.distribute(out)
}

// targetAndSwap distributes targetAmount as is, then converts the other leg
// and distributes that as well.
func (e *conversionEngine) targetAndSwap(targetAmount *big.Int, other common.Address, otherAmount *big.Int, slippageBps uint16) (*big.Int, error) {
	direct, err := e.distributor.distribute(targetAmount)
	if err != nil {
		return nil, err
	}
	swapped, err := e.toTarget(other, otherAmount, slippageBps)
	if err != nil {
		return nil, err
	}
	return direct.Add(direct, swapped), nil
}

// viaBase swaps the other leg into the base asset and converts the combined
// base amount into the target asset.
func (e *conversionEngine) viaBase(baseAmount *big.Int, other common.Address, otherAmount *big.Int, slippageBps uint16) (*big.Int, error) {
	out, err := e.swaps.swap(other, e.settings.baseAsset, otherAmount, e.self, slippageBps)
	if err != nil {
		return nil, err
	}
	return e.toTarget(e.settings.baseAsset, new(big.Int).Add(baseAmount, out), slippageBps)
}
