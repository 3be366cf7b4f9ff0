package maker

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxHops bounds how many routing steps one pair may take.
const DefaultMaxHops = 8

// bridgeRegistry maps a token to the intermediate token it is routed through.
// Tokens without an entry route through the base asset.
type bridgeRegistry struct {
	baseAsset common.Address
	maxHops   int
	bridges   map[common.Address]common.Address
}

func newBridgeRegistry(baseAsset common.Address, maxHops int) *bridgeRegistry {
	return &bridgeRegistry{
		baseAsset: baseAsset,
		maxHops:   maxHops,
		bridges:   make(map[common.Address]common.Address),
	}
}

// bridgeFor returns the configured bridge for token, else the base asset.
func (r *bridgeRegistry) bridgeFor(token common.Address) common.Address {
	if bridge, ok := r.bridges[token]; ok {
		return bridge
	}
	return r.baseAsset
}

// configured returns the raw table entry, zero when absent.
func (r *bridgeRegistry) configured(token common.Address) common.Address {
	return r.bridges[token]
}

// validate checks a proposed entry without applying it. A zero bridge clears
// the entry and is always acceptable for a token that may carry one.
func (r *bridgeRegistry) validate(token, bridge, targetAsset common.Address) error {
	switch {
	case token == (common.Address{}):
		return fmt.Errorf("%w: bridge source is the zero address", ErrInvalidConfiguration)
	case token == targetAsset:
		return fmt.Errorf("%w: %s is the target asset", ErrInvalidConfiguration, token.Hex())
	case token == r.baseAsset:
		return fmt.Errorf("%w: %s is the base asset", ErrInvalidConfiguration, token.Hex())
	case token == bridge:
		return fmt.Errorf("%w: %s bridges to itself", ErrInvalidConfiguration, token.Hex())
	case bridge == (common.Address{}):
		return nil
	}
	return r.checkReachable(token, bridge, targetAsset)
}

// checkReachable follows the bridge chain that token would take if it were
// bridged to bridge, and fails when the chain loops or cannot reach the
// target or base asset within maxHops routing steps.
func (r *bridgeRegistry) checkReachable(token, bridge, targetAsset common.Address) error {
	visited := mapset.NewThreadUnsafeSet(token)
	current := bridge
	// Reaching a terminal token after n bridges costs n+1 routing steps.
	for hops := 1; ; hops++ {
		terminal := current == targetAsset || current == r.baseAsset
		if terminal && hops < r.maxHops {
			return nil
		}
		if terminal || hops >= r.maxHops {
			return fmt.Errorf("%w: bridging %s to %s needs more than %d hops", ErrRoutingCycleDetected, token.Hex(), bridge.Hex(), r.maxHops)
		}
		if visited.Contains(current) {
			return fmt.Errorf("%w: bridging %s to %s loops back through %s", ErrRoutingCycleDetected, token.Hex(), bridge.Hex(), current.Hex())
		}
		visited.Add(current)
		current = r.bridgeFor(current)
	}
}

func (r *bridgeRegistry) set(token, bridge common.Address) {
	if bridge == (common.Address{}) {
		delete(r.bridges, token)
		return
	}
	r.bridges[token] = bridge
}
