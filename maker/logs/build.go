package logs

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// newLog assembles a log for the named event. Indexed arguments become
// topics in declaration order; data holds the non-indexed arguments.
func newLog(emitter common.Address, name string, indexed []common.Address, data ...any) (*types.Log, error) {
	event, ok := MakerABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}

	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()))
	}

	packed, err := event.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}

	return &types.Log{
		Address: emitter,
		Topics:  topics,
		Data:    packed,
	}, nil
}

// Convert records a completed conversion of one token pair.
func Convert(emitter, server, token0, token1 common.Address, amount0, amount1, amountTarget *big.Int) (*types.Log, error) {
	return newLog(emitter, "LogConvert", []common.Address{server, token0, token1}, amount0, amount1, amountTarget)
}

// BridgeSet records a bridge table change. A zero bridge means the entry was
// cleared.
func BridgeSet(emitter, token, oldBridge, bridge common.Address) (*types.Log, error) {
	return newLog(emitter, "LogBridgeSet", []common.Address{token, oldBridge, bridge})
}

func SetDevCut(emitter common.Address, devCut uint16) (*types.Log, error) {
	return newLog(emitter, "LogSetDevCut", nil, new(big.Int).SetUint64(uint64(devCut)))
}

func DevAddr(emitter, devAddr common.Address) (*types.Log, error) {
	return newLog(emitter, "LogDevAddr", []common.Address{devAddr})
}

func SetTargetAsset(emitter, target common.Address) (*types.Log, error) {
	return newLog(emitter, "LogSetTargetAsset", []common.Address{target})
}

func AddAuthorized(emitter, addr common.Address) (*types.Log, error) {
	return newLog(emitter, "LogAddAuthorizedAddress", []common.Address{addr})
}

func RemoveAuthorized(emitter, addr common.Address) (*types.Log, error) {
	return newLog(emitter, "LogRemoveAuthorizedAddress", []common.Address{addr})
}

func OwnershipTransferred(emitter, previousOwner, newOwner common.Address) (*types.Log, error) {
	return newLog(emitter, "OwnershipTransferred", []common.Address{previousOwner, newOwner})
}
