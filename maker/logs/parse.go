package logs

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUnknownEvent is returned when a log's first topic is not a maker event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformedLog is returned when a log's topics or data do not match the event layout.
	ErrMalformedLog = errors.New("malformed log")
)

// ConvertRecord is the decoded form of LogConvert.
type ConvertRecord struct {
	Server       common.Address
	Token0       common.Address
	Token1       common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	AmountTarget *big.Int
}

// BridgeSetRecord is the decoded form of LogBridgeSet.
type BridgeSetRecord struct {
	Token     common.Address
	OldBridge common.Address
	Bridge    common.Address
}

// EventName returns the ABI name of the event a log carries.
func EventName(log types.Log) (string, error) {
	if len(log.Topics) == 0 {
		return "", fmt.Errorf("%w: no topics", ErrMalformedLog)
	}
	event, err := MakerABI.EventByID(log.Topics[0])
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topics[0].Hex())
	}
	return event.Name, nil
}

// ParseConvert decodes a LogConvert log.
func ParseConvert(log types.Log) (ConvertRecord, error) {
	values, err := unpack(log, ConvertEvent, "LogConvert", 4)
	if err != nil {
		return ConvertRecord{}, err
	}
	return ConvertRecord{
		Server:       topicAddress(log, 1),
		Token0:       topicAddress(log, 2),
		Token1:       topicAddress(log, 3),
		Amount0:      values[0].(*big.Int),
		Amount1:      values[1].(*big.Int),
		AmountTarget: values[2].(*big.Int),
	}, nil
}

// ParseBridgeSet decodes a LogBridgeSet log.
func ParseBridgeSet(log types.Log) (BridgeSetRecord, error) {
	if _, err := unpack(log, BridgeSetEvent, "LogBridgeSet", 4); err != nil {
		return BridgeSetRecord{}, err
	}
	return BridgeSetRecord{
		Token:     topicAddress(log, 1),
		OldBridge: topicAddress(log, 2),
		Bridge:    topicAddress(log, 3),
	}, nil
}

// ParseSetDevCut decodes a LogSetDevCut log.
func ParseSetDevCut(log types.Log) (uint16, error) {
	values, err := unpack(log, SetDevCutEvent, "LogSetDevCut", 1)
	if err != nil {
		return 0, err
	}
	amount := values[0].(*big.Int)
	if !amount.IsUint64() || amount.Uint64() > 10000 {
		return 0, fmt.Errorf("%w: dev cut %s out of range", ErrMalformedLog, amount)
	}
	return uint16(amount.Uint64()), nil
}

// ParseAddress decodes any maker event whose only argument is an indexed
// address: LogDevAddr, LogSetTargetAsset and the authorization events.
func ParseAddress(log types.Log) (common.Address, error) {
	name, err := EventName(log)
	if err != nil {
		return common.Address{}, err
	}
	switch name {
	case "LogDevAddr", "LogSetTargetAsset", "LogAddAuthorizedAddress", "LogRemoveAuthorizedAddress":
	default:
		return common.Address{}, fmt.Errorf("%w: %s carries more than one address", ErrMalformedLog, name)
	}
	if len(log.Topics) != 2 {
		return common.Address{}, fmt.Errorf("%w: %s expects 2 topics, got %d", ErrMalformedLog, name, len(log.Topics))
	}
	return topicAddress(log, 1), nil
}

func unpack(log types.Log, id common.Hash, name string, topics int) ([]any, error) {
	if len(log.Topics) == 0 || log.Topics[0] != id {
		return nil, fmt.Errorf("%w: not a %s log", ErrUnknownEvent, name)
	}
	if len(log.Topics) != topics {
		return nil, fmt.Errorf("%w: %s expects %d topics, got %d", ErrMalformedLog, name, topics, len(log.Topics))
	}
	values, err := MakerABI.Events[name].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	return values, nil
}

func topicAddress(log types.Log, i int) common.Address {
	return common.BytesToAddress(log.Topics[i].Bytes())
}
