package client

import (
	"fmt"

	"github.com/defistate/defistate-maker-go/maker/logs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Notification is a committed maker log together with its decoded payload.
// Exactly one of the payload fields is set, matching Name.
type Notification struct {
	Name string
	Log  types.Log

	Convert   *logs.ConvertRecord
	BridgeSet *logs.BridgeSetRecord
	DevCut    *uint16
	// Address carries the argument of the single-address events.
	Address *common.Address
	// Ownership is set for OwnershipTransferred as [previous, new].
	Ownership *[2]common.Address
}

// Decode classifies l and decodes its payload.
func Decode(l types.Log) (Notification, error) {
	name, err := logs.EventName(l)
	if err != nil {
		return Notification{}, err
	}
	n := Notification{Name: name, Log: l}

	switch name {
	case "LogConvert":
		record, err := logs.ParseConvert(l)
		if err != nil {
			return Notification{}, err
		}
		n.Convert = &record
	case "LogBridgeSet":
		record, err := logs.ParseBridgeSet(l)
		if err != nil {
			return Notification{}, err
		}
		n.BridgeSet = &record
	case "LogSetDevCut":
		cut, err := logs.ParseSetDevCut(l)
		if err != nil {
			return Notification{}, err
		}
		n.DevCut = &cut
	case "OwnershipTransferred":
		if len(l.Topics) != 3 {
			return Notification{}, fmt.Errorf("%w: %s expects 3 topics, got %d", logs.ErrMalformedLog, name, len(l.Topics))
		}
		n.Ownership = &[2]common.Address{
			common.BytesToAddress(l.Topics[1].Bytes()),
			common.BytesToAddress(l.Topics[2].Bytes()),
		}
	default:
		addr, err := logs.ParseAddress(l)
		if err != nil {
			return Notification{}, err
		}
		n.Address = &addr
	}
	return n, nil
}
