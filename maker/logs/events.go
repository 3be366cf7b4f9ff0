// Package logs defines the notifications the maker emits: the event ABI,
// topic IDs, builders that turn a state change into a types.Log and decoders
// that read them back.
package logs

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const makerABIJSON = `[
	{"type":"event","name":"LogConvert","anonymous":false,"inputs":[
		{"name":"server","type":"address","indexed":true},
		{"name":"token0","type":"address","indexed":true},
		{"name":"token1","type":"address","indexed":true},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false},
		{"name":"amountTarget","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogBridgeSet","anonymous":false,"inputs":[
		{"name":"token","type":"address","indexed":true},
		{"name":"oldBridge","type":"address","indexed":true},
		{"name":"bridge","type":"address","indexed":true}]},
	{"type":"event","name":"LogSetDevCut","anonymous":false,"inputs":[
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogDevAddr","anonymous":false,"inputs":[
		{"name":"devAddr","type":"address","indexed":true}]},
	{"type":"event","name":"LogSetTargetAsset","anonymous":false,"inputs":[
		{"name":"targetAsset","type":"address","indexed":true}]},
	{"type":"event","name":"LogAddAuthorizedAddress","anonymous":false,"inputs":[
		{"name":"addr","type":"address","indexed":true}]},
	{"type":"event","name":"LogRemoveAuthorizedAddress","anonymous":false,"inputs":[
		{"name":"addr","type":"address","indexed":true}]},
	{"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[
		{"name":"previousOwner","type":"address","indexed":true},
		{"name":"newOwner","type":"address","indexed":true}]}
]`

// MakerABI holds every event the maker emits.
var MakerABI = mustParseABI(makerABIJSON)

var (
	ConvertEvent              = MakerABI.Events["LogConvert"].ID
	BridgeSetEvent            = MakerABI.Events["LogBridgeSet"].ID
	SetDevCutEvent            = MakerABI.Events["LogSetDevCut"].ID
	DevAddrEvent              = MakerABI.Events["LogDevAddr"].ID
	SetTargetAssetEvent       = MakerABI.Events["LogSetTargetAsset"].ID
	AddAuthorizedEvent        = MakerABI.Events["LogAddAuthorizedAddress"].ID
	RemoveAuthorizedEvent     = MakerABI.Events["LogRemoveAuthorizedAddress"].ID
	OwnershipTransferredEvent = MakerABI.Events["OwnershipTransferred"].ID
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
