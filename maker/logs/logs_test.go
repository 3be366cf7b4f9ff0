package logs

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	maker  = common.HexToAddress("0xE11fc0B43ab98Eb91e9836129d1ee7c3Bc95df50")
	server = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	usdc   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func TestEventIDs(t *testing.T) {
	assert.Equal(t,
		crypto.Keccak256Hash([]byte("LogConvert(address,address,address,uint256,uint256,uint256)")),
		ConvertEvent)
	assert.Equal(t,
		crypto.Keccak256Hash([]byte("LogBridgeSet(address,address,address)")),
		BridgeSetEvent)
	assert.Equal(t,
		crypto.Keccak256Hash([]byte("LogSetDevCut(uint256)")),
		SetDevCutEvent)
}

func TestConvert(t *testing.T) {
	log, err := Convert(maker, server, usdc, weth, big.NewInt(500), big.NewInt(0), big.NewInt(493))
	require.NoError(t, err)

	assert.Equal(t, maker, log.Address)
	require.Len(t, log.Topics, 4)
	assert.Equal(t, ConvertEvent, log.Topics[0])
	assert.Len(t, log.Data, 3*32)

	name, err := EventName(*log)
	require.NoError(t, err)
	assert.Equal(t, "LogConvert", name)

	record, err := ParseConvert(*log)
	require.NoError(t, err)
	assert.Equal(t, server, record.Server)
	assert.Equal(t, usdc, record.Token0)
	assert.Equal(t, weth, record.Token1)
	assert.Equal(t, "500", record.Amount0.String())
	assert.Zero(t, record.Amount1.Sign())
	assert.Equal(t, "493", record.AmountTarget.String())
}

func TestBridgeSet(t *testing.T) {
	first, err := BridgeSet(maker, usdc, common.Address{}, weth)
	require.NoError(t, err)
	assert.Empty(t, first.Data)

	record, err := ParseBridgeSet(*first)
	require.NoError(t, err)
	assert.Equal(t, BridgeSetRecord{Token: usdc, OldBridge: common.Address{}, Bridge: weth}, record)

	again, err := BridgeSet(maker, usdc, weth, weth)
	require.NoError(t, err)
	repeat, err := BridgeSet(maker, usdc, weth, weth)
	require.NoError(t, err)
	assert.Equal(t, again, repeat)
}

func TestSetDevCut(t *testing.T) {
	log, err := SetDevCut(maker, 2500)
	require.NoError(t, err)

	cut, err := ParseSetDevCut(*log)
	require.NoError(t, err)
	assert.Equal(t, uint16(2500), cut)
}

func TestParseAddress(t *testing.T) {
	builders := map[string]func(emitter, addr common.Address) (*types.Log, error){
		"LogDevAddr":                 DevAddr,
		"LogSetTargetAsset":          SetTargetAsset,
		"LogAddAuthorizedAddress":    AddAuthorized,
		"LogRemoveAuthorizedAddress": RemoveAuthorized,
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			log, err := build(maker, server)
			require.NoError(t, err)

			got, err := EventName(*log)
			require.NoError(t, err)
			assert.Equal(t, name, got)

			addr, err := ParseAddress(*log)
			require.NoError(t, err)
			assert.Equal(t, server, addr)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	convert, err := Convert(maker, server, usdc, weth, big.NewInt(1), big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	testCases := []struct {
		name        string
		parse       func() error
		expectedErr error
	}{
		{
			name: "no topics",
			parse: func() error {
				_, err := EventName(types.Log{})
				return err
			},
			expectedErr: ErrMalformedLog,
		},
		{
			name: "foreign event",
			parse: func() error {
				_, err := EventName(types.Log{Topics: []common.Hash{crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))}})
				return err
			},
			expectedErr: ErrUnknownEvent,
		},
		{
			name: "wrong event for decoder",
			parse: func() error {
				_, err := ParseBridgeSet(*convert)
				return err
			},
			expectedErr: ErrUnknownEvent,
		},
		{
			name: "truncated data",
			parse: func() error {
				truncated := *convert
				truncated.Data = convert.Data[:64]
				_, err := ParseConvert(truncated)
				return err
			},
			expectedErr: ErrMalformedLog,
		},
		{
			name: "missing topic",
			parse: func() error {
				short := *convert
				short.Topics = convert.Topics[:3]
				_, err := ParseConvert(short)
				return err
			},
			expectedErr: ErrMalformedLog,
		},
		{
			name: "multi-address event through ParseAddress",
			parse: func() error {
				_, err := ParseAddress(*convert)
				return err
			},
			expectedErr: ErrMalformedLog,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.parse(), tc.expectedErr)
		})
	}
}
