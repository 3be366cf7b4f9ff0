package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/defistate/defistate-maker-go/chains/simulated"
	"github.com/defistate/defistate-maker-go/maker"
	"github.com/defistate/defistate-maker-go/maker/logs"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	makerAddr = common.HexToAddress("0xE11fc0B43ab98Eb91e9836129d1ee7c3Bc95df50")
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	keeper    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	dev       = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	staking   = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	provider  = common.HexToAddress("0x00000000000000000000000000000000000000a5")

	tgt  = common.HexToAddress("0x6B3595068778DD592e39A122f4f5a5cF09C90fE2")
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func newTestClient(t *testing.T) (*rpc.Client, *simulated.Chain) {
	t.Helper()

	chain := simulated.New(common.Address{})
	for _, meta := range []tokenregistry.Token{
		{Address: tgt, Symbol: "TGT", Decimals: 18},
		{Address: weth, Symbol: "WETH", Decimals: 18},
		{Address: usdc, Symbol: "USDC", Decimals: 6},
	} {
		_, err := chain.AddToken(meta)
		require.NoError(t, err)
	}
	pair, err := chain.CreatePair(weth, tgt, 30)
	require.NoError(t, err)
	require.NoError(t, chain.Mint(weth, provider, big.NewInt(1_000_000_000)))
	require.NoError(t, chain.Mint(tgt, provider, big.NewInt(1_000_000_000)))
	_, err = pair.AddLiquidity(provider, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	require.NoError(t, err)

	m, err := maker.New(&maker.Config{
		Address:       makerAddr,
		Chain:         chain,
		Owner:         owner,
		BaseAsset:     weth,
		TargetAsset:   tgt,
		DevAddr:       dev,
		StakingAddr:   staking,
		PrometheusReg: prometheus.NewRegistry(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	server, err := NewServer(NewMakerAPI(m, chain, chain))
	require.NoError(t, err)
	t.Cleanup(server.Stop)

	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return client, chain
}

func errorCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr), "not an rpc error: %v", err)
	return rpcErr.ErrorCode()
}

func TestConfigurationOverRPC(t *testing.T) {
	client, _ := newTestClient(t)
	asOwner := CallArgs{From: owner}

	require.NoError(t, client.Call(nil, "maker_addAuthorized", asOwner, keeper))
	require.NoError(t, client.Call(nil, "maker_setBridge", asOwner, usdc, tgt))
	require.NoError(t, client.Call(nil, "maker_setDevCut", asOwner, 1000))

	var count hexutil.Uint
	require.NoError(t, client.Call(&count, "maker_authorizedCount"))
	assert.Equal(t, hexutil.Uint(1), count)

	var member common.Address
	require.NoError(t, client.Call(&member, "maker_authorizedAt", hexutil.Uint(0)))
	assert.Equal(t, keeper, member)

	var bridge common.Address
	require.NoError(t, client.Call(&bridge, "maker_bridgeFor", usdc))
	assert.Equal(t, tgt, bridge)
	require.NoError(t, client.Call(&bridge, "maker_bridgeFor", common.HexToAddress("0x1234")))
	assert.Equal(t, weth, bridge)

	var cut uint16
	require.NoError(t, client.Call(&cut, "maker_devCut"))
	assert.Equal(t, uint16(1000), cut)

	var got common.Address
	require.NoError(t, client.Call(&got, "maker_owner"))
	assert.Equal(t, owner, got)
	require.NoError(t, client.Call(&got, "maker_targetAsset"))
	assert.Equal(t, tgt, got)
	require.NoError(t, client.Call(&got, "maker_devAddr"))
	assert.Equal(t, dev, got)
}

func TestErrorCodes(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Call(nil, "maker_addAuthorized", CallArgs{From: owner}, keeper))

	testCases := []struct {
		name         string
		method       string
		args         []any
		expectedCode int
	}{
		{name: "not the owner", method: "maker_setDevCut", args: []any{CallArgs{From: keeper}, 10}, expectedCode: CodeUnauthorized},
		{name: "cut above ceiling", method: "maker_setDevCut", args: []any{CallArgs{From: owner}, 5001}, expectedCode: CodeInvalidConfiguration},
		{name: "self bridge", method: "maker_setBridge", args: []any{CallArgs{From: owner}, usdc, usdc}, expectedCode: CodeInvalidConfiguration},
		{name: "relayed convert", method: "maker_convert", args: []any{CallArgs{From: keeper, Origin: &owner}, tgt, tgt, 100}, expectedCode: CodeUnauthorized},
		{name: "slippage too high", method: "maker_convert", args: []any{CallArgs{From: keeper}, tgt, tgt, 5000}, expectedCode: CodeInvalidConfiguration},
		{name: "no pool", method: "maker_convert", args: []any{CallArgs{From: keeper}, usdc, tgt, 100}, expectedCode: CodePoolNotFound},
		{
			name:         "arity",
			method:       "maker_convertMultiple",
			args:         []any{CallArgs{From: keeper}, []common.Address{tgt}, []common.Address{}, 100},
			expectedCode: CodeArityMismatch,
		},
		{name: "index out of range", method: "maker_authorizedAt", args: []any{hexutil.Uint(5)}, expectedCode: CodeInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.Call(nil, tc.method, tc.args...)
			require.Error(t, err)
			assert.Equal(t, tc.expectedCode, errorCode(t, err))
		})
	}
}

func TestConvertOverRPC(t *testing.T) {
	client, chain := newTestClient(t)
	require.NoError(t, client.Call(nil, "maker_addAuthorized", CallArgs{From: owner}, keeper))
	require.NoError(t, chain.Mint(weth, makerAddr, big.NewInt(1000)))
	require.NoError(t, chain.Mint(tgt, makerAddr, big.NewInt(400)))

	var results []ConvertResult
	err := client.Call(&results, "maker_convertMultiple", CallArgs{From: keeper},
		[]common.Address{weth, tgt}, []common.Address{weth, tgt}, 100)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, weth, results[0].Token0)
	assert.Equal(t, "1000", results[0].Amount0.ToInt().String())
	assert.Equal(t, "996", results[0].TargetOut.ToInt().String())
	assert.Equal(t, hexutil.Uint(1), results[0].Hops)
	assert.Equal(t, "400", results[1].TargetOut.ToInt().String())

	var balance hexutil.Big
	require.NoError(t, client.Call(&balance, "maker_balanceOf", tgt, staking))
	// 996 -> 249 dev / 747 staking, 400 -> 100 dev / 300 staking
	assert.Equal(t, "1047", balance.ToInt().String())

	var committed []types.Log
	require.NoError(t, client.Call(&committed, "maker_getLogs", hexutil.Uint(0)))
	var converts []logs.ConvertRecord
	for _, l := range committed {
		if name, err := logs.EventName(l); err == nil && name == "LogConvert" {
			record, err := logs.ParseConvert(l)
			require.NoError(t, err)
			converts = append(converts, record)
		}
	}
	require.Len(t, converts, 2)
	assert.Equal(t, keeper, converts[0].Server)

	var tail []types.Log
	require.NoError(t, client.Call(&tail, "maker_getLogs", hexutil.Uint(len(committed))))
	assert.Empty(t, tail)
}

func TestQuotes(t *testing.T) {
	client, _ := newTestClient(t)

	testCases := []struct {
		name         string
		method       string
		tokenIn      common.Address
		tokenOut     common.Address
		amount       int64
		expected     string
		expectedCode int
	}{
		{name: "sell weth", method: "maker_quoteOut", tokenIn: weth, tokenOut: tgt, amount: 1000, expected: "996"},
		{name: "buy tgt", method: "maker_quoteIn", tokenIn: weth, tokenOut: tgt, amount: 1000, expected: "1004"},
		{name: "buy weth with tgt", method: "maker_quoteIn", tokenIn: tgt, tokenOut: weth, amount: 996, expected: "999"},
		{name: "no pool", method: "maker_quoteOut", tokenIn: usdc, tokenOut: tgt, amount: 1000, expectedCode: CodePoolNotFound},
		{name: "more than the reserve", method: "maker_quoteIn", tokenIn: weth, tokenOut: tgt, amount: 1_000_000_000, expectedCode: CodeInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var quote hexutil.Big
			err := client.Call(&quote, tc.method, tc.tokenIn, tc.tokenOut, (*hexutil.Big)(big.NewInt(tc.amount)))
			if tc.expectedCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tc.expectedCode, errorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, quote.ToInt().String())
		})
	}
}

func TestIsAuthorized(t *testing.T) {
	client, _ := newTestClient(t)

	var authorized bool
	require.NoError(t, client.Call(&authorized, "maker_isAuthorized", keeper))
	assert.False(t, authorized)

	require.NoError(t, client.Call(nil, "maker_addAuthorized", CallArgs{From: owner}, keeper))
	require.NoError(t, client.Call(&authorized, "maker_isAuthorized", keeper))
	assert.True(t, authorized)
}

func TestLogSubscription(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Call(nil, "maker_addAuthorized", CallArgs{From: owner}, keeper))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan types.Log, 4)
	sub, err := client.Subscribe(ctx, Namespace, ch, "logs", hexutil.Uint(0))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, client.Call(nil, "maker_setDevCut", CallArgs{From: owner}, 1000))

	want := []string{"LogAddAuthorizedAddress", "LogSetDevCut"}
	for i, name := range want {
		select {
		case l := <-ch:
			assert.Equal(t, uint(i), l.Index)
			got, err := logs.EventName(l)
			require.NoError(t, err)
			assert.Equal(t, name, got)
		case err := <-sub.Err():
			t.Fatalf("subscription failed: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", name)
		}
	}

	select {
	case l := <-ch:
		t.Fatalf("unexpected log %d", l.Index)
	case <-time.After(50 * time.Millisecond):
	}
}
