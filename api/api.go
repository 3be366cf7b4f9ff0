// Package api exposes a Maker over JSON-RPC in the "maker" namespace.
package api

import (
	"context"
	"fmt"

	"github.com/defistate/defistate-maker-go/chains"
	"github.com/defistate/defistate-maker-go/maker"
	uniswapv2 "github.com/defistate/defistate-maker-go/protocols/uniswapv2"
	calculator "github.com/defistate/defistate-maker-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// Namespace is the namespace under which the maker API is registered.
const Namespace = "maker"

const logSubscriptionBuffer = 128

// LogSource returns the notifications committed so far, oldest first, and
// publishes new ones as they are committed.
type LogSource interface {
	Logs() []types.Log
	SubscribeLogs(ch chan<- types.Log) event.Subscription
}

// Backend is the chain the API reads balances and pool snapshots from.
type Backend interface {
	chains.Chain
	Pool(address common.Address) (uniswapv2.Pool, error)
}

// CallArgs identifies the caller of a mutating method. Origin defaults to From.
type CallArgs struct {
	From   common.Address  `json:"from"`
	Origin *common.Address `json:"origin,omitempty"`
}

func (a CallArgs) context() maker.CallContext {
	origin := a.From
	if a.Origin != nil {
		origin = *a.Origin
	}
	return maker.CallContext{Sender: a.From, Origin: origin}
}

// ConvertResult is the JSON form of maker.ConvertResult.
type ConvertResult struct {
	Token0    common.Address `json:"token0"`
	Token1    common.Address `json:"token1"`
	Amount0   *hexutil.Big   `json:"amount0"`
	Amount1   *hexutil.Big   `json:"amount1"`
	TargetOut *hexutil.Big   `json:"targetOut"`
	Hops      hexutil.Uint   `json:"hops"`
}

func newConvertResult(r maker.ConvertResult) ConvertResult {
	return ConvertResult{
		Token0:    r.Token0,
		Token1:    r.Token1,
		Amount0:   (*hexutil.Big)(r.Amount0),
		Amount1:   (*hexutil.Big)(r.Amount1),
		TargetOut: (*hexutil.Big)(r.TargetOut),
		Hops:      hexutil.Uint(r.Hops),
	}
}

// MakerAPI is the RPC receiver. Every exported method becomes maker_<name>.
type MakerAPI struct {
	maker *maker.Maker
	chain Backend
	logs  LogSource
}

func NewMakerAPI(m *maker.Maker, chain Backend, logs LogSource) *MakerAPI {
	return &MakerAPI{maker: m, chain: chain, logs: logs}
}

// NewServer returns an RPC server with the maker API registered.
func NewServer(api *MakerAPI) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, api); err != nil {
		return nil, err
	}
	return server, nil
}

func (api *MakerAPI) Convert(call CallArgs, token0, token1 common.Address, slippageBps uint16) (*ConvertResult, error) {
	results, err := api.maker.ConvertBatch(call.context(), []common.Address{token0}, []common.Address{token1}, slippageBps)
	if err != nil {
		return nil, wrapError(err)
	}
	result := newConvertResult(results[0])
	return &result, nil
}

func (api *MakerAPI) ConvertMultiple(call CallArgs, token0s, token1s []common.Address, slippageBps uint16) ([]ConvertResult, error) {
	results, err := api.maker.ConvertBatch(call.context(), token0s, token1s, slippageBps)
	if err != nil {
		return nil, wrapError(err)
	}
	out := make([]ConvertResult, len(results))
	for i, r := range results {
		out[i] = newConvertResult(r)
	}
	return out, nil
}

func (api *MakerAPI) BridgeFor(token common.Address) common.Address {
	return api.maker.BridgeFor(token)
}

func (api *MakerAPI) SetBridge(call CallArgs, token, bridge common.Address) error {
	return wrapError(api.maker.SetBridge(call.From, token, bridge))
}

func (api *MakerAPI) SetDevCut(call CallArgs, devCut uint16) error {
	return wrapError(api.maker.SetDevCut(call.From, devCut))
}

func (api *MakerAPI) SetDevAddr(call CallArgs, devAddr common.Address) error {
	return wrapError(api.maker.SetDevAddr(call.From, devAddr))
}

func (api *MakerAPI) SetTargetAsset(call CallArgs, target common.Address) error {
	return wrapError(api.maker.SetTargetAsset(call.From, target))
}

func (api *MakerAPI) AddAuthorized(call CallArgs, addr common.Address) error {
	return wrapError(api.maker.AddAuthorized(call.From, addr))
}

func (api *MakerAPI) RemoveAuthorized(call CallArgs, addr common.Address) error {
	return wrapError(api.maker.RemoveAuthorized(call.From, addr))
}

func (api *MakerAPI) TransferOwnership(call CallArgs, newOwner common.Address) error {
	return wrapError(api.maker.TransferOwnership(call.From, newOwner))
}

func (api *MakerAPI) AuthorizedAt(index hexutil.Uint) (common.Address, error) {
	addr, err := api.maker.AuthorizedAt(int(index))
	return addr, wrapError(err)
}

func (api *MakerAPI) AuthorizedCount() hexutil.Uint {
	return hexutil.Uint(api.maker.AuthorizedCount())
}

func (api *MakerAPI) DevCut() uint16 {
	return api.maker.DevCut()
}

func (api *MakerAPI) DevAddr() common.Address {
	return api.maker.DevAddr()
}

func (api *MakerAPI) TargetAsset() common.Address {
	return api.maker.TargetAsset()
}

func (api *MakerAPI) Owner() common.Address {
	return api.maker.Owner()
}

// BalanceOf reads an account's balance of token from the chain.
func (api *MakerAPI) BalanceOf(token, account common.Address) (*hexutil.Big, error) {
	balance, err := api.chain.Token(token).BalanceOf(account)
	if err != nil {
		return nil, wrapError(err)
	}
	return (*hexutil.Big)(balance), nil
}

func (api *MakerAPI) IsAuthorized(addr common.Address) bool {
	return api.maker.IsAuthorized(addr)
}

// QuoteOut prices selling amountIn of tokenIn into tokenOut against the
// pair's current reserves. Transfer taxes are not applied.
func (api *MakerAPI) QuoteOut(tokenIn, tokenOut common.Address, amountIn *hexutil.Big) (*hexutil.Big, error) {
	pool, err := api.pool(tokenIn, tokenOut)
	if err != nil {
		return nil, wrapError(err)
	}
	out, err := calculator.GetAmountOut(amountIn.ToInt(), tokenIn, tokenOut, pool)
	if err != nil {
		return nil, wrapError(err)
	}
	return (*hexutil.Big)(out), nil
}

// QuoteIn prices buying amountOut of tokenOut with tokenIn.
func (api *MakerAPI) QuoteIn(tokenIn, tokenOut common.Address, amountOut *hexutil.Big) (*hexutil.Big, error) {
	pool, err := api.pool(tokenIn, tokenOut)
	if err != nil {
		return nil, wrapError(err)
	}
	in, err := calculator.GetAmountIn(amountOut.ToInt(), tokenIn, tokenOut, pool)
	if err != nil {
		return nil, wrapError(err)
	}
	return (*hexutil.Big)(in), nil
}

func (api *MakerAPI) pool(tokenA, tokenB common.Address) (uniswapv2.Pool, error) {
	pair, ok := api.chain.GetPair(tokenA, tokenB)
	if !ok {
		return uniswapv2.Pool{}, fmt.Errorf("%w: %s/%s", maker.ErrPoolNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return api.chain.Pool(pair.Address())
}

// GetLogs returns committed notifications starting at index from.
func (api *MakerAPI) GetLogs(from hexutil.Uint) []types.Log {
	all := api.logs.Logs()
	if int(from) >= len(all) {
		return []types.Log{}
	}
	return all[from:]
}

// Logs is a subscription (maker_subscribe "logs") that replays committed
// notifications from index from and then follows new ones. Each log is
// delivered once, in index order.
func (api *MakerAPI) Logs(ctx context.Context, from hexutil.Uint) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	// Subscribe before reading the backlog so nothing falls in between;
	// overlap is dropped by index.
	ch := make(chan types.Log, logSubscriptionBuffer)
	feedSub := api.logs.SubscribeLogs(ch)
	backlog := api.logs.Logs()

	go func() {
		defer feedSub.Unsubscribe()

		next := uint(from)
		send := func(l types.Log) error {
			if l.Index < next {
				return nil
			}
			next = l.Index + 1
			return notifier.Notify(rpcSub.ID, l)
		}

		for _, l := range backlog {
			if err := send(l); err != nil {
				return
			}
		}
		for {
			select {
			case l := <-ch:
				if err := send(l); err != nil {
					return
				}
			case <-rpcSub.Err():
				return
			case <-feedSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}
