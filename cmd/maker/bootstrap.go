package main

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/defistate/defistate-maker-go/chains/simulated"
	"github.com/defistate/defistate-maker-go/cmd/maker/config"
	"github.com/defistate/defistate-maker-go/maker"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry/indexer"
	uniswapv2 "github.com/defistate/defistate-maker-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// bootstrap deploys the configured tokens and pools on a fresh simulated
// chain, funds the maker and applies its owner-only settings.
func bootstrap(cfg *config.MakerConfig, logger *slog.Logger, reg prometheus.Registerer) (*simulated.Chain, *maker.Maker, error) {
	chain := simulated.New(cfg.Factory)
	for _, t := range cfg.Tokens {
		if _, err := chain.AddToken(t); err != nil {
			return nil, nil, err
		}
	}

	tokens := cfg.Index()
	self := cfg.Maker.Address
	pairs := make(map[uniswapv2.PairKey]*simulated.Pair, len(cfg.Pools))

	for i, p := range cfg.Pools {
		a, b := mustResolve(tokens, p.TokenA), mustResolve(tokens, p.TokenB)
		pair, err := chain.CreatePair(a, b, p.FeeBps)
		if err != nil {
			return nil, nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
		if err := seed(chain, pair, cfg.LiquidityProvider, a, b, p.ReserveA.Int, p.ReserveB.Int); err != nil {
			return nil, nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
		pairs[uniswapv2.NewPairKey(a, b)] = pair
		logger.Debug("Pool deployed", "pair", pair.Address().Hex(), "token0", pair.Token0().Hex(), "token1", pair.Token1().Hex())
	}

	for i, bal := range cfg.Balances {
		account := bal.Account
		if account == (common.Address{}) {
			account = self
		}
		if err := chain.Mint(mustResolve(tokens, bal.Token), account, bal.Amount.Int); err != nil {
			return nil, nil, fmt.Errorf("balances[%d]: %w", i, err)
		}
	}

	for i, pos := range cfg.Positions {
		a, b := mustResolve(tokens, pos.TokenA), mustResolve(tokens, pos.TokenB)
		pair, ok := pairs[uniswapv2.NewPairKey(a, b)]
		if !ok {
			return nil, nil, fmt.Errorf("positions[%d]: no pool for %s/%s", i, pos.TokenA, pos.TokenB)
		}
		if err := seed(chain, pair, self, a, b, pos.AmountA.Int, pos.AmountB.Int); err != nil {
			return nil, nil, fmt.Errorf("positions[%d]: %w", i, err)
		}
	}

	m, err := maker.New(&maker.Config{
		Address:       self,
		Chain:         chain,
		Owner:         cfg.Maker.Owner,
		BaseAsset:     mustResolve(tokens, cfg.Maker.BaseAsset),
		TargetAsset:   mustResolve(tokens, cfg.Maker.TargetAsset),
		DevAddr:       cfg.Maker.DevAddr,
		StakingAddr:   cfg.Maker.StakingAddr,
		DevCut:        cfg.Maker.DevCut,
		PrometheusReg: reg,
		Logger:        logger,
	}, maker.WithMaxHops(cfg.Maker.MaxHops))
	if err != nil {
		return nil, nil, err
	}

	owner := cfg.Maker.Owner
	for i, br := range cfg.Maker.Bridges {
		if err := m.SetBridge(owner, mustResolve(tokens, br.Token), mustResolve(tokens, br.Bridge)); err != nil {
			return nil, nil, fmt.Errorf("maker.bridges[%d]: %w", i, err)
		}
	}
	for _, addr := range cfg.Maker.Authorized {
		if err := m.AddAuthorized(owner, addr); err != nil {
			return nil, nil, fmt.Errorf("authorize %s: %w", addr.Hex(), err)
		}
	}
	chain.Commit()
	return chain, m, nil
}

// seed mints amountA/amountB to provider and deposits them into pair.
func seed(chain *simulated.Chain, pair *simulated.Pair, provider, tokenA, tokenB common.Address, amountA, amountB *big.Int) error {
	if err := chain.Mint(tokenA, provider, amountA); err != nil {
		return err
	}
	if err := chain.Mint(tokenB, provider, amountB); err != nil {
		return err
	}
	amount0, amount1 := amountA, amountB
	if pair.Token0() != tokenA {
		amount0, amount1 = amountB, amountA
	}
	_, err := pair.AddLiquidity(provider, amount0, amount1)
	return err
}

// mustResolve is only called on references the config loader has validated.
func mustResolve(tokens indexer.IndexedTokenSystem, ref string) common.Address {
	t, err := tokens.Resolve(ref)
	if err != nil {
		panic(err)
	}
	return t.Address
}
