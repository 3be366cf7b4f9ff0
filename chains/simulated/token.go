package simulated

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a handle to a token ledger on the chain. It implements chains.ERC20.
type Token struct {
	chain   *Chain
	address common.Address
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) BalanceOf(account common.Address) (*big.Int, error) {
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()

	state, err := t.chain.token(t.address)
	if err != nil {
		return nil, err
	}
	return t.chain.balance(state, account).ToBig(), nil
}

// TotalSupply returns the circulating supply, net of burned transfer tax.
func (t *Token) TotalSupply() (*big.Int, error) {
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()

	state, err := t.chain.token(t.address)
	if err != nil {
		return nil, err
	}
	return state.totalSupply.ToBig(), nil
}

func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()

	return t.chain.call(func() error {
		state, err := t.chain.token(t.address)
		if err != nil {
			return err
		}
		v, err := toUint256(amount)
		if err != nil {
			return fmt.Errorf("transfer %s: %w", t.address.Hex(), err)
		}
		return t.chain.transfer(state, from, to, v)
	})
}
