package maker

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-maker-go/chains"
	"github.com/ethereum/go-ethereum/common"
)

// MaxDevCutBps is the highest share of proceeds the dev address may take.
const MaxDevCutBps = 5000

// DefaultDevCutBps is the dev share used when none is configured.
const DefaultDevCutBps = 2500

var bpsDenominator = big.NewInt(10000)

// settings is the fee-split configuration shared by the engine and the
// distributor. It is only touched while the maker's lock is held.
type settings struct {
	targetAsset common.Address
	baseAsset   common.Address
	devAddr     common.Address
	stakingAddr common.Address
	devCut      uint16
}

type distributor struct {
	chain    chains.Chain
	self     common.Address
	settings *settings
}

// distribute pays devCut of amount in the target asset to the dev address
// and the rest to staking. It returns amount.
func (d *distributor) distribute(amount *big.Int) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}
	target := d.chain.Token(d.settings.targetAsset)

	toStaking := new(big.Int).Set(amount)
	if d.settings.devCut > 0 {
		devAmount := new(big.Int).Mul(amount, big.NewInt(int64(d.settings.devCut)))
		devAmount.Div(devAmount, bpsDenominator)
		if err := target.Transfer(d.self, d.settings.devAddr, devAmount); err != nil {
			return nil, fmt.Errorf("pay dev %s: %w", d.settings.devAddr.Hex(), err)
		}
		toStaking.Sub(toStaking, devAmount)
	}
	if err := target.Transfer(d.self, d.settings.stakingAddr, toStaking); err != nil {
		return nil, fmt.Errorf("pay staking %s: %w", d.settings.stakingAddr.Hex(), err)
	}
	return new(big.Int).Set(amount), nil
}
