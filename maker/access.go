package maker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// accessControl holds the two capabilities the maker checks: a single owner
// that may reconfigure it, and the set of callers allowed to trigger
// conversions. The two are never conflated.
type accessControl struct {
	owner common.Address

	// authorized is enumerable by index; positions maps a member to its slot.
	authorized []common.Address
	positions  map[common.Address]int
}

func newAccessControl(owner common.Address) *accessControl {
	return &accessControl{
		owner:     owner,
		positions: make(map[common.Address]int),
	}
}

func (a *accessControl) requireOwner(caller common.Address) error {
	if caller != a.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (a *accessControl) requireAuthorized(caller common.Address) error {
	if !a.contains(caller) {
		return fmt.Errorf("%w: %s is not an authorized caller", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (a *accessControl) contains(addr common.Address) bool {
	_, ok := a.positions[addr]
	return ok
}

// add reports whether addr was newly inserted.
func (a *accessControl) add(addr common.Address) bool {
	if a.contains(addr) {
		return false
	}
	a.positions[addr] = len(a.authorized)
	a.authorized = append(a.authorized, addr)
	return true
}

// remove swaps the last member into the removed slot, so indexes of other
// members may change.
func (a *accessControl) remove(addr common.Address) bool {
	i, ok := a.positions[addr]
	if !ok {
		return false
	}
	last := len(a.authorized) - 1
	if i != last {
		moved := a.authorized[last]
		a.authorized[i] = moved
		a.positions[moved] = i
	}
	a.authorized = a.authorized[:last]
	delete(a.positions, addr)
	return true
}

func (a *accessControl) at(index int) (common.Address, error) {
	if index < 0 || index >= len(a.authorized) {
		return common.Address{}, fmt.Errorf("authorized index %d out of range [0, %d)", index, len(a.authorized))
	}
	return a.authorized[index], nil
}

func (a *accessControl) count() int {
	return len(a.authorized)
}
