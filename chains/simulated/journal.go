package simulated

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a single revertible state change.
type journalEntry interface {
	revert(c *Chain)
}

// journal records every state change in order so that a snapshot can be
// rolled back by undoing the tail.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

func (j *journal) reset() {
	j.entries = nil
}

// revertTo undoes entries in reverse order until only 'length' remain.
func (j *journal) revertTo(c *Chain, length int) {
	for i := len(j.entries) - 1; i >= length; i-- {
		j.entries[i].revert(c)
		j.entries[i] = nil
	}
	j.entries = j.entries[:length]
}

type (
	balanceChange struct {
		token   common.Address
		account common.Address
		prev    *uint256.Int // nil when the account had no entry
	}
	supplyChange struct {
		token common.Address
		prev  *uint256.Int
	}
	reservesChange struct {
		pair  common.Address
		prev0 *uint256.Int
		prev1 *uint256.Int
	}
	logChange struct{}
)

func (ch balanceChange) revert(c *Chain) {
	t := c.tokens[ch.token]
	if ch.prev == nil {
		delete(t.balances, ch.account)
		return
	}
	t.balances[ch.account] = ch.prev
}

func (ch supplyChange) revert(c *Chain) {
	c.tokens[ch.token].totalSupply = ch.prev
}

func (ch reservesChange) revert(c *Chain) {
	p := c.pairs[ch.pair]
	p.reserve0 = ch.prev0
	p.reserve1 = ch.prev1
}

func (ch logChange) revert(c *Chain) {
	c.logs = c.logs[:len(c.logs)-1]
}
