package indexer

import (
	"errors"
	"fmt"
	"strings"

	tokenregistry "github.com/defistate/defistate-maker-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTokenNotFound is returned when a reference matches no token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrAmbiguousSymbol is returned when a symbol is shared by several tokens.
	ErrAmbiguousSymbol = errors.New("ambiguous token symbol")
)

// Indexer builds IndexedTokenSystems.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed token system from a raw slice of tokens.
func (i *Indexer) Index(tokens []tokenregistry.Token) IndexedTokenSystem {
	return NewIndexableTokenSystem(tokens)
}

// IndexableTokenSystem provides fast lookups by address and by symbol.
// Symbols are matched case-insensitively.
type IndexableTokenSystem struct {
	byAddress map[common.Address]tokenregistry.Token
	bySymbol  map[string]tokenregistry.Token
	ambiguous map[string]struct{}
	all       []tokenregistry.Token
}

// NewIndexableTokenSystem creates a new indexed token system from a raw slice.
func NewIndexableTokenSystem(tokens []tokenregistry.Token) *IndexableTokenSystem {
	byAddress := make(map[common.Address]tokenregistry.Token, len(tokens))
	bySymbol := make(map[string]tokenregistry.Token, len(tokens))
	ambiguous := make(map[string]struct{})

	for _, t := range tokens {
		byAddress[t.Address] = t
		if t.Symbol == "" {
			continue
		}
		key := strings.ToUpper(t.Symbol)
		if prev, seen := bySymbol[key]; seen && prev.Address != t.Address {
			ambiguous[key] = struct{}{}
		}
		bySymbol[key] = t
	}

	all := make([]tokenregistry.Token, len(tokens))
	copy(all, tokens)
	return &IndexableTokenSystem{
		byAddress: byAddress,
		bySymbol:  bySymbol,
		ambiguous: ambiguous,
		all:       all,
	}
}

// GetByAddress retrieves a token by its contract address.
func (its *IndexableTokenSystem) GetByAddress(address common.Address) (tokenregistry.Token, bool) {
	t, ok := its.byAddress[address]
	return t, ok
}

// GetBySymbol retrieves a token by symbol. Ambiguous symbols are not found.
func (its *IndexableTokenSystem) GetBySymbol(symbol string) (tokenregistry.Token, bool) {
	key := strings.ToUpper(symbol)
	if _, ok := its.ambiguous[key]; ok {
		return tokenregistry.Token{}, false
	}
	t, ok := its.bySymbol[key]
	return t, ok
}

// Resolve looks ref up as a hex address first and as a symbol otherwise.
func (its *IndexableTokenSystem) Resolve(ref string) (tokenregistry.Token, error) {
	if common.IsHexAddress(ref) {
		if t, ok := its.GetByAddress(common.HexToAddress(ref)); ok {
			return t, nil
		}
		return tokenregistry.Token{}, fmt.Errorf("%w: %s", ErrTokenNotFound, ref)
	}
	if _, ok := its.ambiguous[strings.ToUpper(ref)]; ok {
		return tokenregistry.Token{}, fmt.Errorf("%w: %s", ErrAmbiguousSymbol, ref)
	}
	if t, ok := its.GetBySymbol(ref); ok {
		return t, nil
	}
	return tokenregistry.Token{}, fmt.Errorf("%w: %s", ErrTokenNotFound, ref)
}

// All returns a defensive copy of the slice of all tokens in the system.
func (its *IndexableTokenSystem) All() []tokenregistry.Token {
	allCopy := make([]tokenregistry.Token, len(its.all))
	copy(allCopy, its.all)
	return allCopy
}
