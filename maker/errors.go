package maker

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidConfiguration is returned for a zero address, a self-referential
	// bridge, a cut above its ceiling or a slippage of 50% or more.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnauthorized is returned when the caller lacks the capability an
	// operation requires.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPoolNotFound is returned when no pair exists for a required token pair.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrSlippageExceeded is returned when the round-trip quote check fails.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrArityMismatch is returned when batch inputs differ in length.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrRoutingCycleDetected is returned when a route revisits a step or
	// does not reach the target or base asset within the hop bound.
	ErrRoutingCycleDetected = errors.New("routing cycle detected")
)

// SwapError describes a failed hop.
type SwapError struct {
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Err      error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("swap %s of %s -> %s: %v", e.AmountIn, e.TokenIn.Hex(), e.TokenOut.Hex(), e.Err)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// ConversionError describes a failed pair within a conversion request.
// Index is the position of the pair in the batch.
type ConversionError struct {
	Index  int
	Token0 common.Address
	Token1 common.Address
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert #%d (%s, %s): %v", e.Index, e.Token0.Hex(), e.Token1.Hex(), e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ConfigError describes a rejected configuration change.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// determineErrorType maps an error to the label used by the errors metric.
func determineErrorType(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ErrArityMismatch):
		return "arity_mismatch"
	case errors.Is(err, ErrRoutingCycleDetected):
		return "routing_cycle"
	}
	var swapErr *SwapError
	if errors.As(err, &swapErr) {
		return "swap"
	}
	return "unknown"
}
