package api

import (
	"errors"

	"github.com/defistate/defistate-maker-go/maker"
)

// Error codes returned in the JSON-RPC error object.
const (
	CodeInternal             = -32000
	CodeInvalidConfiguration = -33001
	CodeUnauthorized         = -33002
	CodePoolNotFound         = -33003
	CodeSlippageExceeded     = -33004
	CodeArityMismatch        = -33005
	CodeRoutingCycleDetected = -33006
)

// Error is a maker rejection carried over JSON-RPC with a stable code.
type Error struct {
	code int
	err  error
}

func (e *Error) Error() string  { return e.err.Error() }
func (e *Error) ErrorCode() int { return e.code }
func (e *Error) Unwrap() error  { return e.err }

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	switch {
	case errors.Is(err, maker.ErrUnauthorized):
		code = CodeUnauthorized
	case errors.Is(err, maker.ErrInvalidConfiguration):
		code = CodeInvalidConfiguration
	case errors.Is(err, maker.ErrPoolNotFound):
		code = CodePoolNotFound
	case errors.Is(err, maker.ErrSlippageExceeded):
		code = CodeSlippageExceeded
	case errors.Is(err, maker.ErrArityMismatch):
		code = CodeArityMismatch
	case errors.Is(err, maker.ErrRoutingCycleDetected):
		code = CodeRoutingCycleDetected
	}
	return &Error{code: code, err: err}
}
