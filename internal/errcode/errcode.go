package errcode

import (
	"errors"
	"fmt"
)

// Kind groups failures by how a caller should react to them.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindArithmetic    Kind = "arithmetic"
	KindState         Kind = "state"
	KindSlippage      Kind = "slippage"
)

// Error is a coded engine failure. Two errors with the same code match under errors.Is.
type Error struct {
	Code    uint32
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("err %d: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrUnauthorized           = &Error{Code: 100, Kind: KindAuthorization, Message: "unauthorized"}
	ErrTokenNotFound          = &Error{Code: 101, Kind: KindState, Message: "token not found"}
	ErrPoolNotFound           = &Error{Code: 102, Kind: KindState, Message: "pool not found"}
	ErrPositionNotFound       = &Error{Code: 103, Kind: KindState, Message: "position not found"}
	ErrAlreadyExists          = &Error{Code: 104, Kind: KindValidation, Message: "already exists"}
	ErrPoolExists             = &Error{Code: 104, Kind: KindValidation, Message: "pool exists"}
	ErrTokenExists            = &Error{Code: 104, Kind: KindValidation, Message: "token exists"}
	ErrInsufficientLiquidity  = &Error{Code: 105, Kind: KindState, Message: "insufficient liquidity"}
	ErrArithmeticOverflow     = &Error{Code: 106, Kind: KindArithmetic, Message: "arithmetic overflow"}
	ErrConvergence            = &Error{Code: 107, Kind: KindArithmetic, Message: "invariant did not converge"}
	ErrSlippageExceeded       = &Error{Code: 108, Kind: KindSlippage, Message: "slippage exceeded"}
	ErrTransferFailed         = &Error{Code: 109, Kind: KindState, Message: "transfer failed"}
	ErrInvalidParameters      = &Error{Code: 111, Kind: KindValidation, Message: "invalid parameters"}
	ErrInvalidCurveParameters = &Error{Code: 111, Kind: KindValidation, Message: "invalid curve parameters"}
	ErrRangeInvalid           = &Error{Code: 112, Kind: KindValidation, Message: "invalid range"}
	ErrShutdownActive         = &Error{Code: 114, Kind: KindState, Message: "shutdown active"}
)

// CodeOf returns the code of the first coded error in err's chain, or 0.
func CodeOf(err error) uint32 {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return 0
}

// KindOf returns the kind of the first coded error in err's chain.
func KindOf(err error) (Kind, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Kind, true
	}
	return "", false
}

// Wrap annotates a coded error with call-site detail while keeping it matchable.
func Wrap(base *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
