// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore

import "fmt"

// ErrorCode identifies a kind of wallet-core failure. The set is closed,
// matching the closed ErrorCode/VerifyError pattern of the pledge
// package.
type ErrorCode int

const (
	// ErrInsufficientFunds indicates the wallet's spendable outputs
	// cannot cover a requested value plus fees.
	ErrInsufficientFunds ErrorCode = iota

	// ErrPreconditionViolated indicates an operation attempted from a
	// state that does not permit it, such as committing a pledge twice.
	ErrPreconditionViolated
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInsufficientFunds:    "ErrInsufficientFunds",
	ErrPreconditionViolated: "ErrPreconditionViolated",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is the error type every walletcore operation that fails for a
// caller-actionable reason returns.
type Error struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap exposes the underlying cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

func walletError(code ErrorCode, desc string, err error) *Error {
	return &Error{ErrorCode: code, Description: desc, Err: err}
}
