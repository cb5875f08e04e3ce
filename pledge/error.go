// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pledge

import "fmt"

// ErrorCode identifies a kind of verification failure. The set is
// closed: every value Verify can return is named here.
type ErrorCode int

const (
	// ErrNoTransactionData indicates a pledge carrying no transactions
	// at all.
	ErrNoTransactionData ErrorCode = iota

	// ErrDuplicatedOutPoint indicates the pledge transaction's inputs
	// reference the same outpoint more than once.
	ErrDuplicatedOutPoint

	// ErrTxWrongNumberOfOutputs indicates the pledge transaction's
	// output count does not match the project's.
	ErrTxWrongNumberOfOutputs

	// ErrOutputMismatch indicates a pledge output differs in amount or
	// script from the project's corresponding output.
	ErrOutputMismatch

	// ErrNonStandard indicates a pledge output script falls outside
	// the standard template set.
	ErrNonStandard

	// ErrUnknownUTXO indicates the oracle could not resolve one of the
	// pledge's referenced outpoints.
	ErrUnknownUTXO

	// ErrCachedValueMismatch indicates the pledge's declared total
	// input value disagrees with the oracle-resolved total.
	ErrCachedValueMismatch

	// ErrScriptError indicates signature verification failed for one
	// of the pledge's inputs.
	ErrScriptError

	// ErrValueMismatch indicates, when combining pledges into a
	// contract, that the sum of pledge inputs falls short of the
	// project's goal.
	ErrValueMismatch
)

var errorCodeStrings = map[ErrorCode]string{
	ErrNoTransactionData:      "ErrNoTransactionData",
	ErrDuplicatedOutPoint:     "ErrDuplicatedOutPoint",
	ErrTxWrongNumberOfOutputs: "ErrTxWrongNumberOfOutputs",
	ErrOutputMismatch:         "ErrOutputMismatch",
	ErrNonStandard:            "ErrNonStandard",
	ErrUnknownUTXO:            "ErrUnknownUTXO",
	ErrCachedValueMismatch:    "ErrCachedValueMismatch",
	ErrScriptError:            "ErrScriptError",
	ErrValueMismatch:          "ErrValueMismatch",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// VerifyError is the single error type verification returns. Err, when
// set, carries the underlying cause (e.g. the txscript engine failure
// behind an ErrScriptError).
type VerifyError struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e *VerifyError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap exposes the underlying cause, if any, to errors.Is/As.
func (e *VerifyError) Unwrap() error { return e.Err }

func verifyError(code ErrorCode, desc string, err error) *VerifyError {
	return &VerifyError{ErrorCode: code, Description: desc, Err: err}
}
