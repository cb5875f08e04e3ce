// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feerules holds the non-consensus policy the wallet applies to
// outputs and fees it constructs itself: the revocation transaction, the
// dependency transaction created when no exact-value stub exists, and
// the fee-paying input the contract assembler appends to finalize a
// contract.
package feerules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy used when
// none is supplied by the caller, the single fixed minimum this package
// implements in place of a full fee-market model.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// IsDustAmount determines whether a transaction output value and script
// length would cause the output to be considered dust.
func IsDustAmount(amount btcutil.Amount, scriptSize int, relayFeePerKb btcutil.Amount) bool {
	// Total cost to the network is the output's serialize size plus the
	// serialize size of the input that would redeem it. We use the
	// average size of a P2WPKH redeem (a stub or change output) rather
	// than the largest possible input.
	totalSize := 8 + 2 + wire.VarIntSerializeSize(uint64(scriptSize)) +
		scriptSize + 107

	return int64(amount)*1000/(3*int64(totalSize)) < int64(relayFeePerKb)
}

// IsDustOutput determines whether a transaction output is considered dust.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}
	if txscript.IsUnspendable(output.PkScript) {
		return true
	}
	return IsDustAmount(btcutil.Amount(output.Value), len(output.PkScript),
		relayFeePerKb)
}

// Transaction rule violations.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// CheckOutput performs simple consensus and policy tests on a transaction
// output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of
// some arbitrary size given a relay-fee policy.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount, txSerializeSize int) btcutil.Amount {
	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}
	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}
	return fee
}
