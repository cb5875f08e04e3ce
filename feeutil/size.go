// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feeutil estimates the serialized and virtual size of
// transactions built by the pledging wallet: dependency transactions
// (P2WPKH in, P2WPKH/P2PKH out) and the fee-paying input appended by the
// contract assembler's finalize step. The estimates themselves come from
// wallet/txsizes; this package only narrows its input/output template
// catalog to the two the wallet actually produces or spends, P2PKH and
// P2WPKH.
package feeutil

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Re-exported so callers that only ever build P2PKH/P2WPKH inputs and
// outputs don't need to import txsizes directly.
const (
	RedeemP2PKHSigScriptSize       = txsizes.RedeemP2PKHSigScriptSize
	P2PKHPkScriptSize              = txsizes.P2PKHPkScriptSize
	RedeemP2PKHInputSize           = txsizes.RedeemP2PKHInputSize
	P2PKHOutputSize                = txsizes.P2PKHOutputSize
	P2WPKHPkScriptSize             = txsizes.P2WPKHPkScriptSize
	P2WPKHOutputSize               = txsizes.P2WPKHOutputSize
	RedeemP2WPKHInputSize          = txsizes.RedeemP2WPKHInputSize
	RedeemP2WPKHInputWitnessWeight = txsizes.RedeemP2WPKHInputWitnessWeight
)

// SumOutputSerializeSizes sums up the serialized size of the supplied outputs.
func SumOutputSerializeSizes(outputs []*wire.TxOut) int {
	return txsizes.SumOutputSerializeSizes(outputs)
}

// EstimateVirtualSize returns a worst case virtual size estimate for a
// signed transaction spending numP2PKHIns P2PKH inputs and numP2WPKHIns
// P2WPKH inputs, and containing each output in txOuts plus, if
// changeScriptSize is nonzero, a single change output of that script
// size. The wallet never spends or produces taproot or nested-P2SH-P2WPKH
// outputs, so those counts are always zero here.
func EstimateVirtualSize(numP2PKHIns, numP2WPKHIns int, txOuts []*wire.TxOut,
	changeScriptSize int) int {

	return txsizes.EstimateVirtualSize(numP2PKHIns, numP2WPKHIns, 0, txOuts, changeScriptSize)
}

// GetMinInputVirtualSize returns the minimum number of vbytes that
// spending an output with the given script adds to a transaction.
func GetMinInputVirtualSize(pkScript []byte) int {
	return txsizes.GetMinInputVirtualSize(pkScript)
}
