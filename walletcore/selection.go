// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/pledgeco/assurance/feerules"
	"github.com/pledgeco/assurance/feeutil"
)

// excludePledged filters candidates down to those not already
// referenced by a tracked (pending, committed, or revoke-in-progress)
// pledge, implementing the wallet's overridden coin-selection
// discipline of excluding every stub already committed to a pledge
// from its candidate set.
func excludePledged(candidates []Stub, pledged map[wire.OutPoint]struct{}) []Stub {
	filtered := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := pledged[c.OutPoint]; !ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// selectExact returns the first candidate whose amount exactly equals
// target, implementing the wallet's preference for an exact match
// before falling back to the general algorithm.
func selectExact(candidates []Stub, target btcutil.Amount) (Stub, bool) {
	for _, c := range candidates {
		if c.Amount == target {
			return c, true
		}
	}
	return Stub{}, false
}

// selectForValue accumulates candidates, in the order given, until
// their total covers target plus the fee of spending them into a
// transaction with one payment output of size valueScriptSize and one
// change output of size changeScriptSize. It mirrors the accumulate-
// and-check loop of the general (non-exact) selection algorithm, but
// unconditionally accepts every input it adds rather than rejecting
// negative-yielding ones, since a dependency transaction has exactly
// one required payment and never sweeps a whole wallet.
func selectForValue(candidates []Stub, target, feeRatePerKb btcutil.Amount,
	valueScriptSize, changeScriptSize int) (selected []Stub, total, fee btcutil.Amount, err error) {

	valueOut := &wire.TxOut{PkScript: make([]byte, valueScriptSize)}
	for _, c := range candidates {
		selected = append(selected, c)
		total += c.Amount

		size := feeutil.EstimateVirtualSize(0, len(selected), []*wire.TxOut{valueOut}, changeScriptSize)
		fee = feerules.FeeForSerializeSize(feeRatePerKb, size)

		if total >= target+fee {
			return selected, total, fee, nil
		}
	}
	return nil, 0, 0, walletError(ErrInsufficientFunds,
		"insufficient funds to cover value plus fee", nil)
}
