// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package contract assembles verified pledges into a single candidate
// transaction. Because every pledge input is signed under the
// append-permitted policy, assembly is pure concatenation:
// no pledge's signature needs to be touched, and pledges may be added
// in any order.
package contract

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/pledgeco/assurance/feerules"
	"github.com/pledgeco/assurance/feeutil"
	"github.com/pledgeco/assurance/pledge"
	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/sigengine"
)

// TotalInputValue sums the authoritative input value of every pledge.
func TotalInputValue(pledges []*pledge.VerifiedPledge) btcutil.Amount {
	var total btcutil.Amount
	for _, p := range pledges {
		total += p.InputValue
	}
	return total
}

// Complete builds the candidate contract transaction: proj's required
// outputs, unmodified, followed by every pledge's single input,
// verbatim, in the order given. The sum of input values may fall short
// of, equal, or exceed the project's goal; the caller decides whether
// that is acceptable.
func Complete(proj *project.Project, pledges []*pledge.VerifiedPledge) (*wire.MsgTx, error) {
	tx := &wire.MsgTx{
		Version:  wire.TxVersion,
		LockTime: 0,
	}
	for _, out := range proj.Outputs() {
		tx.AddTxOut(&wire.TxOut{Value: out.Amount, PkScript: out.Script})
	}
	for _, p := range pledges {
		if len(p.Tx.TxIn) != 1 {
			return nil, fmt.Errorf("contract: pledge transaction %s does not have exactly one input",
				p.Tx.TxHash())
		}
		in := p.Tx.TxIn[0]
		tx.AddTxIn(wire.NewTxIn(&in.PreviousOutPoint, in.SignatureScript, in.Witness))
	}
	return tx, nil
}

// CompleteStrict is Complete with the additional requirement that the
// combined pledge input value meet or exceed the project's goal; it
// returns a pledge.ErrValueMismatch VerifyError otherwise.
func CompleteStrict(proj *project.Project, pledges []*pledge.VerifiedPledge) (*wire.MsgTx, error) {
	if TotalInputValue(pledges) < proj.Goal() {
		return nil, fmt.Errorf("contract: %w", &pledge.VerifyError{
			ErrorCode:   pledge.ErrValueMismatch,
			Description: fmt.Sprintf("pledged value %d is short of goal %d", TotalInputValue(pledges), proj.Goal()),
		})
	}
	return Complete(proj, pledges)
}

// FeeInput is a wallet-owned output the finalizer may spend to cover
// the fee needed to get an otherwise-complete contract relayed.
type FeeInput struct {
	OutPoint    wire.OutPoint
	Output      wire.TxOut
	PrivKey     *btcec.PrivateKey
	ChangeAddr  btcutil.Address
	ChainParams *chaincfg.Params
}

// Finalize appends a single fee-paying input to an assembled contract,
// signed with the plain (non-append) ALL policy since no further
// inputs are expected once a fee has been attached, and adds a change
// output when the leftover exceeds the dust threshold.
func Finalize(tx *wire.MsgTx, fee FeeInput, relayFeePerKb btcutil.Amount) (*wire.MsgTx, error) {
	changeScript, err := txscript.PayToAddrScript(fee.ChangeAddr)
	if err != nil {
		return nil, fmt.Errorf("contract: build change script: %w", err)
	}

	numP2WKHIns := 1
	estimatedSize := feeutil.EstimateVirtualSize(0, numP2WKHIns, tx.TxOut, len(changeScript))
	txFee := feerules.FeeForSerializeSize(relayFeePerKb, estimatedSize)

	change := fee.Output.Value - int64(txFee)
	if change < 0 {
		return nil, fmt.Errorf("contract: fee input %d is insufficient to cover fee %d", fee.Output.Value, txFee)
	}

	tx.AddTxIn(wire.NewTxIn(&fee.OutPoint, nil, nil))
	feeInIdx := len(tx.TxIn) - 1

	changeOut := &wire.TxOut{Value: change, PkScript: changeScript}
	if !feerules.IsDustOutput(changeOut, relayFeePerKb) {
		tx.AddTxOut(changeOut)
	}

	// The pledge inputs' prevouts are not known here. A segwit v0 sighash
	// only reads the prevout of the input being signed, so a fetcher that
	// answers every outpoint with the fee output is enough.
	fetcher := txscript.NewCannedPrevOutputFetcher(fee.Output.PkScript, fee.Output.Value)
	hashCache := txscript.NewTxSigHashes(tx, fetcher)
	witness, err := sigengine.SignWitnessKeyHash(
		tx, feeInIdx, fee.Output, hashCache, sigengine.PolicyAll, fee.ChainParams, fee.PrivKey,
	)
	if err != nil {
		return nil, fmt.Errorf("contract: sign fee input: %w", err)
	}
	tx.TxIn[feeInIdx].Witness = witness

	return tx, nil
}
