// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pledge validates a backer's pledge message against a project
// and an external UTXO oracle. Verification proceeds in strict phases
// and fails fast: the first failing phase's error is returned and no
// later phase runs.
package pledge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/pledgeco/assurance/messages"
	"github.com/pledgeco/assurance/pkg/standard"
	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/sigengine"
	"github.com/pledgeco/assurance/txmodel"
)

// UTXOOracle resolves outpoints to their current outputs. The returned
// slice is positional: result[i] answers outpoints[i], and a nil entry
// means the outpoint is unknown to the oracle (spent, never existed, or
// on a fork the oracle does not follow).
type UTXOOracle interface {
	LookupOutputs(ctx context.Context, outpoints []wire.OutPoint) ([]*wire.TxOut, error)
}

// VerifiedPledge is the result of a successful verification: the parsed
// pledge transaction, any dependency transactions it relies on to
// resolve its stub, and the oracle-authoritative sum of its input
// values.
type VerifiedPledge struct {
	Tx            *wire.MsgTx
	DependencyTxs []*wire.MsgTx
	InputValue    btcutil.Amount
}

// parseTransactions decodes a pledge message's transaction list. The
// last entry is the pledge transaction proper; any earlier entries are
// dependency transactions.
func parseTransactions(raw [][]byte) (tx *wire.MsgTx, deps []*wire.MsgTx, err error) {
	if len(raw) == 0 {
		return nil, nil, verifyError(ErrNoTransactionData, "pledge has no transactions", nil)
	}
	for i, encoded := range raw {
		var parsed wire.MsgTx
		if err := parsed.Deserialize(bytes.NewReader(encoded)); err != nil {
			return nil, nil, verifyError(ErrNoTransactionData,
				fmt.Sprintf("pledge transaction %d does not parse", i), err)
		}
		if i == len(raw)-1 {
			tx = &parsed
		} else {
			deps = append(deps, &parsed)
		}
	}
	return tx, deps, nil
}

// FastSanityCheck runs every structural check that does not require an
// oracle: no duplicated outpoint, matching output count, byte-exact
// output match against the project, and standard output scripts. It is
// exposed separately so a wallet or relay can reject an obviously-
// malformed pledge before touching the oracle at all.
func FastSanityCheck(tx *wire.MsgTx, proj *project.Project) error {
	if txmodel.HasDuplicateOutPoint(tx) {
		return verifyError(ErrDuplicatedOutPoint, "pledge inputs reference the same outpoint twice", nil)
	}

	wantOutputs := proj.Outputs()
	if len(tx.TxOut) != len(wantOutputs) {
		return verifyError(ErrTxWrongNumberOfOutputs, fmt.Sprintf(
			"pledge has %d outputs, project requires %d", len(tx.TxOut), len(wantOutputs)), nil)
	}
	for i, out := range tx.TxOut {
		want := wantOutputs[i]
		if out.Value != want.Amount || !bytes.Equal(out.PkScript, want.Script) {
			return verifyError(ErrOutputMismatch, fmt.Sprintf(
				"pledge output %d does not match project output %d", i, i), nil)
		}
	}
	for i, out := range tx.TxOut {
		if !standard.IsStandard(out.PkScript) {
			return verifyError(ErrNonStandard, fmt.Sprintf("pledge output %d is non-standard", i), nil)
		}
	}
	return nil
}

// Verify validates msg against proj, consulting oracle to resolve every
// outpoint the pledge transaction's inputs reference, and returns the
// verified transaction and its authoritative input value on success.
func Verify(ctx context.Context, msg *messages.Pledge, proj *project.Project, oracle UTXOOracle) (*VerifiedPledge, error) {
	// Phase 1: no-tx.
	tx, deps, err := parseTransactions(msg.Transactions)
	if err != nil {
		log.Debugf("Pledge to project %s rejected: %v", msg.ProjectID, err)
		return nil, err
	}

	// Phase 2: structural sanity.
	if err := FastSanityCheck(tx, proj); err != nil {
		return nil, err
	}

	// Phase 3: UTXO resolution.
	outpoints := make([]wire.OutPoint, len(tx.TxIn))
	for i, in := range tx.TxIn {
		outpoints[i] = in.PreviousOutPoint
	}
	resolved, err := oracle.LookupOutputs(ctx, outpoints)
	if err != nil {
		return nil, verifyError(ErrUnknownUTXO, "utxo oracle lookup failed", err)
	}
	if len(resolved) != len(outpoints) {
		return nil, verifyError(ErrUnknownUTXO, "utxo oracle returned the wrong number of results", nil)
	}
	for i, out := range resolved {
		if out == nil {
			return nil, verifyError(ErrUnknownUTXO, fmt.Sprintf(
				"outpoint %s is unknown to the oracle", outpoints[i]), nil)
		}
	}

	// Phase 4: declared-value check.
	var resolvedTotal int64
	for _, out := range resolved {
		resolvedTotal += out.Value
	}
	if resolvedTotal != msg.TotalInputValue {
		return nil, verifyError(ErrCachedValueMismatch, fmt.Sprintf(
			"declared total input value %d disagrees with oracle-resolved total %d",
			msg.TotalInputValue, resolvedTotal), nil)
	}

	// Phase 5: script validation.
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, out := range resolved {
		fetcher.AddPrevOut(outpoints[i], out)
	}
	for i, prevOut := range resolved {
		if err := sigengine.Verify(tx, i, *prevOut, fetcher, sigengine.PolicyPledge); err != nil {
			return nil, verifyError(ErrScriptError, fmt.Sprintf("input %d failed script validation", i), err)
		}
	}

	// Phase 6: pledge-output value vs goal. Implicit from phase 2, which
	// already requires the outputs to equal the project's, but checked
	// explicitly. A pledge's own input value may be less than its
	// outputs' total; other pledges make up the rest in the contract.
	var outputTotal int64
	for _, out := range tx.TxOut {
		outputTotal += out.Value
	}
	if btcutil.Amount(outputTotal) > proj.Goal() {
		return nil, verifyError(ErrOutputMismatch, fmt.Sprintf(
			"pledge outputs total %d exceeds project goal %d", outputTotal, proj.Goal()), nil)
	}

	log.Debugf("Pledge to project %s verified: %v across %d input(s)",
		msg.ProjectID, btcutil.Amount(resolvedTotal), len(tx.TxIn))

	return &VerifiedPledge{
		Tx:            tx,
		DependencyTxs: deps,
		InputValue:    btcutil.Amount(resolvedTotal),
	}, nil
}
