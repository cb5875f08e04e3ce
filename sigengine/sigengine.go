// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sigengine signs and verifies a single transaction input under a
// configurable sighash policy, including the mode that makes assurance
// contracts possible: a signature that commits to this
// input and to every output, but to no other input, so that unrelated
// inputs can be appended later without invalidating it.
//
// The two policies the core cares about map directly onto Bitcoin's own
// sighash flags:
//
//   - PolicyAll is plain SIGHASH_ALL: every input and output is covered.
//   - PolicyPledge is SIGHASH_ALL|SIGHASH_ANYONECANPAY: every output is
//     covered, but only this one input is. Inputs may be added, removed,
//     or reordered afterward without disturbing the signature.
package sigengine

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Policy is a sighash type governing what a signature commits to.
type Policy = txscript.SigHashType

const (
	// PolicyAll commits to all inputs and all outputs.
	PolicyAll Policy = txscript.SigHashAll

	// PolicyPledge is the append-permitted policy used by pledges: all
	// outputs, but only the signing input.
	PolicyPledge Policy = txscript.SigHashAll | txscript.SigHashAnyOneCanPay
)

// ErrPolicyMismatch is returned by Verify when a signature's embedded
// sighash-type byte does not match the policy the caller expected it to
// have been produced under.
var ErrPolicyMismatch = errors.New("sigengine: signature sighash type does not match expected policy")

// ScriptError wraps any failure of the underlying script interpreter,
// including a policy mismatch caught before the interpreter runs.
type ScriptError struct {
	InputIndex int
	Err        error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("sigengine: input %d: %v", e.InputIndex, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// SignWitnessKeyHash produces a witness that spends a P2WKH output at
// tx.TxIn[idx] under the given policy. prevOut is the output being
// redeemed by that input; hashCache amortizes sighash midstate
// computation across every input of tx, as it does in
// txauthor.AddAllInputScripts.
func SignWitnessKeyHash(tx *wire.MsgTx, idx int, prevOut wire.TxOut,
	hashCache *txscript.TxSigHashes, policy Policy,
	chainParams *chaincfg.Params, privKey *btcec.PrivateKey) (wire.TxWitness, error) {

	pubKey := privKey.PubKey()
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	p2wkhAddr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, chainParams)
	if err != nil {
		return nil, fmt.Errorf("sigengine: derive p2wkh address: %w", err)
	}
	witnessProgram, err := txscript.PayToAddrScript(p2wkhAddr)
	if err != nil {
		return nil, fmt.Errorf("sigengine: build witness program: %w", err)
	}

	witness, err := txscript.WitnessSignature(
		tx, hashCache, idx, prevOut.Value, witnessProgram, policy,
		privKey, true,
	)
	if err != nil {
		return nil, fmt.Errorf("sigengine: sign input %d: %w", idx, err)
	}
	return witness, nil
}

// SignPubKeyHash produces a SignatureScript that spends a P2PKH output at
// tx.TxIn[idx] under the given policy. prevOut is the output being
// redeemed by that input. Grounded on rpcserver.go's legacy signing path:
// a KeyClosure/ScriptClosure pair feeding txscript.SignTxOutput.
func SignPubKeyHash(tx *wire.MsgTx, idx int, prevOut wire.TxOut, policy Policy,
	chainParams *chaincfg.Params, privKey *btcec.PrivateKey) ([]byte, error) {

	getKey := txscript.KeyClosure(func(btcutil.Address) (*btcec.PrivateKey, bool, error) {
		return privKey, true, nil
	})
	getScript := txscript.ScriptClosure(func(btcutil.Address) ([]byte, error) {
		return nil, errors.New("sigengine: no redeem script available")
	})

	sigScript, err := txscript.SignTxOutput(
		chainParams, tx, idx, prevOut.PkScript, policy, getKey, getScript, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("sigengine: sign input %d: %w", idx, err)
	}
	return sigScript, nil
}

// EmbeddedPolicy extracts the sighash-type byte a raw ECDSA signature
// (DER-encoded, trailing hash-type byte) was produced with. witness must
// be a two-item P2WKH witness stack (signature, pubkey), as produced by
// SignWitnessKeyHash.
func EmbeddedPolicy(witness wire.TxWitness) (Policy, error) {
	if len(witness) < 1 || len(witness[0]) == 0 {
		return 0, errors.New("sigengine: empty witness signature item")
	}
	return sigHashByte(witness[0])
}

// embeddedLegacyPolicy extracts the sighash-type byte from a legacy
// SignatureScript (P2PKH, P2PK, or bare multisig). The first non-empty
// pushed data item is always a signature: for P2PKH/P2PK it's the only
// signature, for bare multisig it's the first one after the mandatory
// OP_0 dummy push.
func embeddedLegacyPolicy(sigScript []byte) (Policy, error) {
	pushes, err := txscript.PushedData(sigScript)
	if err != nil {
		return 0, fmt.Errorf("parse signature script: %w", err)
	}
	for _, push := range pushes {
		if len(push) == 0 {
			continue
		}
		return sigHashByte(push)
	}
	return 0, errors.New("sigengine: no signature push in signature script")
}

func sigHashByte(sig []byte) (Policy, error) {
	if len(sig) == 0 {
		return 0, errors.New("sigengine: empty signature")
	}
	return Policy(sig[len(sig)-1]), nil
}

// Verify checks that tx's input at idx, given the previous outputs of
// every input supplied by fetcher, is a consensus-valid spend of
// prevScript, and that the embedded sighash policy of the input's
// signature matches expectedPolicy exactly; a mismatch or invalid
// signature fails with a ScriptError.
//
// This runs the chain's actual script interpreter (txscript.NewEngine)
// rather than re-deriving and comparing a digest by hand, so that
// non-standard or otherwise-invalid scripts are rejected the same way
// the network itself would reject them.
func Verify(tx *wire.MsgTx, idx int, prevOut wire.TxOut,
	fetcher txscript.PrevOutputFetcher, expectedPolicy Policy) error {

	if idx < 0 || idx >= len(tx.TxIn) {
		return &ScriptError{idx, errors.New("input index out of range")}
	}

	var (
		policy Policy
		err    error
	)
	if len(tx.TxIn[idx].Witness) > 0 {
		policy, err = EmbeddedPolicy(tx.TxIn[idx].Witness)
	} else {
		policy, err = embeddedLegacyPolicy(tx.TxIn[idx].SignatureScript)
	}
	if err != nil {
		return &ScriptError{idx, err}
	}
	if policy != expectedPolicy {
		return &ScriptError{idx, ErrPolicyMismatch}
	}

	hashCache := txscript.NewTxSigHashes(tx, fetcher)
	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		hashCache, prevOut.Value, fetcher,
	)
	if err != nil {
		return &ScriptError{idx, fmt.Errorf("build engine: %w", err)}
	}
	if err := vm.Execute(); err != nil {
		return &ScriptError{idx, fmt.Errorf("execute: %w", err)}
	}
	return nil
}
