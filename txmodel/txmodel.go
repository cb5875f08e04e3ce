// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txmodel wraps the chain's own wire.MsgTx as the core's
// transaction model. Serialization, hashing, and outpoint bookkeeping
// are consensus-fixed and bit-exact by construction because
// they are delegated straight to btcd's wire package rather than
// reimplemented; the value this package adds is a small immutable-view
// and builder API tailored to how pledges and contracts are assembled.
package txmodel

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrDuplicateOutPoint is returned by Builder.AddInput when the outpoint
// being added already appears among the builder's inputs.
var ErrDuplicateOutPoint = errors.New("txmodel: duplicate outpoint")

// ConnectedOutput pairs a previous output with the input that spends it,
// so a builder always knows the prevout script and value needed to
// compute a signature hash, mirroring txauthor's InputSource/Credit
// pairing.
type ConnectedOutput struct {
	OutPoint wire.OutPoint
	Output   wire.TxOut
}

// Builder incrementally constructs a wire.MsgTx along with the connected
// previous outputs each input redeems, so that signature hashes can be
// computed without a second lookup pass.
type Builder struct {
	tx       *wire.MsgTx
	prevOuts []ConnectedOutput
}

// NewBuilder starts a new builder for a version-1, zero locktime
// transaction, the only shape the core ever produces itself.
func NewBuilder() *Builder {
	return &Builder{
		tx: &wire.MsgTx{
			Version:  wire.TxVersion,
			TxIn:     nil,
			TxOut:    nil,
			LockTime: 0,
		},
	}
}

// AddInput appends a new input spending conn, with an empty signature
// script (to be filled in later by the signature engine) and the default
// sequence number. It fails if the outpoint duplicates one already
// present.
func (b *Builder) AddInput(conn ConnectedOutput) error {
	for _, existing := range b.prevOuts {
		if existing.OutPoint == conn.OutPoint {
			return ErrDuplicateOutPoint
		}
	}
	b.tx.TxIn = append(b.tx.TxIn, wire.NewTxIn(&conn.OutPoint, nil, nil))
	b.prevOuts = append(b.prevOuts, conn)
	return nil
}

// AddOutput appends a new output.
func (b *Builder) AddOutput(out *wire.TxOut) {
	b.tx.TxOut = append(b.tx.TxOut, out)
}

// PrevOutFetcher builds the txscript.PrevOutputFetcher the sighash engine
// needs from every previous output connected to the builder so far.
func (b *Builder) PrevOutFetcher() *txscript.MultiPrevOutFetcher {
	m := txscript.NewMultiPrevOutFetcher(nil)
	for _, conn := range b.prevOuts {
		out := conn.Output
		m.AddPrevOut(conn.OutPoint, &out)
	}
	return m
}

// Tx returns the transaction under construction. Callers must not retain
// the returned pointer across further Builder mutations without copying.
func (b *Builder) Tx() *wire.MsgTx { return b.tx }

// TxHash returns the double-SHA256 transaction id of the transaction as
// it stands: the 32-byte double hash of its canonical serialization.
func (b *Builder) TxHash() chainhash.Hash { return b.tx.TxHash() }

// Serialize returns the canonical, consensus-fixed binary encoding of the
// transaction under construction.
func (b *Builder) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("txmodel: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// RoundTrip re-parses a transaction's canonical serialization into a
// fresh wire.MsgTx. Tests use this to confirm no builder-side state
// leaks into a signed transaction: Deserialize(Serialize(tx)) must be
// byte-identical to tx re-serialized.
func RoundTrip(tx *wire.MsgTx) (*wire.MsgTx, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("txmodel: serialize: %w", err)
	}
	var out wire.MsgTx
	if err := out.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("txmodel: deserialize: %w", err)
	}
	return &out, nil
}

// HasDuplicateOutPoint reports whether tx's inputs reference the same
// outpoint more than once.
func HasDuplicateOutPoint(tx *wire.MsgTx) bool {
	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if _, ok := seen[in.PreviousOutPoint]; ok {
			return true
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}
	return false
}

// SumOutputs sums the value of a transaction's outputs.
func SumOutputs(outs []*wire.TxOut) (total int64) {
	for _, out := range outs {
		total += out.Value
	}
	return total
}
