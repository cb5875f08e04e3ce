// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainoracle defines the narrow chain-lookup port the pledge
// verifier and wallet core consult for spendable-output data, and a
// reference in-memory implementation for tests. A production backend
// (an RPC chain server, an SPV client) lives entirely behind this
// interface, mirroring the way chain.Interface keeps the wallet core
// isolated from whichever concrete backend a caller wires in.
package chainoracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// Oracle resolves outpoints to the outputs they reference. A nil entry
// at a given index means the outpoint is unknown to the backend: spent,
// never existed, or not yet observed. This is the same shape as
// pledge.UTXOOracle; the two are defined independently because pledge
// verification and wallet bookkeeping are separate concerns that happen
// to need the identical lookup, not because one depends on the other.
type Oracle interface {
	LookupOutputs(ctx context.Context, outpoints []wire.OutPoint) ([]*wire.TxOut, error)
}

// InMemory is a fixed, caller-populated Oracle backed by a plain map,
// standing in for a real chain backend in tests the way
// rpctest/harness.go's canned responses stand in for a live btcd
// instance.
type InMemory struct {
	mu      sync.RWMutex
	outputs map[wire.OutPoint]*wire.TxOut
}

// NewInMemory constructs an empty in-memory oracle.
func NewInMemory() *InMemory {
	return &InMemory{outputs: make(map[wire.OutPoint]*wire.TxOut)}
}

// Add registers outpoint as spendable with the given output, as if it
// had just been observed unconfirmed or confirmed on chain.
func (o *InMemory) Add(outpoint wire.OutPoint, output *wire.TxOut) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outputs[outpoint] = output
}

// Spend removes outpoint, as if a transaction spending it had been
// observed.
func (o *InMemory) Spend(outpoint wire.OutPoint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.outputs, outpoint)
}

// LookupOutputs implements Oracle.
func (o *InMemory) LookupOutputs(_ context.Context, outpoints []wire.OutPoint) ([]*wire.TxOut, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	results := make([]*wire.TxOut, len(outpoints))
	for i, op := range outpoints {
		results[i] = o.outputs[op]
	}
	return results, nil
}

// errUnavailable is returned by Unavailable, standing in for a backend
// that cannot currently be reached (mirrors chain.Interface.IsCurrent
// gating callers off a backend that isn't synced).
type errUnavailable struct{ reason string }

func (e *errUnavailable) Error() string {
	return fmt.Sprintf("chainoracle: backend unavailable: %s", e.reason)
}

// Unavailable is an Oracle that always fails, useful for wiring a
// not-yet-connected backend without a nil interface value.
type Unavailable struct{ Reason string }

// LookupOutputs implements Oracle.
func (u Unavailable) LookupOutputs(context.Context, []wire.OutPoint) ([]*wire.TxOut, error) {
	return nil, &errUnavailable{reason: u.Reason}
}
