// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletcore implements the pledging wallet: bookkeeping of
// pledged stubs so they are not double-spent accidentally, revocation
// by deliberate double-spend, and detection of claim.
//
// The wallet holds a single mutex guarding pledges, projects, revoked,
// and revoke-in-progress. Go's sync.Mutex is not reentrant, so every
// exported method takes the lock itself and calls only unexported,
// already-locked helpers -- no method ever needs to re-acquire a lock
// it already holds.
package walletcore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/pledgeco/assurance/feerules"
	"github.com/pledgeco/assurance/feeutil"
	"github.com/pledgeco/assurance/messages"
	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/sigengine"
	"github.com/pledgeco/assurance/txmodel"
)

// Wallet tracks this backer's pledges against every project it has
// pledged to.
type Wallet struct {
	chainParams   *chaincfg.Params
	relayFeePerKb btcutil.Amount

	store       Store
	broadcaster Broadcaster
	clock       Clock
	keys        KeyProvider

	onPledge listenerSet
	onRevoke listenerSet
	onClaim  listenerSet

	mu               sync.Mutex
	pending          map[wire.OutPoint]*PledgeEntry
	pledges          map[wire.OutPoint]*PledgeEntry
	projects         map[chainhash.Hash]*PledgeEntry
	revoked          map[chainhash.Hash]*PledgeEntry
	revokeInProgress map[wire.OutPoint]struct{}
}

// New constructs an empty wallet with no registered notification
// handlers. Use AddOnPledgeHandler, AddOnRevokeHandler, and
// AddOnClaimHandler to register any.
func New(chainParams *chaincfg.Params, relayFeePerKb btcutil.Amount, store Store,
	broadcaster Broadcaster, clock Clock, keys KeyProvider) *Wallet {

	return &Wallet{
		chainParams:      chainParams,
		relayFeePerKb:    relayFeePerKb,
		store:            store,
		broadcaster:      broadcaster,
		clock:            clock,
		keys:             keys,
		pending:          make(map[wire.OutPoint]*PledgeEntry),
		pledges:          make(map[wire.OutPoint]*PledgeEntry),
		projects:         make(map[chainhash.Hash]*PledgeEntry),
		revoked:          make(map[chainhash.Hash]*PledgeEntry),
		revokeInProgress: make(map[wire.OutPoint]struct{}),
	}
}

// AddOnPledgeHandler registers handler to run, on executor, whenever this
// wallet commits a new pledge. It returns a function that unregisters
// handler; calling it more than once is a no-op. Grounded on
// PledgingWallet.addOnPledgeHandler(OnPledgeHandler, Executor), which
// keeps a CopyOnWriteArrayList<ListenerRegistration<Handler>> per event
// instead of a single callback.
func (w *Wallet) AddOnPledgeHandler(handler func(*PledgeEntry), executor Executor) (unregister func()) {
	return w.onPledge.add(handler, executor)
}

// AddOnRevokeHandler registers handler to run, on executor, whenever this
// wallet revokes a pledge.
func (w *Wallet) AddOnRevokeHandler(handler func(*PledgeEntry), executor Executor) (unregister func()) {
	return w.onRevoke.add(handler, executor)
}

// AddOnClaimHandler registers handler to run, on executor, whenever a
// pledged stub is observed spent by the project owner.
func (w *Wallet) AddOnClaimHandler(handler func(*PledgeEntry), executor Executor) (unregister func()) {
	return w.onClaim.add(handler, executor)
}

// pledgedOutpointsLocked returns every outpoint currently tracked as
// pending or committed, for coin-selection exclusion. Caller must hold
// mu.
func (w *Wallet) pledgedOutpointsLocked() map[wire.OutPoint]struct{} {
	out := make(map[wire.OutPoint]struct{}, len(w.pending)+len(w.pledges))
	for op := range w.pending {
		out[op] = struct{}{}
	}
	for op := range w.pledges {
		out[op] = struct{}{}
	}
	return out
}

// IsPledged reports whether outpoint is excluded from coin selection
// because it backs a pending or committed pledge.
func (w *Wallet) IsPledged(outpoint wire.OutPoint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, pending := w.pending[outpoint]
	_, committed := w.pledges[outpoint]
	return pending || committed
}

// CreatePledge locates a spendable output of exactly value not already
// pledged; if none exists, it builds a dependency transaction that
// creates one. It signs a pledge transaction spending that stub into
// proj's required outputs under the append-permitted policy, and
// returns it without committing.
func (w *Wallet) CreatePledge(ctx context.Context, proj *project.Project, value btcutil.Amount) (*PendingPledge, error) {
	w.mu.Lock()
	pledgedSet := w.pledgedOutpointsLocked()
	w.mu.Unlock()

	candidates, err := w.store.SpendableOutputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("walletcore: list spendable outputs: %w", err)
	}
	candidates = excludePledged(candidates, pledgedSet)

	stub, ok := selectExact(candidates, value)
	var depTx *wire.MsgTx
	var feesPaid btcutil.Amount
	if !ok {
		stub, depTx, feesPaid, err = w.buildDependencyTx(candidates, value)
		if err != nil {
			return nil, err
		}
	}

	tx, err := w.buildPledgeTx(proj, stub)
	if err != nil {
		return nil, err
	}

	entry := &PledgeEntry{
		Project:      proj,
		Tx:           tx,
		DependencyTx: depTx,
		Stub:         stub.OutPoint,
		StubPubKey:   stub.PubKey,
		StubPkScript: stub.PkScript,
		Value:        int64(value),
		State:        StatePending,
		CreatedAt:    w.clock.Now(),
	}

	w.mu.Lock()
	w.pending[stub.OutPoint] = entry
	w.mu.Unlock()

	return &PendingPledge{Entry: entry, FeesPaid: int64(feesPaid), NeedsDepBcast: depTx != nil}, nil
}

// buildDependencyTx spends candidates to create a fresh output of
// exactly value, plus change, when no existing stub matches exactly.
// It returns the fee actually paid alongside the new stub and
// transaction so CreatePledge can report it on PendingPledge.
func (w *Wallet) buildDependencyTx(candidates []Stub, value btcutil.Amount) (Stub, *wire.MsgTx, btcutil.Amount, error) {
	valueAddr, valuePubKey, err := w.keys.FreshReceiveAddress()
	if err != nil {
		return Stub{}, nil, 0, fmt.Errorf("walletcore: fresh receive address: %w", err)
	}
	valueScript, err := txscript.PayToAddrScript(valueAddr)
	if err != nil {
		return Stub{}, nil, 0, fmt.Errorf("walletcore: build value script: %w", err)
	}

	changeAddr, _, err := w.keys.FreshReceiveAddress()
	if err != nil {
		return Stub{}, nil, 0, fmt.Errorf("walletcore: fresh change address: %w", err)
	}
	changeScript, err := txscript.PayToAddrScript(changeAddr)
	if err != nil {
		return Stub{}, nil, 0, fmt.Errorf("walletcore: build change script: %w", err)
	}

	selected, total, fee, err := selectForValue(
		candidates, value, w.relayFeePerKb, len(valueScript), len(changeScript),
	)
	if err != nil {
		return Stub{}, nil, 0, err
	}

	builder := txmodel.NewBuilder()
	for _, s := range selected {
		if err := builder.AddInput(txmodel.ConnectedOutput{
			OutPoint: s.OutPoint,
			Output:   wire.TxOut{Value: int64(s.Amount), PkScript: s.PkScript},
		}); err != nil {
			return Stub{}, nil, 0, fmt.Errorf("walletcore: add dependency input: %w", err)
		}
	}
	builder.AddOutput(&wire.TxOut{Value: int64(value), PkScript: valueScript})

	change := total - value - fee
	changeOut := &wire.TxOut{Value: int64(change), PkScript: changeScript}
	if !feerules.IsDustOutput(changeOut, w.relayFeePerKb) {
		builder.AddOutput(changeOut)
	} else {
		fee = total - value
	}

	tx := builder.Tx()
	hashCache := txscript.NewTxSigHashes(tx, builder.PrevOutFetcher())
	for i, s := range selected {
		privKey, err := w.keys.FindKeyByPubKey(s.PubKey)
		if err != nil {
			return Stub{}, nil, 0, fmt.Errorf("walletcore: find key for dependency input %d: %w", i, err)
		}
		prevOut := wire.TxOut{Value: int64(s.Amount), PkScript: s.PkScript}
		witness, err := sigengine.SignWitnessKeyHash(
			tx, i, prevOut, hashCache, sigengine.PolicyAll, w.chainParams, privKey,
		)
		if err != nil {
			return Stub{}, nil, 0, fmt.Errorf("walletcore: sign dependency input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness
	}

	stub := Stub{
		OutPoint: wire.OutPoint{Hash: tx.TxHash(), Index: 0},
		Amount:   value,
		PkScript: valueScript,
		PubKey:   valuePubKey,
	}
	return stub, tx, fee, nil
}

// buildPledgeTx signs a pledge transaction spending stub into proj's
// required outputs under the append-permitted policy.
func (w *Wallet) buildPledgeTx(proj *project.Project, stub Stub) (*wire.MsgTx, error) {
	privKey, err := w.keys.FindKeyByPubKey(stub.PubKey)
	if err != nil {
		return nil, fmt.Errorf("walletcore: find key for stub: %w", err)
	}

	builder := txmodel.NewBuilder()
	if err := builder.AddInput(txmodel.ConnectedOutput{
		OutPoint: stub.OutPoint,
		Output:   wire.TxOut{Value: int64(stub.Amount), PkScript: stub.PkScript},
	}); err != nil {
		return nil, fmt.Errorf("walletcore: add pledge input: %w", err)
	}
	for _, out := range proj.Outputs() {
		builder.AddOutput(&wire.TxOut{Value: out.Amount, PkScript: out.Script})
	}

	tx := builder.Tx()
	prevOut := wire.TxOut{Value: int64(stub.Amount), PkScript: stub.PkScript}
	hashCache := txscript.NewTxSigHashes(tx, builder.PrevOutFetcher())
	witness, err := sigengine.SignWitnessKeyHash(
		tx, 0, prevOut, hashCache, sigengine.PolicyPledge, w.chainParams, privKey,
	)
	if err != nil {
		return nil, fmt.Errorf("walletcore: sign pledge input: %w", err)
	}
	tx.TxIn[0].Witness = witness
	return tx, nil
}

// Commit marks a pending pledge committed, optionally broadcasting its
// dependency transaction, and fires OnPledge. A second commit of the
// same pledge fails with ErrPreconditionViolated.
func (w *Wallet) Commit(ctx context.Context, pending *PendingPledge, broadcastDep bool) error {
	entry := pending.Entry

	w.mu.Lock()
	if _, ok := w.pending[entry.Stub]; !ok {
		w.mu.Unlock()
		return walletError(ErrPreconditionViolated, "commit: pledge is not pending", nil)
	}
	w.mu.Unlock()

	if broadcastDep && entry.DependencyTx != nil {
		if err := w.broadcaster.Broadcast(ctx, entry.DependencyTx); err != nil {
			return fmt.Errorf("walletcore: broadcast dependency transaction: %w", err)
		}
	}

	entry.State = StateCommitted
	if err := w.store.SavePledge(ctx, entry); err != nil {
		return fmt.Errorf("walletcore: persist committed pledge: %w", err)
	}

	w.mu.Lock()
	delete(w.pending, entry.Stub)
	w.pledges[entry.Stub] = entry
	w.projects[entry.Project.ID()] = entry
	w.mu.Unlock()

	log.Infof("Committed pledge of %v to project %v (stub %v)",
		btcutil.Amount(entry.Value), entry.Project.IDString(), entry.Stub)

	w.onPledge.dispatch(entry)
	return nil
}

// RevokePledge spends the pledge's stub to a self-owned address, minus
// a minimum fee, and broadcasts it. On success the pledge moves to
// revoked and OnRevoke fires; on broadcast failure the wallet's state
// is left untouched.
func (w *Wallet) RevokePledge(ctx context.Context, stub wire.OutPoint) error {
	w.mu.Lock()
	entry, ok := w.pledges[stub]
	if !ok {
		w.mu.Unlock()
		return walletError(ErrPreconditionViolated, "revoke: no committed pledge for stub", nil)
	}
	w.revokeInProgress[stub] = struct{}{}
	w.mu.Unlock()

	revokeTx, err := w.buildRevocationTx(entry)
	if err != nil {
		w.mu.Lock()
		delete(w.revokeInProgress, stub)
		w.mu.Unlock()
		return err
	}

	if err := w.broadcaster.Broadcast(ctx, revokeTx); err != nil {
		w.mu.Lock()
		delete(w.revokeInProgress, stub)
		w.mu.Unlock()
		return fmt.Errorf("walletcore: broadcast revocation: %w", err)
	}

	entry.State = StateRevoked
	if err := w.store.SaveRevoked(ctx, entry); err != nil {
		return fmt.Errorf("walletcore: persist revoked pledge: %w", err)
	}
	if err := w.store.DeletePledge(ctx, stub); err != nil {
		return fmt.Errorf("walletcore: delete revoked pledge: %w", err)
	}

	w.mu.Lock()
	delete(w.pledges, stub)
	delete(w.projects, entry.Project.ID())
	delete(w.revokeInProgress, stub)
	w.revoked[revokeTx.TxHash()] = entry
	w.mu.Unlock()

	log.Infof("Revoked pledge for stub %v via %v", stub, revokeTx.TxHash())

	w.onRevoke.dispatch(entry)
	return nil
}

func (w *Wallet) buildRevocationTx(entry *PledgeEntry) (*wire.MsgTx, error) {
	privKey, err := w.keys.FindKeyByPubKey(entry.StubPubKey)
	if err != nil {
		return nil, fmt.Errorf("walletcore: find key for revocation: %w", err)
	}
	changeAddr, _, err := w.keys.FreshReceiveAddress()
	if err != nil {
		return nil, fmt.Errorf("walletcore: fresh revocation address: %w", err)
	}
	changeScript, err := txscript.PayToAddrScript(changeAddr)
	if err != nil {
		return nil, fmt.Errorf("walletcore: build revocation script: %w", err)
	}

	prevOut := wire.TxOut{Value: entry.Value, PkScript: entry.StubPkScript}

	builder := txmodel.NewBuilder()
	if err := builder.AddInput(txmodel.ConnectedOutput{OutPoint: entry.Stub, Output: prevOut}); err != nil {
		return nil, fmt.Errorf("walletcore: add revocation input: %w", err)
	}

	size := feeutil.EstimateVirtualSize(0, 1, nil, len(changeScript))
	fee := feerules.FeeForSerializeSize(w.relayFeePerKb, size)
	builder.AddOutput(&wire.TxOut{Value: entry.Value - int64(fee), PkScript: changeScript})

	tx := builder.Tx()
	hashCache := txscript.NewTxSigHashes(tx, builder.PrevOutFetcher())
	witness, err := sigengine.SignWitnessKeyHash(
		tx, 0, prevOut, hashCache, sigengine.PolicyAll, w.chainParams, privKey,
	)
	if err != nil {
		return nil, fmt.Errorf("walletcore: sign revocation: %w", err)
	}
	tx.TxIn[0].Witness = witness
	return tx, nil
}

// ObserveSpend reports a transaction the wallet has seen spend one of
// its stubs. If the spend was not self-initiated and its outputs match
// the project's outputs bytewise in order, OnClaim fires; otherwise
// the spend is logged as unrecognized.
func (w *Wallet) ObserveSpend(spender *wire.MsgTx, spentOutpoint wire.OutPoint) {
	w.mu.Lock()
	entry, tracked := w.pledges[spentOutpoint]
	_, ourRevoke := w.revokeInProgress[spentOutpoint]
	w.mu.Unlock()

	if !tracked || ourRevoke {
		return
	}

	if outputsMatch(spender.TxOut, entry.Project.Outputs()) {
		entry.State = StateClaimed
		log.Infof("Pledge for stub %v claimed by contract %v", spentOutpoint, spender.TxHash())
		w.onClaim.dispatch(entry)
		return
	}
	// Unrecognized spend of our stub: likely a wallet clone or an
	// external revocation.
	log.Warnf("Stub %v spent by %v without matching project outputs", spentOutpoint, spender.TxHash())
}

func outputsMatch(txOuts []*wire.TxOut, wantOutputs []messages.TxOutput) bool {
	if len(txOuts) != len(wantOutputs) {
		return false
	}
	for i, out := range txOuts {
		if out.Value != wantOutputs[i].Amount || !bytes.Equal(out.PkScript, wantOutputs[i].Script) {
			return false
		}
	}
	return true
}

// GC drops pending pledges older than maxAge that were never
// committed, returning the stubs that were dropped.
func (w *Wallet) GC(ctx context.Context, maxAge time.Duration) ([]wire.OutPoint, error) {
	now := w.clock.Now()

	w.mu.Lock()
	var stale []wire.OutPoint
	for op, entry := range w.pending {
		if now.Sub(entry.CreatedAt) > maxAge {
			stale = append(stale, op)
		}
	}
	w.mu.Unlock()

	for _, op := range stale {
		if err := w.store.DeletePledge(ctx, op); err != nil {
			return nil, fmt.Errorf("walletcore: gc: %w", err)
		}
		w.mu.Lock()
		if entry, ok := w.pending[op]; ok {
			entry.State = StateDropped
			delete(w.pending, op)
		}
		w.mu.Unlock()
	}
	return stale, nil
}
