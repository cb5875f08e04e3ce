// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/walletcore"
)

// fakeKeys is a KeyProvider backed by an in-memory set of keys, indexed
// by their compressed public key.
type fakeKeys struct {
	mu       sync.Mutex
	byPubKey map[string]*btcec.PrivateKey
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{byPubKey: make(map[string]*btcec.PrivateKey)}
}

func (k *fakeKeys) fresh(t *testing.T) (*btcec.PrivateKey, []byte) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := priv.PubKey().SerializeCompressed()
	k.mu.Lock()
	k.byPubKey[string(pubKey)] = priv
	k.mu.Unlock()
	return priv, pubKey
}

func (k *fakeKeys) FreshReceiveAddress() (btcutil.Address, []byte, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	pubKey := priv.PubKey().SerializeCompressed()
	k.mu.Lock()
	k.byPubKey[string(pubKey)] = priv
	k.mu.Unlock()
	hash := btcutil.Hash160(pubKey)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
	if err != nil {
		return nil, nil, err
	}
	return addr, pubKey, nil
}

func (k *fakeKeys) FreshAuthKey() (*btcec.PrivateKey, int32, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, 0, err
	}
	return priv, 0, nil
}

func (k *fakeKeys) FindKeyByPubKey(pubKey []byte) (*btcec.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	priv, ok := k.byPubKey[string(pubKey)]
	if !ok {
		return nil, errors.New("fakeKeys: unknown public key")
	}
	return priv, nil
}

func (k *fakeKeys) DecryptKey(encrypted []byte, passphrase []byte) (*btcec.PrivateKey, error) {
	return nil, nil
}

// fakeStore is an in-memory Store recording every save/delete call.
type fakeStore struct {
	mu       sync.Mutex
	spend    []walletcore.Stub
	saved    map[wire.OutPoint]*walletcore.PledgeEntry
	revoked  map[wire.OutPoint]*walletcore.PledgeEntry
	deleteCt int
}

func newFakeStore(spend []walletcore.Stub) *fakeStore {
	return &fakeStore{
		spend:   spend,
		saved:   make(map[wire.OutPoint]*walletcore.PledgeEntry),
		revoked: make(map[wire.OutPoint]*walletcore.PledgeEntry),
	}
}

func (s *fakeStore) SpendableOutputs(ctx context.Context) ([]walletcore.Stub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]walletcore.Stub, len(s.spend))
	copy(out, s.spend)
	return out, nil
}

func (s *fakeStore) SavePledge(ctx context.Context, entry *walletcore.PledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[entry.Stub] = entry
	return nil
}

func (s *fakeStore) DeletePledge(ctx context.Context, stub wire.OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, stub)
	s.deleteCt++
	return nil
}

func (s *fakeStore) SaveRevoked(ctx context.Context, entry *walletcore.PledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[entry.Stub] = entry
	return nil
}

// fakeBroadcaster records every transaction it is asked to relay.
type fakeBroadcaster struct {
	mu  sync.Mutex
	txs []*wire.MsgTx
	err error
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	b.txs = append(b.txs, tx)
	b.mu.Unlock()
	return nil
}

// fakeClock is a controllable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const stubValue = 5_000_000

func newTestProject(t *testing.T, goal btcutil.Amount) *project.Project {
	t.Helper()
	destPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	destHash := btcutil.Hash160(destPriv.PubKey().SerializeCompressed())
	destAddr, err := btcutil.NewAddressWitnessPubKeyHash(destHash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	authKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	proj, err := project.New("Server Costs", "keep the lights on", destAddr, goal, authKey.PubKey(), 0)
	require.NoError(t, err)
	return proj
}

// newTestWallet wires a wallet with one spendable stub of stubValue,
// owned by the returned key provider.
func newTestWallet(t *testing.T) (*walletcore.Wallet, *fakeKeys, *fakeStore, *fakeBroadcaster, *fakeClock) {
	t.Helper()
	keys := newFakeKeys()
	_, pubKey := keys.fresh(t)
	hash := btcutil.Hash160(pubKey)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	stub := walletcore.Stub{
		OutPoint: wire.OutPoint{Index: 0},
		Amount:   stubValue,
		PkScript: script,
		PubKey:   pubKey,
	}
	store := newFakeStore([]walletcore.Stub{stub})
	broadcaster := &fakeBroadcaster{}
	clock := newFakeClock()

	w := walletcore.New(&chaincfg.MainNetParams, 1000, store, broadcaster, clock, keys)
	return w, keys, store, broadcaster, clock
}

func TestCreatePledgeExcludesAlreadyPledgedStub(t *testing.T) {
	w, _, _, _, _ := newTestWallet(t)
	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)
	require.True(t, w.IsPledged(pending.Entry.Stub))

	// Same exact-value stub is now excluded; a second pledge attempt
	// for a project with the same goal must fail for lack of funds
	// since the wallet only seeded one spendable output.
	proj2 := newTestProject(t, stubValue)
	_, err = w.CreatePledge(ctx, proj2, stubValue)
	require.Error(t, err)
}

func TestCreatePledgeThenCommitTracksState(t *testing.T) {
	w, _, store, broadcaster, _ := newTestWallet(t)
	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)
	require.Equal(t, walletcore.StatePending, pending.Entry.State)
	require.False(t, pending.NeedsDepBcast)

	require.NoError(t, w.Commit(ctx, pending, true))
	require.Equal(t, walletcore.StateCommitted, pending.Entry.State)
	require.Contains(t, store.saved, pending.Entry.Stub)
	require.Empty(t, broadcaster.txs) // no dependency tx was built

	// A second commit of the same pledge must fail.
	requireCode(t, w.Commit(ctx, pending, true), walletcore.ErrPreconditionViolated)
}

func TestRevokePledgeMovesEntryToRevoked(t *testing.T) {
	w, _, store, broadcaster, _ := newTestWallet(t)
	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx, pending, true))

	stub := pending.Entry.Stub
	require.NoError(t, w.RevokePledge(ctx, stub))
	require.Equal(t, walletcore.StateRevoked, pending.Entry.State)
	require.Len(t, broadcaster.txs, 1)
	require.NotContains(t, store.saved, stub)
	require.Contains(t, store.revoked, stub)

	// Revoking an already-revoked (no longer committed) pledge fails.
	requireCode(t, w.RevokePledge(ctx, stub), walletcore.ErrPreconditionViolated)
}

func requireCode(t *testing.T, err error, code walletcore.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var werr *walletcore.Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, code, werr.ErrorCode)
}

func TestGCDropsStalePendingPledges(t *testing.T) {
	w, _, store, _, clock := newTestWallet(t)
	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)

	store.mu.Lock()
	store.saved[pending.Entry.Stub] = pending.Entry
	store.mu.Unlock()

	clock.advance(2 * time.Hour)
	dropped, err := w.GC(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, []wire.OutPoint{pending.Entry.Stub}, dropped)
	require.Equal(t, walletcore.StateDropped, pending.Entry.State)
	require.False(t, w.IsPledged(pending.Entry.Stub))
}

func TestObserveSpendFiresOnClaimForMatchingOutputs(t *testing.T) {
	keys := newFakeKeys()
	_, pubKey := keys.fresh(t)
	hash := btcutil.Hash160(pubKey)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	stub := walletcore.Stub{
		OutPoint: wire.OutPoint{Index: 0},
		Amount:   stubValue,
		PkScript: script,
		PubKey:   pubKey,
	}
	store := newFakeStore([]walletcore.Stub{stub})
	broadcaster := &fakeBroadcaster{}
	clock := newFakeClock()

	var claimed *walletcore.PledgeEntry
	w := walletcore.New(&chaincfg.MainNetParams, 1000, store, broadcaster, clock, keys)
	w.AddOnClaimHandler(func(e *walletcore.PledgeEntry) { claimed = e }, nil)

	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx, pending, true))

	w.ObserveSpend(pending.Entry.Tx, pending.Entry.Stub)
	require.Equal(t, walletcore.StateClaimed, pending.Entry.State)
	require.Same(t, pending.Entry, claimed)
}

func TestAddOnPledgeHandlerFansOutToEachOnItsOwnExecutor(t *testing.T) {
	keys := newFakeKeys()
	stubs := make([]walletcore.Stub, 2)
	for i := range stubs {
		_, pubKey := keys.fresh(t)
		hash := btcutil.Hash160(pubKey)
		addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
		require.NoError(t, err)
		script, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		stubs[i] = walletcore.Stub{
			OutPoint: wire.OutPoint{Index: uint32(i)},
			Amount:   stubValue,
			PkScript: script,
			PubKey:   pubKey,
		}
	}
	store := newFakeStore(stubs)
	w := walletcore.New(&chaincfg.MainNetParams, 1000, store, &fakeBroadcaster{}, newFakeClock(), keys)

	var mu sync.Mutex
	var firstCalls, secondCalls int
	var firstExecutedOnCustom bool

	unregisterFirst := w.AddOnPledgeHandler(func(*walletcore.PledgeEntry) {
		mu.Lock()
		firstCalls++
		mu.Unlock()
	}, func(fn func()) {
		fn()
		mu.Lock()
		firstExecutedOnCustom = true
		mu.Unlock()
	})
	w.AddOnPledgeHandler(func(*walletcore.PledgeEntry) {
		mu.Lock()
		secondCalls++
		mu.Unlock()
	}, nil)

	ctx := context.Background()
	proj1 := newTestProject(t, stubValue)
	pending1, err := w.CreatePledge(ctx, proj1, stubValue)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx, pending1, true))

	mu.Lock()
	require.Equal(t, 1, firstCalls)
	require.Equal(t, 1, secondCalls)
	require.True(t, firstExecutedOnCustom)
	mu.Unlock()

	// Unregistering the first handler must not affect the second: a
	// second pledge, against the second stub, fires only secondCalls.
	unregisterFirst()

	proj2 := newTestProject(t, stubValue)
	pending2, err := w.CreatePledge(ctx, proj2, stubValue)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx, pending2, true))

	mu.Lock()
	require.Equal(t, 1, firstCalls)
	require.Equal(t, 2, secondCalls)
	mu.Unlock()
}

func TestObserveSpendIgnoresUnrecognizedSpend(t *testing.T) {
	w, _, _, _, _ := newTestWallet(t)
	proj := newTestProject(t, stubValue)
	ctx := context.Background()

	pending, err := w.CreatePledge(ctx, proj, stubValue)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx, pending, true))

	// A spend that does not pay the project's required outputs is not
	// mistaken for a claim.
	foreign := &wire.MsgTx{TxOut: []*wire.TxOut{{Value: 1, PkScript: []byte{0x00}}}}
	w.ObserveSpend(foreign, pending.Entry.Stub)
	require.Equal(t, walletcore.StateCommitted, pending.Entry.State)
}
