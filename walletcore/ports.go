// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Stub is a candidate input the wallet owns: an unspent output it can
// spend, replacing wtxmgr.Credit now that the wallet no longer owns a
// full transaction store. PubKey identifies the key needed to sign it,
// looked up through KeyProvider.FindKeyByPubKey.
type Stub struct {
	wire.OutPoint
	Amount   btcutil.Amount
	PkScript []byte
	PubKey   []byte
}

// Store is the wallet's persistence port. State mutations must be
// durably flushed before returning success from commit and from the
// success branch of revocation. It also stands in for the chain-sync
// component's job of surfacing spendable outputs, since both are
// external collaborators the core only reaches through a narrow port.
type Store interface {
	// SpendableOutputs returns every output the wallet currently
	// considers spendable, in an implementation-defined but stable
	// order.
	SpendableOutputs(ctx context.Context) ([]Stub, error)

	// SavePledge durably persists a pledge entry, committed or not.
	SavePledge(ctx context.Context, entry *PledgeEntry) error

	// DeletePledge removes a pledge entry, used when a pending pledge
	// is garbage collected or a committed one is revoked.
	DeletePledge(ctx context.Context, stub wire.OutPoint) error

	// SaveRevoked durably persists a revoked pledge entry.
	SaveRevoked(ctx context.Context, entry *PledgeEntry) error
}

// Broadcaster relays a transaction to the network. Completion implies
// P2P acceptance, not confirmation.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *wire.MsgTx) error
}

// Clock reports the current time, injected so tests can control it.
type Clock interface {
	Now() time.Time
}

// KeyProvider is the wallet's key-management port. Key derivation
// itself remains an external collaborator; the core only asks for keys
// by role or looks one up by its public identity.
type KeyProvider interface {
	// FreshReceiveAddress returns a new self-owned address suitable
	// for a dependency transaction's value or change output, along
	// with the public key it was derived from.
	FreshReceiveAddress() (addr btcutil.Address, pubKey []byte, err error)

	// FreshAuthKey returns a new project-authentication keypair and
	// the keychain index it was derived from.
	FreshAuthKey() (*btcec.PrivateKey, int32, error)

	// FindKeyByPubKey looks up the private key for a previously
	// issued public key, used to sign a stub's input.
	FindKeyByPubKey(pubKey []byte) (*btcec.PrivateKey, error)

	// DecryptKey unwraps an encrypted private key with passphrase, for
	// wallets whose key provider keeps keys sealed at rest.
	DecryptKey(encrypted []byte, passphrase []byte) (*btcec.PrivateKey, error)
}
