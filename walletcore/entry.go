// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/pledgeco/assurance/project"
)

// State is a pledge's position in the wallet's state machine:
//
//	NONE -> PENDING (createPledge)
//	PENDING -> COMMITTED (commit) | DROPPED (garbage collection)
//	COMMITTED -> REVOKED (revokePledge broadcast OK)
//	COMMITTED -> CLAIMED (stub observed spent to project outputs)
//
// REVOKED and CLAIMED are terminal.
type State int

const (
	StatePending State = iota
	StateCommitted
	StateRevoked
	StateClaimed
	StateDropped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRevoked:
		return "revoked"
	case StateClaimed:
		return "claimed"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// PledgeEntry is the wallet's bookkeeping record for one outstanding
// or resolved pledge.
type PledgeEntry struct {
	Project      *project.Project
	Tx           *wire.MsgTx
	DependencyTx *wire.MsgTx
	Stub         wire.OutPoint
	StubPubKey   []byte
	StubPkScript []byte
	Value        int64
	State        State
	CreatedAt    time.Time
}

// PendingPledge is the value returned by createPledge before commit:
// the assembled but not-yet-broadcast pledge, and its dependency
// transaction if one had to be created.
type PendingPledge struct {
	Entry         *PledgeEntry
	FeesPaid      int64
	NeedsDepBcast bool
}
