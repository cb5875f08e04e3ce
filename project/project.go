// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package project builds and identifies a project descriptor: the
// immutable declaration of what a crowdfund is raising for, how much,
// and who may speak for it. A project's identity is a
// stable hash of the canonical bytes of its descriptor, the same way a
// transaction's id is a hash of its own canonical bytes.
package project

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/pledgeco/assurance/messages"
)

// Project is a constructed, identified project descriptor. Once built
// it is immutable; every accessor reads from the underlying wire
// message rather than a parallel copy.
type Project struct {
	details messages.ProjectDetails
	id      chainhash.Hash
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a URL-safe slug from a title: lowercase, split on
// whitespace, collapse each word's internal runs of non-alphanumeric
// characters to a single hyphen and trim the word's own leading and
// trailing hyphens, then join the words with hyphens. A word made
// entirely of punctuation collapses to the empty string, which is
// still joined in place — a punctuation-only word between two others
// produces a doubled hyphen in the result rather than disappearing
// silently.
func Slug(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strings.Trim(nonAlnumRun.ReplaceAllString(f, "-"), "-")
	}
	return strings.Trim(strings.Join(parts, "-"), "-")
}

// New builds a project descriptor with a single required output paying
// goalAmount to destAddr. authKey is the public key that will later be
// required to sign owner-authentication challenges (component G);
// lookaheadIndex records the position in the owning wallet's keychain
// that authKey was derived from, so a wallet can recognize its own
// projects without a separate lookup table.
func New(title, memo string, destAddr btcutil.Address, goalAmount btcutil.Amount,
	authKey *btcec.PublicKey, lookaheadIndex int32) (*Project, error) {

	if goalAmount <= 0 {
		return nil, fmt.Errorf("project: goal amount must be positive, got %d", goalAmount)
	}
	script, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, fmt.Errorf("project: build required output script: %w", err)
	}

	details := messages.ProjectDetails{
		Title: title,
		Memo:  memo,
		Outputs: []messages.TxOutput{
			{Amount: int64(goalAmount), Script: script},
		},
		Time:         time.Now().Unix(),
		AuthKey:      authKey.SerializeCompressed(),
		AuthKeyIndex: lookaheadIndex,
	}
	return fromDetails(details)
}

// fromDetails computes the id of an already-populated descriptor and
// wraps it. Both New and Parse route through here so the id is always
// derived, never carried across the wire.
func fromDetails(details messages.ProjectDetails) (*Project, error) {
	encoded, err := details.Marshal()
	if err != nil {
		return nil, fmt.Errorf("project: marshal descriptor: %w", err)
	}
	return &Project{details: details, id: chainhash.DoubleHashH(encoded)}, nil
}

// Parse reconstructs a Project from a previously-marshaled descriptor,
// recomputing its id from the given bytes rather than trusting a
// caller-supplied one.
func Parse(encoded []byte) (*Project, error) {
	var details messages.ProjectDetails
	if err := details.Unmarshal(encoded); err != nil {
		return nil, fmt.Errorf("project: unmarshal descriptor: %w", err)
	}
	return fromDetails(details)
}

// Marshal returns the canonical descriptor bytes this project's id was
// derived from.
func (p *Project) Marshal() ([]byte, error) {
	return p.details.Marshal()
}

// ID returns the project's identity: the double-SHA256 hash of its
// canonical descriptor bytes.
func (p *Project) ID() chainhash.Hash { return p.id }

// IDString returns the project id as the hex string used in pledge
// messages (messages.Pledge.ProjectID).
func (p *Project) IDString() string { return hex.EncodeToString(p.id[:]) }

// Title returns the project's declared title, unmodified.
func (p *Project) Title() string { return p.details.Title }

// Slug returns the URL slug derived from the project's title.
func (p *Project) Slug() string { return Slug(p.details.Title) }

// Memo returns the project's free-text description.
func (p *Project) Memo() string { return p.details.Memo }

// Outputs returns the project's required outputs, in declared order.
// Pledge and contract verification compare against this slice
// byte-for-byte.
func (p *Project) Outputs() []messages.TxOutput { return p.details.Outputs }

// Goal returns the sum of the project's required output amounts.
func (p *Project) Goal() btcutil.Amount {
	var total int64
	for _, out := range p.details.Outputs {
		total += out.Amount
	}
	return btcutil.Amount(total)
}

// AuthKey returns the compressed serialization of the project's
// authentication public key.
func (p *Project) AuthKey() []byte { return p.details.AuthKey }

// LookaheadIndex returns the keychain index the auth key was derived
// from.
func (p *Project) LookaheadIndex() int32 { return p.details.AuthKeyIndex }

// Created returns the project's declared creation time.
func (p *Project) Created() time.Time { return time.Unix(p.details.Time, 0) }
