// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package project_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/pledgeco/assurance/project"
)

func TestSlugDeterminism(t *testing.T) {
	got := project.Slug("A really $cool %20 Title with ;;lots asdf\n of weird // chars")
	require.Equal(t, "a-really-cool-20-title-with-lots-asdf-of-weird--chars", got)
}

func TestSlugEmptyAndPlain(t *testing.T) {
	require.Equal(t, "", project.Slug("   ---   "))
	require.Equal(t, "already-a-slug", project.Slug("Already A Slug"))
}

func newDestAddr(t *testing.T) btcutil.Address {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressPubKeyHash(hash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return addr
}

func TestAccessorsRoundTrip(t *testing.T) {
	destAddr := newDestAddr(t)
	authPrivKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	p, err := project.New("My Project", "a memo", destAddr, 50_000_000, authPrivKey.PubKey(), 7)
	require.NoError(t, err)

	require.Equal(t, "My Project", p.Title())
	require.Equal(t, "my-project", p.Slug())
	require.Equal(t, "a memo", p.Memo())
	require.Equal(t, btcutil.Amount(50_000_000), p.Goal())
	require.Equal(t, authPrivKey.PubKey().SerializeCompressed(), p.AuthKey())
	require.Equal(t, int32(7), p.LookaheadIndex())
	require.Len(t, p.Outputs(), 1)
	require.Equal(t, int64(50_000_000), p.Outputs()[0].Amount)

	encoded, err := p.Marshal()
	require.NoError(t, err)

	reparsed, err := project.Parse(encoded)
	require.NoError(t, err)
	require.Equal(t, p.ID(), reparsed.ID())
	require.Equal(t, p.Title(), reparsed.Title())
	require.Equal(t, p.Goal(), reparsed.Goal())
	require.Equal(t, p.Outputs(), reparsed.Outputs())

	reencoded, err := reparsed.Marshal()
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestNewRejectsNonPositiveGoal(t *testing.T) {
	destAddr := newDestAddr(t)
	authPrivKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	_, err = project.New("Title", "", destAddr, 0, authPrivKey.PubKey(), 0)
	require.Error(t, err)
}
