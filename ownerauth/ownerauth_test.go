// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ownerauth_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/pledgeco/assurance/ownerauth"
)

func TestSignAndAuthenticateRoundTrip(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sig, err := ownerauth.SignAsOwner("prove you own project abc123", key)
	require.NoError(t, err)

	err = ownerauth.AuthenticateOwner("prove you own project abc123", sig, key.PubKey().SerializeCompressed())
	require.NoError(t, err)
}

func TestAuthenticateRejectsDifferentMessage(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sig, err := ownerauth.SignAsOwner("original challenge", key)
	require.NoError(t, err)

	err = ownerauth.AuthenticateOwner("a different challenge", sig, key.PubKey().SerializeCompressed())
	require.Error(t, err)
	var sigErr *ownerauth.SignatureError
	require.ErrorAs(t, err, &sigErr)
}

func TestAuthenticateRejectsWrongKey(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sig, err := ownerauth.SignAsOwner("challenge", key)
	require.NoError(t, err)

	err = ownerauth.AuthenticateOwner("challenge", sig, otherKey.PubKey().SerializeCompressed())
	require.Error(t, err)
}
