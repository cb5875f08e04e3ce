// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ownerauth implements the detached challenge/response signing
// scheme a project owner uses to prove control of the key declared in
// a project descriptor, independent of any on-chain transaction.
package ownerauth

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// magicPrefix is prepended to every message before hashing, the same
// way the chain's own signmessage/verifymessage RPCs bind a signature
// to this scheme and not to a transaction signature over the same
// bytes.
const magicPrefix = "Assurance Signed Message:\n"

// SignatureError reports a failure to produce or check an
// owner-authentication signature.
type SignatureError struct {
	Description string
	Err         error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e *SignatureError) Unwrap() error { return e.Err }

func messageHash(message string) []byte {
	var buf bytes.Buffer
	wire.WriteVarString(&buf, 0, magicPrefix)
	wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// SignAsOwner produces a base64-encoded compact signature of message
// under key, recoverable against key's public key by AuthenticateOwner.
func SignAsOwner(message string, key *btcec.PrivateKey) (string, error) {
	sig := ecdsa.SignCompact(key, messageHash(message), true)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// AuthenticateOwner recovers the public key embedded in signature and
// checks it against authPubKey, the compressed public key declared by
// a project descriptor. It returns a *SignatureError on any failure:
// malformed signature, or a signature that recovers to a different
// key.
func AuthenticateOwner(message, signature string, authPubKey []byte) error {
	want, err := btcec.ParsePubKey(authPubKey)
	if err != nil {
		return &SignatureError{Description: "malformed auth public key", Err: err}
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return &SignatureError{Description: "malformed signature encoding", Err: err}
	}

	recovered, _, err := ecdsa.RecoverCompact(sig, messageHash(message))
	if err != nil {
		return &SignatureError{Description: "signature does not recover to a key", Err: err}
	}

	if !recovered.IsEqual(want) {
		return &SignatureError{Description: fmt.Sprintf(
			"recovered key %x does not match declared auth key %x",
			recovered.SerializeCompressed(), want.SerializeCompressed())}
	}
	return nil
}
