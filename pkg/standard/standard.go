// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package standard classifies output scripts the way the pledge verifier
// needs to: is this a template a project could plausibly require or a
// backer's change output could plausibly use, or is it something the
// network's relay policy would refuse to forward.
package standard

import "github.com/btcsuite/btcd/txscript"

// IsStandard reports whether pkScript is one of the templates the
// verifier accepts for both project outputs and pledge outputs:
// pay-to-address (hash of a pubkey, legacy or witness), pay-to-pubkey, or
// a bare multisig template. Anything else — including OP_RETURN data
// carriers and custom scripts — is rejected as NonStandard.
func IsStandard(pkScript []byte) bool {
	switch txscript.GetScriptClass(pkScript) {
	case txscript.PubKeyHashTy,
		txscript.WitnessV0PubKeyHashTy,
		txscript.PubKeyTy,
		txscript.MultiSigTy:

		return true
	default:
		return false
	}
}
