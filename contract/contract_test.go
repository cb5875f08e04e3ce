// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/pledgeco/assurance/contract"
	"github.com/pledgeco/assurance/messages"
	"github.com/pledgeco/assurance/pledge"
	"github.com/pledgeco/assurance/project"
	"github.com/pledgeco/assurance/sigengine"
)

const goalAmount = 10_000_000

type fakeOracle map[wire.OutPoint]*wire.TxOut

func (o fakeOracle) LookupOutputs(_ context.Context, outpoints []wire.OutPoint) ([]*wire.TxOut, error) {
	results := make([]*wire.TxOut, len(outpoints))
	for i, op := range outpoints {
		results[i] = o[op]
	}
	return results, nil
}

func newProject(t *testing.T, goal btcutil.Amount) (*project.Project, btcutil.Address) {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	destAddr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	authKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	p, err := project.New("Server Costs", "keep the lights on", destAddr, goal, authKey.PubKey(), 0)
	require.NoError(t, err)
	return p, destAddr
}

// pledgeFor builds and verifies a pledge spending a fresh stub of the
// given value into proj's required output.
func pledgeFor(t *testing.T, proj *project.Project, value int64, oracle fakeOracle) *pledge.VerifiedPledge {
	t.Helper()
	stubPrivKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	stubHash := btcutil.Hash160(stubPrivKey.PubKey().SerializeCompressed())
	stubAddr, err := btcutil.NewAddressWitnessPubKeyHash(stubHash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	stubScript, err := txscript.PayToAddrScript(stubAddr)
	require.NoError(t, err)

	stubOutPoint := wire.OutPoint{Hash: chainhashFromInt(t, len(oracle)), Index: 0}
	stubOut := wire.TxOut{Value: value, PkScript: stubScript}
	oracle[stubOutPoint] = &stubOut

	wantOutputs := proj.Outputs()
	tx := &wire.MsgTx{
		Version: wire.TxVersion,
		TxIn:    []*wire.TxIn{wire.NewTxIn(&stubOutPoint, nil, nil)},
		TxOut: []*wire.TxOut{
			{Value: wantOutputs[0].Amount, PkScript: wantOutputs[0].Script},
		},
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(stubOut.PkScript, stubOut.Value)
	hashCache := txscript.NewTxSigHashes(tx, fetcher)
	witness, err := sigengine.SignWitnessKeyHash(
		tx, 0, stubOut, hashCache, sigengine.PolicyPledge, &chaincfg.MainNetParams, stubPrivKey,
	)
	require.NoError(t, err)
	tx.TxIn[0].Witness = witness

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	msg := &messages.Pledge{
		Transactions:    [][]byte{buf.Bytes()},
		TotalInputValue: value,
		ProjectID:       proj.IDString(),
	}

	verified, err := pledge.Verify(context.Background(), msg, proj, oracle)
	require.NoError(t, err)
	return verified
}

func chainhashFromInt(t *testing.T, n int) (h [32]byte) {
	t.Helper()
	h[0] = byte(n + 1)
	return h
}

func TestCompleteConcatenatesInputsAndPreservesOutputs(t *testing.T) {
	proj, _ := newProject(t, goalAmount)
	oracle := fakeOracle{}
	p1 := pledgeFor(t, proj, goalAmount/2, oracle)
	p2 := pledgeFor(t, proj, goalAmount/2, oracle)

	tx, err := contract.Complete(proj, []*pledge.VerifiedPledge{p1, p2})
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 1)
	require.Equal(t, proj.Outputs()[0].Amount, tx.TxOut[0].Value)
	require.Len(t, tx.TxIn, 2)
	require.Equal(t, p1.Tx.TxIn[0].PreviousOutPoint, tx.TxIn[0].PreviousOutPoint)
	require.Equal(t, p2.Tx.TxIn[0].PreviousOutPoint, tx.TxIn[1].PreviousOutPoint)
}

func TestCompleteStrictRejectsShortfall(t *testing.T) {
	proj, _ := newProject(t, goalAmount)
	oracle := fakeOracle{}
	p1 := pledgeFor(t, proj, goalAmount/2, oracle)

	_, err := contract.CompleteStrict(proj, []*pledge.VerifiedPledge{p1})
	require.Error(t, err)
	var verr *pledge.VerifyError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, pledge.ErrValueMismatch, verr.ErrorCode)
}

func TestCompleteStrictAcceptsExactGoal(t *testing.T) {
	proj, _ := newProject(t, goalAmount)
	oracle := fakeOracle{}
	p1 := pledgeFor(t, proj, goalAmount/2, oracle)
	p2 := pledgeFor(t, proj, goalAmount/2, oracle)

	tx, err := contract.CompleteStrict(proj, []*pledge.VerifiedPledge{p1, p2})
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2)
}

func TestFinalizeAddsFeeInputAndChange(t *testing.T) {
	proj, _ := newProject(t, goalAmount)
	oracle := fakeOracle{}
	p1 := pledgeFor(t, proj, goalAmount, oracle)

	tx, err := contract.CompleteStrict(proj, []*pledge.VerifiedPledge{p1})
	require.NoError(t, err)

	feePrivKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	feeHash := btcutil.Hash160(feePrivKey.PubKey().SerializeCompressed())
	feeAddr, err := btcutil.NewAddressWitnessPubKeyHash(feeHash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	feeScript, err := txscript.PayToAddrScript(feeAddr)
	require.NoError(t, err)

	changePrivKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	changeHash := btcutil.Hash160(changePrivKey.PubKey().SerializeCompressed())
	changeAddr, err := btcutil.NewAddressWitnessPubKeyHash(changeHash, &chaincfg.MainNetParams)
	require.NoError(t, err)

	feeInput := contract.FeeInput{
		OutPoint:    wire.OutPoint{Index: 99},
		Output:      wire.TxOut{Value: 50_000, PkScript: feeScript},
		PrivKey:     feePrivKey,
		ChangeAddr:  changeAddr,
		ChainParams: &chaincfg.MainNetParams,
	}

	finalized, err := contract.Finalize(tx, feeInput, 1000)
	require.NoError(t, err)
	require.Len(t, finalized.TxIn, 2)
	require.NotEmpty(t, finalized.TxIn[1].Witness)
}
