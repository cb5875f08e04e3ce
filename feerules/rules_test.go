// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feerules_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/pledgeco/assurance/feerules"
)

func TestIsDustAmount(t *testing.T) {
	tests := []struct {
		name          string
		amount        btcutil.Amount
		scriptSize    int
		relayFeePerKb btcutil.Amount
		dust          bool
	}{
		{
			name:          "P2PKH just above threshold",
			amount:        429,
			scriptSize:    25,
			relayFeePerKb: 1e3,
			dust:          false,
		},
		{
			name:          "P2PKH just below threshold",
			amount:        428,
			scriptSize:    25,
			relayFeePerKb: 1e3,
			dust:          true,
		},
		{
			name:          "zero amount is dust",
			amount:        0,
			scriptSize:    25,
			relayFeePerKb: 1e3,
			dust:          true,
		},
		{
			name:          "zero relay fee is never dust",
			amount:        1,
			scriptSize:    25,
			relayFeePerKb: 0,
			dust:          false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.dust,
				feerules.IsDustAmount(test.amount, test.scriptSize, test.relayFeePerKb))
		})
	}
}

func TestIsDustOutput(t *testing.T) {
	relayFeePerKb := feerules.DefaultRelayFeePerKb

	nullData, err := txscript.NullDataScript([]byte("not a payment"))
	require.NoError(t, err)
	require.False(t, feerules.IsDustOutput(&wire.TxOut{Value: 0, PkScript: nullData}, relayFeePerKb))

	p2pkhScript := make([]byte, 25)
	p2pkhScript[0] = txscript.OP_DUP

	require.True(t, feerules.IsDustOutput(&wire.TxOut{Value: 1, PkScript: p2pkhScript}, relayFeePerKb))
	require.False(t, feerules.IsDustOutput(&wire.TxOut{Value: 1_000_000, PkScript: p2pkhScript}, relayFeePerKb))
}

func TestCheckOutput(t *testing.T) {
	relayFeePerKb := feerules.DefaultRelayFeePerKb
	p2pkhScript := make([]byte, 25)

	tests := []struct {
		name    string
		output  *wire.TxOut
		wantErr error
	}{
		{
			name:    "valid output",
			output:  &wire.TxOut{Value: 1_000_000, PkScript: p2pkhScript},
			wantErr: nil,
		},
		{
			name:    "negative amount",
			output:  &wire.TxOut{Value: -1, PkScript: p2pkhScript},
			wantErr: feerules.ErrAmountNegative,
		},
		{
			name:    "amount exceeds max",
			output:  &wire.TxOut{Value: btcutil.MaxSatoshi + 1, PkScript: p2pkhScript},
			wantErr: feerules.ErrAmountExceedsMax,
		},
		{
			name:    "dust",
			output:  &wire.TxOut{Value: 1, PkScript: p2pkhScript},
			wantErr: feerules.ErrOutputIsDust,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := feerules.CheckOutput(test.output, relayFeePerKb)
			if test.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, test.wantErr)
		})
	}
}

func TestFeeForSerializeSize(t *testing.T) {
	tests := []struct {
		name          string
		relayFeePerKb btcutil.Amount
		size          int
		want          btcutil.Amount
	}{
		{
			name:          "one full kb",
			relayFeePerKb: 1e3,
			size:          1000,
			want:          1e3,
		},
		{
			name:          "half a kb rounds down",
			relayFeePerKb: 1e3,
			size:          500,
			want:          500,
		},
		{
			name:          "tiny size floors at relay fee",
			relayFeePerKb: 1,
			size:          1,
			want:          1,
		},
		{
			name:          "zero relay fee stays zero",
			relayFeePerKb: 0,
			size:          1000,
			want:          0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, feerules.FeeForSerializeSize(test.relayFeePerKb, test.size))
		})
	}
}
