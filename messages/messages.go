// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messages defines the three structured messages the core
// exchanges and persists: ProjectDetails, the signed Project wrapper
// around it, and a backer's Pledge. Each field carries
// an explicit integer key via a `cbor:"N,keyasint"` tag rather than
// relying on field name or position, so that a future version can add
// fields — an unset field decodes to its zero value on an older reader,
// and an unknown field is simply ignored — without breaking parsers on
// either side of a protocol upgrade, mirroring the same forward- and
// backward-compatible extension property BIP-70's protobuf schema gets
// from field numbers.
package messages

import "github.com/fxamacker/cbor/v2"

// TxOutput is an output amount/script pair as it appears on the wire,
// independent of any in-memory transaction representation.
type TxOutput struct {
	Amount int64  `cbor:"1,keyasint"`
	Script []byte `cbor:"2,keyasint"`
}

// ProjectDetails is the payment-request portion of a project: what it's
// for, what it pays, and who may speak for it.
type ProjectDetails struct {
	Title        string     `cbor:"1,keyasint"`
	Memo         string     `cbor:"2,keyasint,omitempty"`
	Outputs      []TxOutput `cbor:"3,keyasint"`
	Time         int64      `cbor:"4,keyasint"`
	Expires      int64      `cbor:"5,keyasint,omitempty"`
	AuthKey      []byte     `cbor:"6,keyasint"`
	AuthKeyIndex int32      `cbor:"7,keyasint,omitempty"`
	PaymentURL   string     `cbor:"8,keyasint,omitempty"`
	MerchantData []byte     `cbor:"9,keyasint,omitempty"`
}

// Marshal serializes the project details into CBOR.
func (d *ProjectDetails) Marshal() ([]byte, error) {
	return cbor.Marshal(d)
}

// Unmarshal deserializes project details from CBOR.
func (d *ProjectDetails) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, d)
}

// Project is the outer wrapper around a serialized ProjectDetails. The
// wrapper exists so a future version can attach a certification
// signature over SerializedPaymentDetails without changing the encoding
// of ProjectDetails itself.
type Project struct {
	SerializedPaymentDetails []byte `cbor:"1,keyasint"`
	Signature                []byte `cbor:"2,keyasint,omitempty"`
}

// Marshal serializes the project wrapper into CBOR.
func (p *Project) Marshal() ([]byte, error) {
	return cbor.Marshal(p)
}

// Unmarshal deserializes a project wrapper from CBOR.
func (p *Project) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, p)
}

// ContactInfo is the optional contact information a backer may attach to
// a pledge.
type ContactInfo struct {
	Email string `cbor:"1,keyasint,omitempty"`
	Name  string `cbor:"2,keyasint,omitempty"`
}

// Pledge is a backer's submission: the transaction(s) needed to resolve
// their stub, the value they claim to be pledging, and which project
// this is a pledge toward.
type Pledge struct {
	// Transactions is ordered; the last entry is the pledge transaction
	// proper, earlier entries are dependency transactions needed to
	// resolve the stub.
	Transactions    [][]byte     `cbor:"1,keyasint"`
	TotalInputValue int64        `cbor:"2,keyasint"`
	Timestamp       int64        `cbor:"3,keyasint"`
	ProjectID       string       `cbor:"4,keyasint"`
	Contact         *ContactInfo `cbor:"5,keyasint,omitempty"`
}

// Marshal serializes the pledge into CBOR.
func (p *Pledge) Marshal() ([]byte, error) {
	return cbor.Marshal(p)
}

// Unmarshal deserializes a pledge from CBOR.
func (p *Pledge) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, p)
}
