//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package proto

import (
	"fmt"
	"strings"
)

// Payload is an ordered sequence of TLV fields. A duplicate field type
// replaces the earlier value but keeps its original position, so encoding
// is stable.
type Payload struct {
	fields []Field
}

func (p *Payload) Add(f Field) {
	for i := range p.fields {
		if p.fields[i].ftype == f.ftype {
			p.fields[i] = f
			return
		}
	}
	p.fields = append(p.fields, f)
}

func (p *Payload) Get(t FieldType) (Field, bool) {
	for i := range p.fields {
		if p.fields[i].ftype == t {
			return p.fields[i], true
		}
	}
	return Field{}, false
}

func (p *Payload) Has(t FieldType) bool {
	_, ok := p.Get(t)
	return ok
}

func (p *Payload) NumFields() int {
	return len(p.fields)
}

func (p *Payload) Fields() []Field {
	return p.fields
}

func (p *Payload) encodedSize() int {
	sz := 0
	for i := range p.fields {
		sz += p.fields[i].encodedSize()
	}
	return sz
}

func (p *Payload) encode(buf []byte) {
	off := 0
	for i := range p.fields {
		off += p.fields[i].encode(buf[off:])
	}
}

// decodePayload consumes exactly len(buf) bytes as a TLV sequence.
func decodePayload(buf []byte) (Payload, error) {
	var p Payload
	off := 0
	for off < len(buf) {
		f, n, err := decodeField(buf[off:])
		if err != nil {
			return p, err
		}
		p.Add(f)
		off += n
	}
	return p, nil
}

func (p *Payload) Username() (string, bool) {
	return p.stringField(FieldTypeUsername)
}

func (p *Payload) Password() (string, bool) {
	return p.stringField(FieldTypePassword)
}

func (p *Payload) AccountNo() (string, bool) {
	return p.stringField(FieldTypeAccountNo)
}

func (p *Payload) ToAccountNo() (string, bool) {
	return p.stringField(FieldTypeToAccountNo)
}

func (p *Payload) Note() (string, bool) {
	return p.stringField(FieldTypeNote)
}

func (p *Payload) AmountCents() (int64, bool) {
	if f, ok := p.Get(FieldTypeAmountCents); ok {
		return f.Int64Value(), true
	}
	return 0, false
}

func (p *Payload) TTLSeconds() (uint32, bool) {
	if f, ok := p.Get(FieldTypeTTLSeconds); ok {
		return f.Uint32Value(), true
	}
	return 0, false
}

func (p *Payload) Currency() (cur Currency, ok bool, err error) {
	f, ok := p.Get(FieldTypeCurrency)
	if !ok {
		return
	}
	cur, err = f.CurrencyValue()
	return
}

func (p *Payload) stringField(t FieldType) (string, bool) {
	if f, ok := p.Get(t); ok {
		return f.StringValue(), true
	}
	return "", false
}

var requiredFieldMap = map[OpCode][]FieldType{
	OpCodeOpenAccount:        {FieldTypeUsername, FieldTypePassword, FieldTypeCurrency},
	OpCodeCloseAccount:       {FieldTypeUsername, FieldTypePassword, FieldTypeAccountNo},
	OpCodeDeposit:            {FieldTypeUsername, FieldTypePassword, FieldTypeAccountNo, FieldTypeAmountCents},
	OpCodeWithdraw:           {FieldTypeUsername, FieldTypePassword, FieldTypeAccountNo, FieldTypeAmountCents},
	OpCodeRegisterCallback:   {FieldTypeTTLSeconds},
	OpCodeUnregisterCallback: {},
	OpCodeQueryBalance:       {FieldTypeUsername, FieldTypePassword, FieldTypeAccountNo},
	OpCodeTransfer:           {FieldTypeUsername, FieldTypePassword, FieldTypeAccountNo, FieldTypeToAccountNo, FieldTypeAmountCents},
	OpCodeAccountUpdate:      {FieldTypeAccountNo, FieldTypeAmountCents},
}

// RequiredFields lists the TLV types an operation's request must carry.
func RequiredFields(op OpCode) []FieldType {
	return requiredFieldMap[op]
}

// ValidateRequired fails when any required TLV for the operation is absent.
func ValidateRequired(op OpCode, p *Payload) error {
	var missing []string
	for _, t := range requiredFieldMap[op] {
		if !p.Has(t) {
			missing = append(missing, t.String())
		}
	}
	if len(missing) > 0 {
		return &ProtocolError{
			what: fmt.Sprintf("missing required fields for %s: %s", op, strings.Join(missing, ",")),
		}
	}
	return nil
}

func (p Payload) String() string {
	parts := make([]string, 0, len(p.fields))
	for i := range p.fields {
		parts = append(parts, p.fields[i].String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}
