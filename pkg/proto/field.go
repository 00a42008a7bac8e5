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
)

type fieldKindT uint8

const (
	kFieldKindString = fieldKindT(iota)
	kFieldKindUint8
	kFieldKindUint32
	kFieldKindInt64
)

var fieldKindMap = map[FieldType]fieldKindT{
	FieldTypeUsername:    kFieldKindString,
	FieldTypePassword:    kFieldKindString,
	FieldTypeAccountNo:   kFieldKindString,
	FieldTypeCurrency:    kFieldKindUint8,
	FieldTypeAmountCents: kFieldKindInt64,
	FieldTypeToAccountNo: kFieldKindString,
	FieldTypeTTLSeconds:  kFieldKindUint32,
	FieldTypeNote:        kFieldKindString,
}

var fieldNameMap = map[FieldType]string{
	FieldTypeUsername:    "username",
	FieldTypePassword:    "password",
	FieldTypeAccountNo:   "accountNo",
	FieldTypeCurrency:    "currency",
	FieldTypeAmountCents: "amountCents",
	FieldTypeToAccountNo: "toAccountNo",
	FieldTypeTTLSeconds:  "ttlSeconds",
	FieldTypeNote:        "note",
}

func (t FieldType) String() string {
	if name, ok := fieldNameMap[t]; ok {
		return name
	}
	return fmt.Sprintf("field(%#04x)", uint16(t))
}

func (t FieldType) IsSupported() bool {
	_, ok := fieldKindMap[t]
	return ok
}

func (k fieldKindT) fixedWidth() int {
	switch k {
	case kFieldKindUint8:
		return 1
	case kFieldKindUint32:
		return 4
	case kFieldKindInt64:
		return 8
	}
	return -1
}

// Field is one Type-Length-Value triple: type and length are 16-bit
// big-endian; value width is fixed for the numeric kinds.
type Field struct {
	ftype FieldType
	value []byte
}

func NewStringField(t FieldType, str string) Field {
	return Field{ftype: t, value: []byte(str)}
}

func NewUint8Field(t FieldType, v uint8) Field {
	return Field{ftype: t, value: []byte{v}}
}

func NewUint32Field(t FieldType, v uint32) Field {
	value := make([]byte, 4)
	EncByteOrder.PutUint32(value, v)
	return Field{ftype: t, value: value}
}

func NewInt64Field(t FieldType, v int64) Field {
	value := make([]byte, 8)
	EncByteOrder.PutUint64(value, uint64(v))
	return Field{ftype: t, value: value}
}

func UsernameField(username string) Field {
	return NewStringField(FieldTypeUsername, username)
}

func PasswordField(password string) Field {
	return NewStringField(FieldTypePassword, password)
}

func AccountNoField(accountNo string) Field {
	return NewStringField(FieldTypeAccountNo, accountNo)
}

func ToAccountNoField(accountNo string) Field {
	return NewStringField(FieldTypeToAccountNo, accountNo)
}

func CurrencyField(c Currency) Field {
	return NewUint8Field(FieldTypeCurrency, uint8(c))
}

func AmountCentsField(cents int64) Field {
	return NewInt64Field(FieldTypeAmountCents, cents)
}

func TTLSecondsField(ttl uint32) Field {
	return NewUint32Field(FieldTypeTTLSeconds, ttl)
}

func NoteField(note string) Field {
	return NewStringField(FieldTypeNote, note)
}

func (f *Field) Type() FieldType {
	return f.ftype
}

func (f *Field) RawValue() []byte {
	return f.value
}

func (f *Field) StringValue() string {
	return string(f.value)
}

func (f *Field) Uint8Value() uint8 {
	return f.value[0]
}

func (f *Field) Uint32Value() uint32 {
	return EncByteOrder.Uint32(f.value)
}

func (f *Field) Int64Value() int64 {
	return int64(EncByteOrder.Uint64(f.value))
}

func (f *Field) CurrencyValue() (Currency, error) {
	c := Currency(f.value[0])
	if !c.IsSupported() {
		return c, ErrInvalidCurrency
	}
	return c, nil
}

func (f *Field) encodedSize() int {
	return kFieldHeaderSize + len(f.value)
}

func (f *Field) encode(buf []byte) int {
	EncByteOrder.PutUint16(buf[0:2], uint16(f.ftype))
	EncByteOrder.PutUint16(buf[2:4], uint16(len(f.value)))
	copy(buf[kFieldHeaderSize:], f.value)
	return f.encodedSize()
}

// decodeField consumes one TLV from the front of buf.
func decodeField(buf []byte) (f Field, n int, err error) {
	if len(buf) < kFieldHeaderSize {
		err = ErrBufferTooShort
		return
	}
	f.ftype = FieldType(EncByteOrder.Uint16(buf[0:2]))
	kind, ok := fieldKindMap[f.ftype]
	if !ok {
		err = ErrUnsupportedFieldType
		return
	}
	length := int(EncByteOrder.Uint16(buf[2:4]))
	if len(buf)-kFieldHeaderSize < length {
		err = ErrBufferTooShort
		return
	}
	if w := kind.fixedWidth(); w >= 0 && length != w {
		err = ErrBadFieldLength
		return
	}
	f.value = make([]byte, length)
	copy(f.value, buf[kFieldHeaderSize:kFieldHeaderSize+length])
	n = kFieldHeaderSize + length
	return
}

func (f Field) String() string {
	kind := fieldKindMap[f.ftype]
	switch kind {
	case kFieldKindUint8:
		return fmt.Sprintf("%s=%d", f.ftype, f.value[0])
	case kFieldKindUint32:
		return fmt.Sprintf("%s=%d", f.ftype, f.Uint32Value())
	case kFieldKindInt64:
		return fmt.Sprintf("%s=%d", f.ftype, f.Int64Value())
	}
	if f.ftype == FieldTypePassword {
		return "password=****"
	}
	return fmt.Sprintf("%s=%q", f.ftype, f.StringValue())
}
