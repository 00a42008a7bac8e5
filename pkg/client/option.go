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

package client

import (
	"ubank/pkg/proto"
)

type optionDataT struct {
	semantics    proto.Semantics
	semanticsSet bool
	currency     proto.Currency
	currencySet  bool
	checksum     bool
	note         string
}

type IOption func(data *optionDataT)

func newOptionData(opts ...IOption) *optionDataT {
	data := &optionDataT{}
	for _, op := range opts {
		op(data)
	}
	return data
}

// WithSemantics overrides the client's default invocation semantics for
// one request.
func WithSemantics(s proto.Semantics) IOption {
	return func(data *optionDataT) {
		data.semantics = s
		data.semanticsSet = true
	}
}

// WithCurrency attaches the currency TLV so the server validates it
// against the account.
func WithCurrency(c proto.Currency) IOption {
	return func(data *optionDataT) {
		data.currency = c
		data.currencySet = true
	}
}

// WithChecksum requests a CRC32 trailer on the outgoing datagram.
func WithChecksum() IOption {
	return func(data *optionDataT) {
		data.checksum = true
	}
}

// WithNote attaches a free-form note TLV.
func WithNote(note string) IOption {
	return func(data *optionDataT) {
		data.note = note
	}
}
