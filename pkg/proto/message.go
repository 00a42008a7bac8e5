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
	"hash/crc32"
)

// Message is one unit of wire traffic: fixed header, TLV payload, and an
// optional CRC32 trailer over header+payload when the checksum flag is set.
type Message struct {
	header  messageHeaderT
	payload Payload
}

// NewRequest builds a REQ message. The request id is derived from
// clientId and seqNo and stays stable across retransmissions.
func NewRequest(op OpCode, clientId uint32, seqNo uint32, semantics Semantics) *Message {
	m := &Message{}
	m.header.reset()
	m.header.msgType = MsgTypeRequest
	m.header.opCode = op
	m.header.clientId = clientId
	m.header.seqNo = seqNo
	m.header.semantics = semantics
	m.header.generateRequestId()
	return m
}

// NewReplyTo builds a REP message mirroring the request's identity fields.
func NewReplyTo(req *Message, status OpStatus) *Message {
	m := &Message{}
	m.header.reset()
	m.header.msgType = MsgTypeReply
	m.header.opCode = req.header.opCode
	m.header.semantics = req.header.semantics
	m.header.requestId = req.header.requestId
	m.header.clientId = req.header.clientId
	m.header.seqNo = req.header.seqNo
	m.SetStatus(status)
	return m
}

// NewCallback builds a server-initiated CBK message.
func NewCallback(op OpCode) *Message {
	m := &Message{}
	m.header.reset()
	m.header.msgType = MsgTypeCallback
	m.header.opCode = op
	return m
}

func (m *Message) MsgType() MsgType {
	return m.header.msgType
}

func (m *Message) OpCode() OpCode {
	return m.header.opCode
}

func (m *Message) Semantics() Semantics {
	return m.header.semantics
}

func (m *Message) SetSemantics(s Semantics) {
	m.header.semantics = s
}

func (m *Message) Status() OpStatus {
	return m.header.status
}

func (m *Message) SetStatus(status OpStatus) {
	m.header.status = status
	m.header.updateErrorFlag()
}

func (m *Message) RequestId() uint64 {
	return m.header.requestId
}

func (m *Message) ClientId() uint32 {
	return m.header.clientId
}

func (m *Message) SeqNo() uint32 {
	return m.header.seqNo
}

// SetClientInfo stamps the client identity and regenerates the request id.
func (m *Message) SetClientInfo(clientId uint32, seqNo uint32) {
	m.header.clientId = clientId
	m.header.seqNo = seqNo
	m.header.generateRequestId()
}

func (m *Message) HasChecksum() bool {
	return m.header.hasChecksum()
}

func (m *Message) SetChecksumEnabled(enabled bool) {
	m.header.setChecksumEnabled(enabled)
}

func (m *Message) HasError() bool {
	return m.header.hasError()
}

func (m *Message) AddField(f Field) *Message {
	m.payload.Add(f)
	return m
}

func (m *Message) Payload() *Payload {
	return &m.payload
}

func (m *Message) EncodedSize() int {
	sz := kHeaderSize + m.payload.encodedSize()
	if m.header.hasChecksum() {
		sz += kChecksumSize
	}
	return sz
}

// Encode serialises the message. payloadLen and the error flag are
// recomputed; when the checksum flag is set a big-endian CRC32 over
// header+payload is appended as a trailer (not counted in payloadLen).
func (m *Message) Encode() ([]byte, error) {
	szPayload := m.payload.encodedSize()
	if szPayload > kMaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	m.header.payloadLen = uint32(szPayload)
	m.header.updateErrorFlag()

	buf := make([]byte, m.EncodedSize())
	m.header.encode(buf[0:kHeaderSize])
	m.payload.encode(buf[kHeaderSize : kHeaderSize+szPayload])
	if m.header.hasChecksum() {
		sum := crc32.ChecksumIEEE(buf[0 : kHeaderSize+szPayload])
		EncByteOrder.PutUint32(buf[kHeaderSize+szPayload:], sum)
	}
	return buf, nil
}

// Decode parses one datagram. The datagram length must match the header
// exactly: 32 + payloadLen, plus 4 when the checksum flag is set.
func (m *Message) Decode(data []byte) error {
	if len(data) < kHeaderSize {
		return ErrBufferTooShort
	}
	var header messageHeaderT
	if err := header.decode(data[0:kHeaderSize]); err != nil {
		return err
	}
	expected := kHeaderSize + int(header.payloadLen)
	if header.hasChecksum() {
		expected += kChecksumSize
	}
	if len(data) < expected {
		return ErrInvalidPayloadLength
	}
	if len(data) > expected {
		return ErrTrailingBytes
	}
	end := kHeaderSize + int(header.payloadLen)
	if header.hasChecksum() {
		sum := crc32.ChecksumIEEE(data[0:end])
		if sum != EncByteOrder.Uint32(data[end:]) {
			return ErrChecksumMismatch
		}
	}
	payload, err := decodePayload(data[kHeaderSize:end])
	if err != nil {
		return err
	}
	m.header = header
	m.payload = payload
	return nil
}

// DecodeHeader parses and validates only the fixed header, leaving the
// payload empty. It lets the server answer BAD_REQUEST for a datagram
// whose header is sound but whose payload is not.
func DecodeHeader(data []byte) (*Message, error) {
	if len(data) < kHeaderSize {
		return nil, ErrBufferTooShort
	}
	m := &Message{}
	if err := m.header.decode(data[0:kHeaderSize]); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %s", m.header.String(), m.payload.String())
}
