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

// Fixed 32-byte message header. Offsets are contractual:
//
//	offset  width  field
//	0       2      magic       0xD5D5
//	2       1      version     1
//	3       1      msgType     0=REQ 1=REP 2=CBK
//	4       2      headerLen   32
//	6       2      opCode
//	8       1      semantics   0=ALO 1=AMO
//	9       1      flags       bit0=checksum bit1=error
//	10      2      status
//	12      8      requestId
//	20      4      clientId
//	24      4      seqNo
//	28      4      payloadLen
type messageHeaderT struct {
	magic      uint16
	version    uint8
	msgType    MsgType
	headerLen  uint16
	opCode     OpCode
	semantics  Semantics
	flags      uint8
	status     OpStatus
	requestId  uint64
	clientId   uint32
	seqNo      uint32
	payloadLen uint32
}

func (h *messageHeaderT) reset() {
	*h = messageHeaderT{
		magic:     kMessageMagic,
		version:   kCurrentVersion,
		headerLen: kHeaderSize,
	}
}

func (h *messageHeaderT) encode(buf []byte) {
	EncByteOrder.PutUint16(buf[0:2], h.magic)
	buf[2] = h.version
	buf[3] = uint8(h.msgType)
	EncByteOrder.PutUint16(buf[4:6], h.headerLen)
	EncByteOrder.PutUint16(buf[6:8], uint16(h.opCode))
	buf[8] = uint8(h.semantics)
	buf[9] = h.flags
	EncByteOrder.PutUint16(buf[10:12], uint16(h.status))
	EncByteOrder.PutUint64(buf[12:20], h.requestId)
	EncByteOrder.PutUint32(buf[20:24], h.clientId)
	EncByteOrder.PutUint32(buf[24:28], h.seqNo)
	EncByteOrder.PutUint32(buf[28:32], h.payloadLen)
}

func (h *messageHeaderT) decode(buf []byte) error {
	if len(buf) < kHeaderSize {
		return ErrBufferTooShort
	}
	h.magic = EncByteOrder.Uint16(buf[0:2])
	if h.magic != kMessageMagic {
		return ErrBadMagic
	}
	h.version = buf[2]
	if h.version != kCurrentVersion {
		return ErrUnsupportedVersion
	}
	h.msgType = MsgType(buf[3])
	if !h.msgType.isSupported() {
		return ErrUnsupportedMessageType
	}
	h.headerLen = EncByteOrder.Uint16(buf[4:6])
	if h.headerLen != kHeaderSize {
		return ErrBadHeaderLength
	}
	h.opCode = OpCode(EncByteOrder.Uint16(buf[6:8]))
	if !h.opCode.IsSupported() {
		return ErrUnsupportedOpCode
	}
	h.semantics = Semantics(buf[8])
	if !h.semantics.isSupported() {
		return ErrUnsupportedSemantics
	}
	h.flags = buf[9]
	if h.flags&kFlagReserved != 0 {
		return ErrReservedFlags
	}
	h.status = OpStatus(EncByteOrder.Uint16(buf[10:12]))
	if !h.status.IsSupported() {
		return ErrUnsupportedStatus
	}
	if h.msgType != MsgTypeReply && h.status != OpStatusOk {
		return ErrStatusInRequest
	}
	if h.hasError() != h.status.IsError() {
		return ErrErrorFlagMismatch
	}
	h.requestId = EncByteOrder.Uint64(buf[12:20])
	h.clientId = EncByteOrder.Uint32(buf[20:24])
	h.seqNo = EncByteOrder.Uint32(buf[24:28])
	h.payloadLen = EncByteOrder.Uint32(buf[28:32])
	if h.payloadLen > kMaxPayloadSize {
		return ErrPayloadTooLarge
	}
	return nil
}

func (h *messageHeaderT) hasChecksum() bool {
	return h.flags&kFlagChecksum != 0
}

func (h *messageHeaderT) setChecksumEnabled(enabled bool) {
	if enabled {
		h.flags |= kFlagChecksum
	} else {
		h.flags &^= kFlagChecksum
	}
}

func (h *messageHeaderT) hasError() bool {
	return h.flags&kFlagError != 0
}

// Error flag law: flags.bit1 is set iff status != 0.
func (h *messageHeaderT) updateErrorFlag() {
	if h.status.IsError() {
		h.flags |= kFlagError
	} else {
		h.flags &^= kFlagError
	}
}

func (h *messageHeaderT) generateRequestId() {
	h.requestId = ComposeRequestId(h.clientId, h.seqNo)
}

func (h *messageHeaderT) String() string {
	return fmt.Sprintf("{%s %s sem=%s st=%s rid=%#x cid=%d seq=%d plen=%d}",
		h.msgType, h.opCode, h.semantics, h.status, h.requestId, h.clientId, h.seqNo, h.payloadLen)
}

// PeekRequestId decodes only enough of the fixed header to recover the
// request identifier, for logging datagrams that will not be delivered.
func PeekRequestId(data []byte) (requestId uint64, ok bool) {
	if len(data) < kHeaderSize {
		return 0, false
	}
	if EncByteOrder.Uint16(data[0:2]) != kMessageMagic {
		return 0, false
	}
	return EncByteOrder.Uint64(data[12:20]), true
}
