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

// Package io owns the server-side datagram endpoint: one receive loop
// feeding decoded requests to a request handler, and the reply/callback
// transmit paths.
package io

import (
	"net"

	"ubank/pkg/proto"
)

type (
	// IResponder is handed to the request handler for transmitting
	// encoded messages back out of the endpoint. SendReply passes the
	// reply-loss simulation; SendCallback is best-effort with no loss
	// simulation, no retry and no acknowledgement.
	IResponder interface {
		SendReply(data []byte, peer *net.UDPAddr)
		SendCallback(data []byte, peer *net.UDPAddr)
	}

	// IRequestHandler processes one decoded REQ. Replies, including
	// cached ones, go out through the responder.
	IRequestHandler interface {
		HandleRequest(req *proto.Message, peer *net.UDPAddr, resp IResponder)
	}
)
