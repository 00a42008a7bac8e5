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
	"errors"

	"ubank/pkg/proto"
)

var (
	ErrBadParam          = errors.New("client: bad parameter")
	ErrClosed            = errors.New("client: closed")
	ErrResponseTimeout   = errors.New("client: response timeout")
	ErrBadRequest        = errors.New("client: bad request")
	ErrAuthFail          = errors.New("client: authentication failed")
	ErrNoAccount         = errors.New("client: account not found")
	ErrInsufficientFunds = errors.New("client: insufficient funds")
	ErrCurrencyMismatch  = errors.New("client: currency mismatch")
	ErrAlreadyExists     = errors.New("client: already exists")
	ErrInternal          = errors.New("client: server internal error")
)

var statusErrMap = map[proto.OpStatus]error{
	proto.OpStatusBadRequest:        ErrBadRequest,
	proto.OpStatusAuthFail:          ErrAuthFail,
	proto.OpStatusNotFound:          ErrNoAccount,
	proto.OpStatusInsufficientFunds: ErrInsufficientFunds,
	proto.OpStatusCurrencyMismatch:  ErrCurrencyMismatch,
	proto.OpStatusAlreadyExists:     ErrAlreadyExists,
	proto.OpStatusInternal:          ErrInternal,
}

// checkResponse maps a non-OK reply status to its exported error value.
func checkResponse(resp *proto.Message) error {
	if resp.Status() == proto.OpStatusOk {
		return nil
	}
	if err, ok := statusErrMap[resp.Status()]; ok {
		return err
	}
	return ErrInternal
}
