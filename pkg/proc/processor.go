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

// Package proc implements the request dispatcher. It realises the two
// invocation semantics: every request is executed under ALO, while under
// AMO the reply cache suppresses re-execution and retransmits the original
// reply bytes.
package proc

import (
	"net"

	"github.com/sirupsen/logrus"

	"ubank/pkg/bank"
	"ubank/pkg/cache"
	"ubank/pkg/callback"
	"ubank/pkg/io"
	"ubank/pkg/proto"
)

type accountChangeT struct {
	accountNo    string
	balanceCents int64
}

type RequestProcessor struct {
	bankSvc  bank.IService
	cache    *cache.ReplyCache
	registry *callback.Registry
}

func NewRequestProcessor(bankSvc bank.IService, replyCache *cache.ReplyCache, registry *callback.Registry) *RequestProcessor {
	return &RequestProcessor{
		bankSvc:  bankSvc,
		cache:    replyCache,
		registry: registry,
	}
}

func (p *RequestProcessor) Cache() *cache.ReplyCache {
	return p.cache
}

func (p *RequestProcessor) Registry() *callback.Registry {
	return p.registry
}

// HandleRequest runs one request to completion. The receive loop invokes
// it synchronously, so the cache check -> execute -> cache store sequence
// for a given (clientId, requestId) never interleaves.
func (p *RequestProcessor) HandleRequest(req *proto.Message, peer *net.UDPAddr, resp io.IResponder) {
	clientId := req.ClientId()
	requestId := req.RequestId()

	if req.Semantics() == proto.SemanticsAtMostOnce {
		if cached, found := p.cache.Lookup(clientId, requestId); found {
			logrus.Infof("cache hit cid=%d rid=%#x, retransmitting original reply", clientId, requestId)
			resp.SendReply(cached, peer)
			return
		}
	}

	reply, changes := p.execute(req, peer)

	data, err := reply.Encode()
	if err != nil {
		logrus.Errorf("encoding reply for rid=%#x: %v", requestId, err)
		return
	}

	// store before transmitting so a duplicate arriving right behind
	// this one observes the cached reply
	if req.Semantics() == proto.SemanticsAtMostOnce {
		p.cache.Store(clientId, requestId, data)
	}
	resp.SendReply(data, peer)

	for _, change := range changes {
		p.notifyMonitors(change, clientId, resp)
	}
}

// execute validates the request and dispatches it to the banking service.
// Any panic below surfaces as an INTERNAL_ERROR reply.
func (p *RequestProcessor) execute(req *proto.Message, peer *net.UDPAddr) (reply *proto.Message, changes []accountChangeT) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("panic handling %s rid=%#x: %v", req.OpCode(), req.RequestId(), r)
			reply = proto.NewReplyTo(req, proto.OpStatusInternal)
			changes = nil
		}
	}()

	payload := req.Payload()
	if err := proto.ValidateRequired(req.OpCode(), payload); err != nil {
		logrus.Warnf("bad request rid=%#x: %v", req.RequestId(), err)
		return proto.NewReplyTo(req, proto.OpStatusBadRequest), nil
	}

	switch req.OpCode() {
	case proto.OpCodeOpenAccount:
		return p.openAccount(req)
	case proto.OpCodeCloseAccount:
		return p.closeAccount(req)
	case proto.OpCodeDeposit:
		return p.depositOrWithdraw(req, true)
	case proto.OpCodeWithdraw:
		return p.depositOrWithdraw(req, false)
	case proto.OpCodeQueryBalance:
		return p.queryBalance(req)
	case proto.OpCodeTransfer:
		return p.transfer(req)
	case proto.OpCodeRegisterCallback:
		return p.registerCallback(req, peer), nil
	case proto.OpCodeUnregisterCallback:
		return p.unregisterCallback(req), nil
	}
	logrus.Warnf("unsupported operation %s in request rid=%#x", req.OpCode(), req.RequestId())
	return proto.NewReplyTo(req, proto.OpStatusBadRequest), nil
}

func (p *RequestProcessor) openAccount(req *proto.Message) (*proto.Message, []accountChangeT) {
	payload := req.Payload()
	username, _ := payload.Username()
	password, _ := payload.Password()
	currency, _, err := payload.Currency()
	if err != nil {
		return proto.NewReplyTo(req, proto.OpStatusBadRequest), nil
	}
	initialBalance, _ := payload.AmountCents() // optional, defaults to 0

	res := p.bankSvc.OpenAccount(username, password, currency, initialBalance)
	reply := proto.NewReplyTo(req, res.Status)
	if res.Status != proto.OpStatusOk {
		return reply, nil
	}
	reply.AddField(proto.AccountNoField(res.AccountNo))
	reply.AddField(proto.AmountCentsField(res.BalanceCents))
	return reply, []accountChangeT{{res.AccountNo, res.BalanceCents}}
}

func (p *RequestProcessor) closeAccount(req *proto.Message) (*proto.Message, []accountChangeT) {
	payload := req.Payload()
	username, _ := payload.Username()
	password, _ := payload.Password()
	accountNo, _ := payload.AccountNo()

	res := p.bankSvc.CloseAccount(username, password, accountNo)
	reply := proto.NewReplyTo(req, res.Status)
	if res.Status != proto.OpStatusOk {
		return reply, nil
	}
	reply.AddField(proto.AmountCentsField(res.BalanceCents))
	return reply, []accountChangeT{{accountNo, res.BalanceCents}}
}

func (p *RequestProcessor) depositOrWithdraw(req *proto.Message, isDeposit bool) (*proto.Message, []accountChangeT) {
	payload := req.Payload()
	username, _ := payload.Username()
	password, _ := payload.Password()
	accountNo, _ := payload.AccountNo()
	amount, _ := payload.AmountCents()
	currency, currencySet, err := payload.Currency()
	if err != nil {
		return proto.NewReplyTo(req, proto.OpStatusBadRequest), nil
	}

	var res bank.Result
	if isDeposit {
		res = p.bankSvc.Deposit(username, password, accountNo, currency, currencySet, amount)
	} else {
		res = p.bankSvc.Withdraw(username, password, accountNo, currency, currencySet, amount)
	}
	reply := proto.NewReplyTo(req, res.Status)
	if res.Status != proto.OpStatusOk {
		return reply, nil
	}
	reply.AddField(proto.AmountCentsField(res.BalanceCents))
	return reply, []accountChangeT{{accountNo, res.BalanceCents}}
}

func (p *RequestProcessor) queryBalance(req *proto.Message) (*proto.Message, []accountChangeT) {
	payload := req.Payload()
	username, _ := payload.Username()
	password, _ := payload.Password()
	accountNo, _ := payload.AccountNo()

	res := p.bankSvc.QueryBalance(username, password, accountNo)
	reply := proto.NewReplyTo(req, res.Status)
	if res.Status != proto.OpStatusOk {
		return reply, nil
	}
	reply.AddField(proto.AmountCentsField(res.BalanceCents))
	reply.AddField(proto.CurrencyField(res.Currency))
	return reply, nil
}

func (p *RequestProcessor) transfer(req *proto.Message) (*proto.Message, []accountChangeT) {
	payload := req.Payload()
	username, _ := payload.Username()
	password, _ := payload.Password()
	fromNo, _ := payload.AccountNo()
	toNo, _ := payload.ToAccountNo()
	amount, _ := payload.AmountCents()

	res := p.bankSvc.Transfer(username, password, fromNo, toNo, amount)
	reply := proto.NewReplyTo(req, res.Status)
	if res.Status != proto.OpStatusOk {
		return reply, nil
	}
	reply.AddField(proto.AmountCentsField(res.BalanceCents))
	// one notification per affected account
	changes := []accountChangeT{
		{fromNo, res.BalanceCents},
		{toNo, res.DestBalanceCents},
	}
	return reply, changes
}

func (p *RequestProcessor) registerCallback(req *proto.Message, peer *net.UDPAddr) *proto.Message {
	ttl, _ := req.Payload().TTLSeconds()
	if ttl == 0 {
		return proto.NewReplyTo(req, proto.OpStatusBadRequest)
	}
	p.registry.Register(req.ClientId(), peer, ttl)
	logrus.Infof("client %d registered for callbacks at %s, ttl=%ds", req.ClientId(), peer, ttl)
	return proto.NewReplyTo(req, proto.OpStatusOk)
}

func (p *RequestProcessor) unregisterCallback(req *proto.Message) *proto.Message {
	wasRegistered := p.registry.Unregister(req.ClientId())
	logrus.Infof("client %d unregistered from callbacks (was registered: %v)", req.ClientId(), wasRegistered)
	return proto.NewReplyTo(req, proto.OpStatusOk)
}

// notifyMonitors fans one ACCOUNT_UPDATE out to every live registrant
// except the client whose request caused the change.
func (p *RequestProcessor) notifyMonitors(change accountChangeT, originClientId uint32, resp io.IResponder) {
	recipients := p.registry.Addresses(originClientId)
	if len(recipients) == 0 {
		return
	}
	cbk := proto.NewCallback(proto.OpCodeAccountUpdate)
	cbk.AddField(proto.AccountNoField(change.accountNo))
	cbk.AddField(proto.AmountCentsField(change.balanceCents))
	data, err := cbk.Encode()
	if err != nil {
		logrus.Errorf("encoding callback: %v", err)
		return
	}
	for _, addr := range recipients {
		resp.SendCallback(data, addr)
	}
}
