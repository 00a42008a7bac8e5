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

package proc

import (
	"bytes"
	"net"
	"testing"
	"time"

	"ubank/pkg/bank"
	"ubank/pkg/cache"
	"ubank/pkg/callback"
	"ubank/pkg/proto"
)

type sentDatagramT struct {
	data []byte
	peer *net.UDPAddr
}

type fakeResponderT struct {
	replies   []sentDatagramT
	callbacks []sentDatagramT
}

func (r *fakeResponderT) SendReply(data []byte, peer *net.UDPAddr) {
	r.replies = append(r.replies, sentDatagramT{data: data, peer: peer})
}

func (r *fakeResponderT) SendCallback(data []byte, peer *net.UDPAddr) {
	r.callbacks = append(r.callbacks, sentDatagramT{data: data, peer: peer})
}

func (r *fakeResponderT) lastReply(t *testing.T) *proto.Message {
	t.Helper()
	if len(r.replies) == 0 {
		t.Fatal("no reply sent")
	}
	m := &proto.Message{}
	if err := m.Decode(r.replies[len(r.replies)-1].data); err != nil {
		t.Fatalf("reply does not decode: %v", err)
	}
	return m
}

// countingServiceT wraps the real service and counts invocations of the
// non-idempotent operations.
type countingServiceT struct {
	bank.IService
	deposits  int
	transfers int
	opens     int
}

func (s *countingServiceT) Deposit(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) bank.Result {
	s.deposits++
	return s.IService.Deposit(username, password, accountNo, currency, currencySet, amountCents)
}

func (s *countingServiceT) Transfer(username, password, fromAccountNo, toAccountNo string, amountCents int64) bank.Result {
	s.transfers++
	return s.IService.Transfer(username, password, fromAccountNo, toAccountNo, amountCents)
}

func (s *countingServiceT) OpenAccount(username, password string, currency proto.Currency, initialBalanceCents int64) bank.Result {
	s.opens++
	return s.IService.OpenAccount(username, password, currency, initialBalanceCents)
}

type testEnvT struct {
	proc    *RequestProcessor
	svc     *countingServiceT
	store   *bank.Store
	resp    *fakeResponderT
	peer    *net.UDPAddr
	acctA   string
	acctB   string
	nextSeq uint32
}

func newTestEnv(t *testing.T) *testEnvT {
	store := bank.NewStore()
	svc := &countingServiceT{IService: bank.NewService(store)}
	env := &testEnvT{
		svc:   svc,
		store: store,
		proc:  NewRequestProcessor(svc, cache.NewReplyCache(time.Minute), callback.NewRegistry()),
		resp:  &fakeResponderT{},
		peer:  &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6001},
	}
	a := svc.OpenAccount("alice", "pw", proto.CurrencySGD, 100000)
	b := svc.OpenAccount("bob", "pw2", proto.CurrencySGD, 100000)
	env.acctA, env.acctB = a.AccountNo, b.AccountNo
	svc.opens = 0
	return env
}

func (env *testEnvT) depositRequest(clientId uint32, semantics proto.Semantics, amount int64) *proto.Message {
	env.nextSeq++
	req := proto.NewRequest(proto.OpCodeDeposit, clientId, env.nextSeq, semantics)
	req.AddField(proto.UsernameField("alice"))
	req.AddField(proto.PasswordField("pw"))
	req.AddField(proto.AccountNoField(env.acctA))
	req.AddField(proto.AmountCentsField(amount))
	return req
}

func TestAMODuplicateSuppressed(t *testing.T) {
	env := newTestEnv(t)
	req := env.depositRequest(1001, proto.SemanticsAtMostOnce, 10000)

	env.proc.HandleRequest(req, env.peer, env.resp)
	env.proc.HandleRequest(req, env.peer, env.resp)

	if env.svc.deposits != 1 {
		t.Errorf("service invoked %d times, want exactly once", env.svc.deposits)
	}
	if len(env.resp.replies) != 2 {
		t.Fatalf("want 2 replies, got %d", len(env.resp.replies))
	}
	if !bytes.Equal(env.resp.replies[0].data, env.resp.replies[1].data) {
		t.Error("duplicate reply not byte identical")
	}
	if env.store.GetByAccountNo(env.acctA).Balance() != 110000 {
		t.Errorf("balance=%d", env.store.GetByAccountNo(env.acctA).Balance())
	}
}

func TestALODuplicateReExecutes(t *testing.T) {
	env := newTestEnv(t)
	req := env.depositRequest(1001, proto.SemanticsAtLeastOnce, 10000)

	env.proc.HandleRequest(req, env.peer, env.resp)
	env.proc.HandleRequest(req, env.peer, env.resp)

	if env.svc.deposits != 2 {
		t.Errorf("service invoked %d times, want twice", env.svc.deposits)
	}
	if env.store.GetByAccountNo(env.acctA).Balance() != 120000 {
		t.Errorf("balance=%d", env.store.GetByAccountNo(env.acctA).Balance())
	}
}

func TestAMOOpenAccountDuplicate(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeOpenAccount, 1001, 50, proto.SemanticsAtMostOnce)
	req.AddField(proto.UsernameField("carol"))
	req.AddField(proto.PasswordField("pw3"))
	req.AddField(proto.CurrencyField(proto.CurrencySGD))

	env.proc.HandleRequest(req, env.peer, env.resp)
	env.proc.HandleRequest(req, env.peer, env.resp)

	if env.svc.opens != 1 {
		t.Errorf("open invoked %d times", env.svc.opens)
	}
	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusOk {
		t.Errorf("status=%s", rep.Status())
	}
}

func TestALOOpenAccountDuplicateAlreadyExists(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeOpenAccount, 1001, 51, proto.SemanticsAtLeastOnce)
	req.AddField(proto.UsernameField("carol"))
	req.AddField(proto.PasswordField("pw3"))
	req.AddField(proto.CurrencyField(proto.CurrencySGD))

	env.proc.HandleRequest(req, env.peer, env.resp)
	env.proc.HandleRequest(req, env.peer, env.resp)

	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusAlreadyExists {
		t.Errorf("second ALO open: status=%s, want AlreadyExists", rep.Status())
	}
	if !rep.HasError() {
		t.Error("error flag not set")
	}
}

func TestMissingRequiredFields(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeDeposit, 1001, 60, proto.SemanticsAtLeastOnce)
	req.AddField(proto.UsernameField("alice"))

	env.proc.HandleRequest(req, env.peer, env.resp)
	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusBadRequest {
		t.Errorf("status=%s", rep.Status())
	}
	if rep.Payload().NumFields() != 0 {
		t.Error("error reply must carry an empty payload")
	}
}

func TestQueryBalanceReply(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeQueryBalance, 1001, 61, proto.SemanticsAtMostOnce)
	req.AddField(proto.UsernameField("alice"))
	req.AddField(proto.PasswordField("pw"))
	req.AddField(proto.AccountNoField(env.acctA))

	env.proc.HandleRequest(req, env.peer, env.resp)
	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusOk {
		t.Fatalf("status=%s", rep.Status())
	}
	if amt, _ := rep.Payload().AmountCents(); amt != 100000 {
		t.Errorf("amount=%d", amt)
	}
	cur, ok, err := rep.Payload().Currency()
	if !ok || err != nil || cur != proto.CurrencySGD {
		t.Errorf("currency missing from reply: %v %v %v", cur, ok, err)
	}
	if rep.RequestId() != req.RequestId() || rep.SeqNo() != req.SeqNo() {
		t.Error("identity fields not mirrored")
	}
}

func TestCallbackFanOutAndExclusion(t *testing.T) {
	env := newTestEnv(t)
	monitorAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7777}
	originAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6001}
	env.proc.Registry().Register(9999, monitorAddr, 60)
	env.proc.Registry().Register(1001, originAddr, 60)

	req := env.depositRequest(1001, proto.SemanticsAtMostOnce, 5000)
	env.proc.HandleRequest(req, env.peer, env.resp)

	if len(env.resp.callbacks) != 1 {
		t.Fatalf("want 1 callback, got %d", len(env.resp.callbacks))
	}
	sent := env.resp.callbacks[0]
	if sent.peer.Port != 7777 {
		t.Errorf("callback sent to %v, want the monitor", sent.peer)
	}
	cbk := &proto.Message{}
	if err := cbk.Decode(sent.data); err != nil {
		t.Fatal(err)
	}
	if cbk.MsgType() != proto.MsgTypeCallback || cbk.OpCode() != proto.OpCodeAccountUpdate {
		t.Errorf("got %s %s", cbk.MsgType(), cbk.OpCode())
	}
	if acct, _ := cbk.Payload().AccountNo(); acct != env.acctA {
		t.Errorf("accountNo=%s", acct)
	}
	if amt, _ := cbk.Payload().AmountCents(); amt != 105000 {
		t.Errorf("amountCents=%d, want new balance", amt)
	}
}

func TestTransferEmitsTwoCallbacks(t *testing.T) {
	env := newTestEnv(t)
	monitorAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7777}
	env.proc.Registry().Register(9999, monitorAddr, 60)

	req := proto.NewRequest(proto.OpCodeTransfer, 1001, 70, proto.SemanticsAtMostOnce)
	req.AddField(proto.UsernameField("alice"))
	req.AddField(proto.PasswordField("pw"))
	req.AddField(proto.AccountNoField(env.acctA))
	req.AddField(proto.ToAccountNoField(env.acctB))
	req.AddField(proto.AmountCentsField(10000))

	env.proc.HandleRequest(req, env.peer, env.resp)

	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusOk {
		t.Fatalf("status=%s", rep.Status())
	}
	if amt, _ := rep.Payload().AmountCents(); amt != 90000 {
		t.Errorf("source balance in reply=%d", amt)
	}
	if len(env.resp.callbacks) != 2 {
		t.Fatalf("want 2 callbacks, got %d", len(env.resp.callbacks))
	}
	balances := map[string]int64{}
	for _, sent := range env.resp.callbacks {
		cbk := &proto.Message{}
		if err := cbk.Decode(sent.data); err != nil {
			t.Fatal(err)
		}
		acct, _ := cbk.Payload().AccountNo()
		amt, _ := cbk.Payload().AmountCents()
		balances[acct] = amt
	}
	if balances[env.acctA] != 90000 || balances[env.acctB] != 110000 {
		t.Errorf("callback balances: %v", balances)
	}
}

func TestNoCallbackOnFailedOperation(t *testing.T) {
	env := newTestEnv(t)
	env.proc.Registry().Register(9999, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7777}, 60)

	req := env.depositRequest(1001, proto.SemanticsAtLeastOnce, -5)
	env.proc.HandleRequest(req, env.peer, env.resp)

	if env.resp.lastReply(t).Status() != proto.OpStatusBadRequest {
		t.Errorf("status=%s", env.resp.lastReply(t).Status())
	}
	if len(env.resp.callbacks) != 0 {
		t.Errorf("failed operation emitted %d callbacks", len(env.resp.callbacks))
	}
}

func TestRegisterCallbackValidatesTTL(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeRegisterCallback, 9999, 80, proto.SemanticsAtMostOnce)
	req.AddField(proto.TTLSecondsField(0))
	env.proc.HandleRequest(req, env.peer, env.resp)
	if env.resp.lastReply(t).Status() != proto.OpStatusBadRequest {
		t.Errorf("ttl=0 accepted: %s", env.resp.lastReply(t).Status())
	}

	req = proto.NewRequest(proto.OpCodeRegisterCallback, 9999, 81, proto.SemanticsAtMostOnce)
	req.AddField(proto.TTLSecondsField(60))
	env.proc.HandleRequest(req, env.peer, env.resp)
	if env.resp.lastReply(t).Status() != proto.OpStatusOk {
		t.Errorf("register failed: %s", env.resp.lastReply(t).Status())
	}
	if !env.proc.Registry().IsRegistered(9999) {
		t.Error("registration missing")
	}
}

func TestUnregisterCallbackAlwaysOk(t *testing.T) {
	env := newTestEnv(t)
	req := proto.NewRequest(proto.OpCodeUnregisterCallback, 4242, 90, proto.SemanticsAtMostOnce)
	env.proc.HandleRequest(req, env.peer, env.resp)
	if env.resp.lastReply(t).Status() != proto.OpStatusOk {
		t.Errorf("unregister of unknown client: %s", env.resp.lastReply(t).Status())
	}
}

type panickyServiceT struct {
	bank.IService
}

func (s *panickyServiceT) Deposit(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) bank.Result {
	panic("storage corrupted")
}

func TestPanicBecomesInternalError(t *testing.T) {
	env := newTestEnv(t)
	env.proc = NewRequestProcessor(&panickyServiceT{IService: env.svc}, cache.NewReplyCache(time.Minute), callback.NewRegistry())

	req := env.depositRequest(1001, proto.SemanticsAtLeastOnce, 100)
	env.proc.HandleRequest(req, env.peer, env.resp)
	rep := env.resp.lastReply(t)
	if rep.Status() != proto.OpStatusInternal {
		t.Errorf("status=%s", rep.Status())
	}
	if !rep.HasError() {
		t.Error("error flag not set")
	}
}
