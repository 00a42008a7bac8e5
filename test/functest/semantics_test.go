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

// End-to-end invocation semantics scenarios over real UDP sockets on the
// loopback interface. Timescales are compressed through the configurable
// retry policy.
package functest

import (
	"sync"
	"testing"
	"time"

	"ubank/pkg/client"
	"ubank/pkg/proto"
	"ubank/pkg/service"
	"ubank/pkg/util"
)

func startServer(t *testing.T) *service.Service {
	t.Helper()
	svc, err := service.New(service.Config{
		Listener:         serviceListenerConfig(),
		CacheTTL:         util.Duration{Duration: time.Minute},
		StateLogInterval: util.Duration{Duration: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc
}

func newClient(t *testing.T, svc *service.Service, clientId uint32, semantics string) client.IClient {
	t.Helper()
	c, err := client.New(client.Config{
		Server:    svc.Addr().String(),
		ClientId:  clientId,
		Semantics: semantics,
		Retry: client.RetryConfig{
			InitialTimeout: client.Duration{Duration: 100 * time.Millisecond},
			MaxRetries:     5,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func preload(t *testing.T, svc *service.Service, username, password string, balanceCents int64) string {
	t.Helper()
	res := svc.Bank().OpenAccount(username, password, proto.CurrencySGD, balanceCents)
	if res.Status != proto.OpStatusOk {
		t.Fatalf("preload %s: %s", username, res.Status)
	}
	return res.AccountNo
}

// S1: AMO transfer under reply loss. The service must execute the
// transfer exactly once; the retried request is answered from the cache.
func TestAMOTransferUnderReplyLoss(t *testing.T) {
	svc := startServer(t)
	acctA := preload(t, svc, "alice", "pw", 100000)
	acctB := preload(t, svc, "bob", "pw2", 100000)

	svc.LossSimulator().ForceDropReplies(1)

	c := newClient(t, svc, 1001, "AMO")
	newBalance, err := c.Transfer("alice", "pw", acctA, acctB, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if newBalance != 90000 {
		t.Errorf("client observed balance %d, want 90000", newBalance)
	}
	if got := svc.Store().GetByAccountNo(acctA).Balance(); got != 90000 {
		t.Errorf("A=%d, want 90000 (exactly one execution)", got)
	}
	if got := svc.Store().GetByAccountNo(acctB).Balance(); got != 110000 {
		t.Errorf("B=%d, want 110000 (exactly one execution)", got)
	}
	if svc.Cache().Hits() != 1 {
		t.Errorf("cache hits=%d, want 1 (retry served from cache)", svc.Cache().Hits())
	}
}

// S2: ALO deposit under reply loss. The retry re-executes the deposit.
func TestALODepositUnderReplyLoss(t *testing.T) {
	svc := startServer(t)
	acctA := preload(t, svc, "alice", "pw", 100000)

	svc.LossSimulator().ForceDropReplies(1)

	c := newClient(t, svc, 1001, "ALO")
	newBalance, err := c.Deposit("alice", "pw", acctA, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if newBalance != 120000 {
		t.Errorf("client observed balance %d, want 120000 after double execution", newBalance)
	}
	if got := svc.Store().GetByAccountNo(acctA).Balance(); got != 120000 {
		t.Errorf("A=%d, want 120000 (service invoked twice)", got)
	}
	if svc.Cache().Hits() != 0 {
		t.Errorf("ALO request must not touch the cache, hits=%d", svc.Cache().Hits())
	}
}

// S3: duplicate OPEN_ACCOUNT under ALO. The second execution collides
// with the first and surfaces ALREADY_EXISTS.
func TestALOOpenAccountDuplicate(t *testing.T) {
	svc := startServer(t)
	svc.LossSimulator().ForceDropReplies(1)

	c := newClient(t, svc, 1001, "ALO")
	_, err := c.OpenAccount("alice", "pw", proto.CurrencySGD, 100000)
	if err != client.ErrAlreadyExists {
		t.Fatalf("err=%v, want ErrAlreadyExists", err)
	}
	if svc.Store().NumAccounts() != 1 {
		t.Errorf("accounts=%d, want 1", svc.Store().NumAccounts())
	}
}

// S4: callback fan-out. A monitor sees the depositor's change; the
// depositor's own socket gets no callback.
func TestCallbackFanOut(t *testing.T) {
	svc := startServer(t)
	acctX := preload(t, svc, "alice", "pw", 100000)

	monitor := newClient(t, svc, 9999, "AMO")
	if err := monitor.RegisterCallback(60); err != nil {
		t.Fatal(err)
	}

	actor := newClient(t, svc, 1001, "AMO")
	var actorCallbacks int
	actor.SetCallbackHandler(func(cbk *proto.Message) { actorCallbacks++ })
	if _, err := actor.Deposit("alice", "pw", acctX, 5000); err != nil {
		t.Fatal(err)
	}

	var got []*proto.Message
	n, err := monitor.ListenCallbacks(300*time.Millisecond, func(cbk *proto.Message) {
		got = append(got, cbk)
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(got) != 1 {
		t.Fatalf("monitor received %d callbacks, want 1", n)
	}
	cbk := got[0]
	if cbk.MsgType() != proto.MsgTypeCallback || cbk.OpCode() != proto.OpCodeAccountUpdate {
		t.Errorf("got %s %s", cbk.MsgType(), cbk.OpCode())
	}
	if acct, _ := cbk.Payload().AccountNo(); acct != acctX {
		t.Errorf("accountNo=%s, want %s", acct, acctX)
	}
	if amt, _ := cbk.Payload().AmountCents(); amt != 105000 {
		t.Errorf("amountCents=%d, want new balance 105000", amt)
	}
	if actorCallbacks != 0 {
		t.Errorf("depositor received %d callbacks for its own change", actorCallbacks)
	}
}

// S5: retry exhaustion under total reply loss: 6 transmissions, then the
// request surfaces a timeout.
func TestRetryExhaustion(t *testing.T) {
	svc := startServer(t)
	acct := preload(t, svc, "alice", "pw", 100000)
	if err := svc.LossSimulator().Enable(0, 1.0); err != nil {
		t.Fatal(err)
	}

	c, err := client.New(client.Config{
		Server:   svc.Addr().String(),
		ClientId: 1001,
		Retry: client.RetryConfig{
			InitialTimeout: client.Duration{Duration: 20 * time.Millisecond},
			MaxRetries:     5,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, _, err = c.QueryBalance("alice", "pw", acct)
	if err != client.ErrResponseTimeout {
		t.Fatalf("err=%v, want ErrResponseTimeout", err)
	}
	st := svc.LossSimulator().GetStats()
	if st.RepliesSeen != 6 || st.RepliesDropped != 6 {
		t.Errorf("reply stats %+v, want 6 transmissions all dropped", st)
	}
}

// S6: a callback addressed to the client arrives while it is waiting out
// a retry; it is delivered to the handler and the request still completes.
func TestCallbackInterleavedWithRequestWait(t *testing.T) {
	svc := startServer(t)
	acctA := preload(t, svc, "alice", "pw", 100000)
	acctB := preload(t, svc, "bob", "pw2", 100000)

	c1 := newClient(t, svc, 1001, "AMO")
	if err := c1.RegisterCallback(60); err != nil {
		t.Fatal(err)
	}
	var mtx sync.Mutex
	var c1Callbacks []*proto.Message
	c1.SetCallbackHandler(func(cbk *proto.Message) {
		mtx.Lock()
		c1Callbacks = append(c1Callbacks, cbk)
		mtx.Unlock()
	})

	// first transfer reply is lost, so client 1001 sits in its retry wait
	svc.LossSimulator().ForceDropReplies(1)

	type transferResultT struct {
		balance int64
		err     error
	}
	chResult := make(chan transferResultT, 1)
	go func() {
		balance, err := c1.Transfer("alice", "pw", acctA, acctB, 10000)
		chResult <- transferResultT{balance, err}
	}()

	// while 1001 waits, another client changes state, which fans a
	// callback out to 1001's registered address
	time.Sleep(30 * time.Millisecond)
	c2 := newClient(t, svc, 2002, "AMO")
	if _, err := c2.Deposit("bob", "pw2", acctB, 100); err != nil {
		t.Fatal(err)
	}

	res := <-chResult
	if res.err != nil {
		t.Fatalf("transfer failed: %v", res.err)
	}
	if res.balance != 90000 {
		t.Errorf("transfer balance=%d, want 90000", res.balance)
	}
	mtx.Lock()
	defer mtx.Unlock()
	if len(c1Callbacks) == 0 {
		t.Error("callback was not delivered during the request wait")
	}
	if got := svc.Store().GetByAccountNo(acctA).Balance(); got != 90000 {
		t.Errorf("A=%d, transfer executed more than once", got)
	}
}
