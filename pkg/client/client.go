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

/*
Package client implements the banking client API over UDP.

One request blocks its caller until a matching reply arrives or the retry
budget is exhausted. The encoded request bytes, including the request id,
are reused verbatim for every retransmission; the per-attempt timeout
starts at 500ms and doubles, with 5 retries by default. Callback
notifications arriving while a request is in flight are handed to the
callback handler without disturbing the wait.
*/
package client

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"ubank/pkg/proto"
	"ubank/pkg/util"
)

// CallbackHandler receives server-initiated CBK messages.
type CallbackHandler func(cbk *proto.Message)

type OpenResult struct {
	AccountNo    string
	BalanceCents int64
}

type IClient interface {
	OpenAccount(username, password string, currency proto.Currency, initialBalanceCents int64, opts ...IOption) (*OpenResult, error)
	CloseAccount(username, password, accountNo string, opts ...IOption) (finalBalanceCents int64, err error)
	Deposit(username, password, accountNo string, amountCents int64, opts ...IOption) (newBalanceCents int64, err error)
	Withdraw(username, password, accountNo string, amountCents int64, opts ...IOption) (newBalanceCents int64, err error)
	QueryBalance(username, password, accountNo string, opts ...IOption) (balanceCents int64, currency proto.Currency, err error)
	Transfer(username, password, fromAccountNo, toAccountNo string, amountCents int64, opts ...IOption) (newBalanceCents int64, err error)
	RegisterCallback(ttlSeconds uint32, opts ...IOption) error
	UnregisterCallback(opts ...IOption) error

	SendRequest(req *proto.Message) (*proto.Message, error)
	SetCallbackHandler(handler CallbackHandler)
	ListenCallbacks(duration time.Duration, handler CallbackHandler) (numCallbacks int, err error)

	ClientId() uint32
	StatsSummary() string
	Close()
}

type clientImplT struct {
	config   Config
	conn     *net.UDPConn
	clientId uint32
	seqNo    util.AtomicUint32Counter
	handler  CallbackHandler
	stat     *requestStatT
}

// New connects a client socket to the server. A zero ClientId in the
// config is replaced with one derived from a random UUID.
func New(conf Config) (IClient, error) {
	conf.SetDefaultIfNotDefined()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", conf.Server)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	clientId := conf.ClientId
	if clientId == 0 {
		clientId = deriveClientId()
	}
	c := &clientImplT{
		config:   conf,
		conn:     conn,
		clientId: clientId,
		stat:     newRequestStat(),
	}
	logrus.Debugf("client %d connected to %s from %s", clientId, conf.Server, conn.LocalAddr())
	return c, nil
}

func deriveClientId() uint32 {
	id := uuid.NewV4()
	clientId := binary.BigEndian.Uint32(id.Bytes()[0:4])
	if clientId == 0 {
		clientId = 1
	}
	return clientId
}

func (c *clientImplT) ClientId() uint32 {
	return c.clientId
}

func (c *clientImplT) SetCallbackHandler(handler CallbackHandler) {
	c.handler = handler
}

func (c *clientImplT) StatsSummary() string {
	return c.stat.Summary()
}

func (c *clientImplT) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// newRequest stamps client identity; the request id is fixed here and
// never changes across retransmissions.
func (c *clientImplT) newRequest(op proto.OpCode, options *optionDataT) *proto.Message {
	semantics := c.config.defaultSemantics()
	if options.semanticsSet {
		semantics = options.semantics
	}
	req := proto.NewRequest(op, c.clientId, c.seqNo.Next(), semantics)
	if options.checksum || c.config.Checksum {
		req.SetChecksumEnabled(true)
	}
	if len(options.note) > 0 {
		req.AddField(proto.NoteField(options.note))
	}
	return req
}

// SendRequest transmits an already-built request and waits for the
// matching reply, retransmitting the identical bytes on timeout.
func (c *clientImplT) SendRequest(req *proto.Message) (*proto.Message, error) {
	if c.conn == nil {
		return nil, ErrClosed
	}
	data, err := req.Encode()
	if err != nil {
		return nil, err
	}
	requestId := req.RequestId()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.Retry.InitialTimeout.Duration
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0
	bo.Reset()

	started := time.Now()
	maxAttempts := c.config.Retry.MaxRetries + 1
	buf := make([]byte, proto.MaxDatagramSize)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timeout := bo.NextBackOff()
		if attempt > 1 {
			logrus.Infof("client %d retransmitting rid=%#x attempt=%d timeout=%v",
				c.clientId, requestId, attempt, timeout)
		}
		if _, err := c.conn.Write(data); err != nil {
			return nil, err
		}
		c.stat.addSend()

		resp, err := c.waitForReply(requestId, time.Now().Add(timeout), buf)
		if err == nil {
			c.stat.putLatency(time.Since(started))
			return resp, nil
		}
		if err != ErrResponseTimeout {
			return nil, err
		}
	}
	c.stat.addTimeout()
	logrus.Warnf("client %d giving up on rid=%#x after %d attempts", c.clientId, requestId, maxAttempts)
	return nil, ErrResponseTimeout
}

// waitForReply consumes datagrams until the matching REP arrives or the
// absolute deadline passes. CBKs are handed to the handler and the wait
// continues; mismatched or undecodable datagrams are discarded.
func (c *clientImplT) waitForReply(requestId uint64, deadline time.Time, buf []byte) (*proto.Message, error) {
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return nil, ErrResponseTimeout
			}
			return nil, err
		}
		resp := &proto.Message{}
		if err := resp.Decode(buf[:n]); err != nil {
			logrus.Debugf("client %d discarding undecodable datagram: %v", c.clientId, err)
			continue
		}
		switch resp.MsgType() {
		case proto.MsgTypeCallback:
			if c.handler != nil {
				c.handler(resp)
			} else {
				logrus.Debugf("client %d received callback with no handler", c.clientId)
			}
			continue
		case proto.MsgTypeReply:
			if resp.RequestId() != requestId {
				logrus.Debugf("client %d discarding reply rid=%#x, want %#x",
					c.clientId, resp.RequestId(), requestId)
				continue
			}
			return resp, nil
		default:
			continue
		}
	}
}

// ListenCallbacks serves a dedicated monitor peer: it consumes datagrams
// for the given duration, delivering CBKs and ignoring everything else.
func (c *clientImplT) ListenCallbacks(duration time.Duration, handler CallbackHandler) (int, error) {
	if c.conn == nil {
		return 0, ErrClosed
	}
	numCallbacks := 0
	end := time.Now().Add(duration)
	buf := make([]byte, proto.MaxDatagramSize)
	for {
		remaining := time.Until(end)
		if remaining <= 0 {
			return numCallbacks, nil
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return numCallbacks, err
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			return numCallbacks, err
		}
		cbk := &proto.Message{}
		if err := cbk.Decode(buf[:n]); err != nil {
			logrus.Debugf("monitor %d discarding undecodable datagram: %v", c.clientId, err)
			continue
		}
		if cbk.MsgType() != proto.MsgTypeCallback {
			continue
		}
		numCallbacks++
		if handler != nil {
			handler(cbk)
		}
	}
}

func (c *clientImplT) OpenAccount(username, password string, currency proto.Currency, initialBalanceCents int64, opts ...IOption) (*OpenResult, error) {
	if len(username) == 0 || len(password) == 0 || initialBalanceCents < 0 {
		return nil, ErrBadParam
	}
	req := c.newRequest(proto.OpCodeOpenAccount, newOptionData(opts...))
	req.AddField(proto.UsernameField(username))
	req.AddField(proto.PasswordField(password))
	req.AddField(proto.CurrencyField(currency))
	if initialBalanceCents > 0 {
		req.AddField(proto.AmountCentsField(initialBalanceCents))
	}
	resp, err := c.SendRequest(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	accountNo, _ := resp.Payload().AccountNo()
	balance, _ := resp.Payload().AmountCents()
	return &OpenResult{AccountNo: accountNo, BalanceCents: balance}, nil
}

func (c *clientImplT) CloseAccount(username, password, accountNo string, opts ...IOption) (int64, error) {
	req := c.newRequest(proto.OpCodeCloseAccount, newOptionData(opts...))
	req.AddField(proto.UsernameField(username))
	req.AddField(proto.PasswordField(password))
	req.AddField(proto.AccountNoField(accountNo))
	resp, err := c.SendRequest(req)
	if err != nil {
		return 0, err
	}
	if err := checkResponse(resp); err != nil {
		return 0, err
	}
	balance, _ := resp.Payload().AmountCents()
	return balance, nil
}

func (c *clientImplT) Deposit(username, password, accountNo string, amountCents int64, opts ...IOption) (int64, error) {
	return c.moveFunds(proto.OpCodeDeposit, username, password, accountNo, amountCents, opts...)
}

func (c *clientImplT) Withdraw(username, password, accountNo string, amountCents int64, opts ...IOption) (int64, error) {
	return c.moveFunds(proto.OpCodeWithdraw, username, password, accountNo, amountCents, opts...)
}

func (c *clientImplT) moveFunds(op proto.OpCode, username, password, accountNo string, amountCents int64, opts ...IOption) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrBadParam
	}
	options := newOptionData(opts...)
	req := c.newRequest(op, options)
	req.AddField(proto.UsernameField(username))
	req.AddField(proto.PasswordField(password))
	req.AddField(proto.AccountNoField(accountNo))
	req.AddField(proto.AmountCentsField(amountCents))
	if options.currencySet {
		req.AddField(proto.CurrencyField(options.currency))
	}
	resp, err := c.SendRequest(req)
	if err != nil {
		return 0, err
	}
	if err := checkResponse(resp); err != nil {
		return 0, err
	}
	balance, _ := resp.Payload().AmountCents()
	return balance, nil
}

func (c *clientImplT) QueryBalance(username, password, accountNo string, opts ...IOption) (int64, proto.Currency, error) {
	req := c.newRequest(proto.OpCodeQueryBalance, newOptionData(opts...))
	req.AddField(proto.UsernameField(username))
	req.AddField(proto.PasswordField(password))
	req.AddField(proto.AccountNoField(accountNo))
	resp, err := c.SendRequest(req)
	if err != nil {
		return 0, 0, err
	}
	if err := checkResponse(resp); err != nil {
		return 0, 0, err
	}
	balance, _ := resp.Payload().AmountCents()
	currency, _, _ := resp.Payload().Currency()
	return balance, currency, nil
}

func (c *clientImplT) Transfer(username, password, fromAccountNo, toAccountNo string, amountCents int64, opts ...IOption) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrBadParam
	}
	req := c.newRequest(proto.OpCodeTransfer, newOptionData(opts...))
	req.AddField(proto.UsernameField(username))
	req.AddField(proto.PasswordField(password))
	req.AddField(proto.AccountNoField(fromAccountNo))
	req.AddField(proto.ToAccountNoField(toAccountNo))
	req.AddField(proto.AmountCentsField(amountCents))
	resp, err := c.SendRequest(req)
	if err != nil {
		return 0, err
	}
	if err := checkResponse(resp); err != nil {
		return 0, err
	}
	balance, _ := resp.Payload().AmountCents()
	return balance, nil
}

func (c *clientImplT) RegisterCallback(ttlSeconds uint32, opts ...IOption) error {
	if ttlSeconds == 0 {
		return ErrBadParam
	}
	req := c.newRequest(proto.OpCodeRegisterCallback, newOptionData(opts...))
	req.AddField(proto.TTLSecondsField(ttlSeconds))
	resp, err := c.SendRequest(req)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

func (c *clientImplT) UnregisterCallback(opts ...IOption) error {
	req := c.newRequest(proto.OpCodeUnregisterCallback, newOptionData(opts...))
	resp, err := c.SendRequest(req)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
