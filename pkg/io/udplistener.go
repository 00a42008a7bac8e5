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

package io

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ubank/pkg/proto"
	"ubank/pkg/sim"
)

type ListenerConfig struct {
	Addr              string
	RequestsPerSecond float64
	RequestBurst      int
}

func (cfg *ListenerConfig) SetDefaultIfNotDefined() {
	if len(cfg.Addr) == 0 {
		cfg.Addr = ":8888"
	}
	if cfg.RequestBurst == 0 {
		cfg.RequestBurst = 64
	}
}

// ObserveFunc receives the processing latency of each dispatched request.
type ObserveFunc func(tm time.Duration)

const (
	kStateIdle = int32(iota)
	kStateRunning
	kStateClosed
)

// UDPListener runs a single-goroutine receive loop over one datagram
// socket. Lifecycle: Stopped -> Running (Serve) -> Stopped (Shutdown).
type UDPListener struct {
	config  ListenerConfig
	conn    *net.UDPConn
	handler IRequestHandler
	sim     *sim.Simulator
	limiter *rate.Limiter
	observe ObserveFunc

	state int32
	wg    sync.WaitGroup
}

func NewUDPListener(cfg ListenerConfig, handler IRequestHandler, lossSim *sim.Simulator) (*UDPListener, error) {
	cfg.SetDefaultIfNotDefined()
	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	l := &UDPListener{
		config:  cfg,
		conn:    conn,
		handler: handler,
		sim:     lossSim,
	}
	if cfg.RequestsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst)
	}
	return l, nil
}

func (l *UDPListener) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// SetObserver installs a latency observer. Must be called before Serve.
func (l *UDPListener) SetObserver(fn ObserveFunc) {
	l.observe = fn
}

// Serve runs the receive loop until Shutdown closes the socket. One
// malformed datagram never terminates the loop.
func (l *UDPListener) Serve() error {
	if !atomic.CompareAndSwapInt32(&l.state, kStateIdle, kStateRunning) {
		return nil
	}
	l.wg.Add(1)
	defer l.wg.Done()

	logrus.Infof("listening on %s", l.Addr())
	buf := make([]byte, proto.MaxDatagramSize)
	for atomic.LoadInt32(&l.state) == kStateRunning {
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if atomic.LoadInt32(&l.state) == kStateRunning {
				logrus.Errorf("receive: %v", err)
			}
			continue
		}
		l.serveDatagram(buf[:n], peer)
	}
	return nil
}

func (l *UDPListener) serveDatagram(data []byte, peer *net.UDPAddr) {
	if l.sim != nil && l.sim.DropRequest() {
		// the datagram is never delivered downstream; the header is
		// peeked only so the drop can be attributed in the log
		if rid, ok := proto.PeekRequestId(data); ok {
			logrus.Infof("loss-sim dropped request rid=%#x from %s", rid, peer)
		} else {
			logrus.Infof("loss-sim dropped unparsable datagram from %s", peer)
		}
		return
	}

	req := &proto.Message{}
	if err := req.Decode(data); err != nil {
		// a parsable request header with a broken payload still gets a
		// BAD_REQUEST reply; anything less stays silent
		if hdr, herr := proto.DecodeHeader(data); herr == nil && hdr.MsgType() == proto.MsgTypeRequest {
			logrus.Warnf("bad payload in rid=%#x from %s: %v", hdr.RequestId(), peer, err)
			reply := proto.NewReplyTo(hdr, proto.OpStatusBadRequest)
			if out, eerr := reply.Encode(); eerr == nil {
				l.SendReply(out, peer)
			}
			return
		}
		logrus.Debugf("dropping undecodable datagram from %s: %v", peer, err)
		return
	}
	if req.MsgType() != proto.MsgTypeRequest {
		logrus.Warnf("dropping non-request message type %s from %s", req.MsgType(), peer)
		return
	}
	if l.limiter != nil && !l.limiter.Allow() {
		logrus.Warnf("rate limit exceeded, dropping rid=%#x from %s", req.RequestId(), peer)
		return
	}

	start := time.Now()
	l.handler.HandleRequest(req, peer, l)
	if l.observe != nil {
		l.observe(time.Since(start))
	}
}

// SendReply transmits one encoded reply, subject to the reply-loss draw.
func (l *UDPListener) SendReply(data []byte, peer *net.UDPAddr) {
	if l.sim != nil && l.sim.DropReply() {
		if rid, ok := proto.PeekRequestId(data); ok {
			logrus.Infof("loss-sim dropped reply rid=%#x to %s", rid, peer)
		}
		return
	}
	if _, err := l.conn.WriteToUDP(data, peer); err != nil {
		logrus.Errorf("send reply to %s: %v", peer, err)
	}
}

// SendCallback transmits one encoded callback, best-effort.
func (l *UDPListener) SendCallback(data []byte, peer *net.UDPAddr) {
	if _, err := l.conn.WriteToUDP(data, peer); err != nil {
		logrus.Errorf("send callback to %s: %v", peer, err)
	}
}

// Shutdown closes the socket, which unblocks the receive loop, and waits
// for it to exit. A listener that was never served just closes.
func (l *UDPListener) Shutdown() {
	prev := atomic.SwapInt32(&l.state, kStateClosed)
	l.conn.Close()
	if prev == kStateRunning {
		l.wg.Wait()
	}
}
