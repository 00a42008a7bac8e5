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

// Package sim implements probabilistic drop of inbound requests and
// outbound replies, for demonstrating invocation semantics over an
// unreliable channel. It never touches the real transport path beyond
// the drop decision.
package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"ubank/pkg/util"
)

type Simulator struct {
	mtx          sync.Mutex
	rnd          *rand.Rand
	enabled      bool
	requestLossP float64
	replyLossP   float64

	forceDropRequests int32
	forceDropReplies  int32

	requestsSeen    util.AtomicUint64Counter
	requestsDropped util.AtomicUint64Counter
	repliesSeen     util.AtomicUint64Counter
	repliesDropped  util.AtomicUint64Counter
}

type Stats struct {
	RequestsSeen    uint64
	RequestsDropped uint64
	RepliesSeen     uint64
	RepliesDropped  uint64
}

func New() *Simulator {
	return &Simulator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enable turns loss simulation on. Probabilities are in [0,1].
func (s *Simulator) Enable(requestLossP float64, replyLossP float64) error {
	if requestLossP < 0 || requestLossP > 1 || replyLossP < 0 || replyLossP > 1 {
		return fmt.Errorf("loss probability out of range: req=%v rep=%v", requestLossP, replyLossP)
	}
	s.mtx.Lock()
	s.enabled = true
	s.requestLossP = requestLossP
	s.replyLossP = replyLossP
	s.mtx.Unlock()
	return nil
}

func (s *Simulator) Disable() {
	s.mtx.Lock()
	s.enabled = false
	s.mtx.Unlock()
}

func (s *Simulator) Enabled() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.enabled
}

// ForceDropRequests makes the next n inbound requests drop regardless of
// probabilities. Used by the test suite.
func (s *Simulator) ForceDropRequests(n int) {
	atomic.StoreInt32(&s.forceDropRequests, int32(n))
}

// ForceDropReplies makes the next n outbound replies drop regardless of
// probabilities.
func (s *Simulator) ForceDropReplies(n int) {
	atomic.StoreInt32(&s.forceDropReplies, int32(n))
}

func takeForced(cnt *int32) bool {
	for {
		n := atomic.LoadInt32(cnt)
		if n <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(cnt, n, n-1) {
			return true
		}
	}
}

// DropRequest decides the fate of one inbound request.
func (s *Simulator) DropRequest() bool {
	s.requestsSeen.Add(1)
	if takeForced(&s.forceDropRequests) {
		s.requestsDropped.Add(1)
		return true
	}
	if s.draw(&s.requestLossP) {
		s.requestsDropped.Add(1)
		return true
	}
	return false
}

// DropReply decides the fate of one outbound reply.
func (s *Simulator) DropReply() bool {
	s.repliesSeen.Add(1)
	if takeForced(&s.forceDropReplies) {
		s.repliesDropped.Add(1)
		return true
	}
	if s.draw(&s.replyLossP) {
		s.repliesDropped.Add(1)
		return true
	}
	return false
}

func (s *Simulator) draw(p *float64) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.enabled {
		return false
	}
	return s.rnd.Float64() < *p
}

func (s *Simulator) GetStats() Stats {
	return Stats{
		RequestsSeen:    s.requestsSeen.Get(),
		RequestsDropped: s.requestsDropped.Get(),
		RepliesSeen:     s.repliesSeen.Get(),
		RepliesDropped:  s.repliesDropped.Get(),
	}
}

func (s *Simulator) String() string {
	s.mtx.Lock()
	enabled, reqP, repP := s.enabled, s.requestLossP, s.replyLossP
	s.mtx.Unlock()
	st := s.GetStats()
	return fmt.Sprintf("LossSim{enabled=%v reqLoss=%.0f%% repLoss=%.0f%% reqSeen=%d reqDrop=%d repSeen=%d repDrop=%d}",
		enabled, reqP*100, repP*100, st.RequestsSeen, st.RequestsDropped, st.RepliesSeen, st.RepliesDropped)
}
