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
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// requestStatT tracks round-trip latency of completed requests plus
// transmission (first sends and retransmissions) and timeout counts.
type requestStatT struct {
	mtx         sync.Mutex
	hist        *hdrhistogram.Histogram
	numSends    int64
	numTimeouts int64
}

func newRequestStat() *requestStatT {
	return &requestStatT{
		hist: hdrhistogram.New(1, int64(time.Minute), 3),
	}
}

func (s *requestStatT) putLatency(tm time.Duration) {
	s.mtx.Lock()
	s.hist.RecordValue(int64(tm))
	s.mtx.Unlock()
}

func (s *requestStatT) addSend() {
	s.mtx.Lock()
	s.numSends++
	s.mtx.Unlock()
}

func (s *requestStatT) addTimeout() {
	s.mtx.Lock()
	s.numTimeouts++
	s.mtx.Unlock()
}

func (s *requestStatT) Summary() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.hist.TotalCount() == 0 {
		return fmt.Sprintf("requests=0 sends=%d timeouts=%d", s.numSends, s.numTimeouts)
	}
	return fmt.Sprintf("requests=%d sends=%d timeouts=%d p50=%v p95=%v p99=%v max=%v",
		s.hist.TotalCount(), s.numSends, s.numTimeouts,
		time.Duration(s.hist.ValueAtQuantile(50.)),
		time.Duration(s.hist.ValueAtQuantile(95.)),
		time.Duration(s.hist.ValueAtQuantile(99.)),
		time.Duration(s.hist.Max()))
}
