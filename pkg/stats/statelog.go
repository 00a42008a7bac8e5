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

// Package stats implements the server state log: request counters and a
// latency histogram written out on a fixed interval.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/sirupsen/logrus"

	"ubank/pkg/util"
)

const kDefaultWriteInterval = 10 * time.Second

// RequestStat accumulates per-request latencies.
type RequestStat struct {
	mtx       sync.Mutex
	hist      *hdrhistogram.Histogram
	numErrors util.AtomicUint64Counter
}

func NewRequestStat() *RequestStat {
	return &RequestStat{
		hist: hdrhistogram.New(1, int64(time.Minute), 3),
	}
}

func (s *RequestStat) Put(tm time.Duration, isError bool) {
	s.mtx.Lock()
	s.hist.RecordValue(int64(tm))
	s.mtx.Unlock()
	if isError {
		s.numErrors.Add(1)
	}
}

func (s *RequestStat) NumRequests() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.hist.TotalCount()
}

func (s *RequestStat) NumErrors() uint64 {
	return s.numErrors.Get()
}

// Summary renders count and latency percentiles in one line.
func (s *RequestStat) Summary() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.hist.TotalCount() == 0 {
		return "reqs=0"
	}
	return fmt.Sprintf("reqs=%d errs=%d p50=%v p95=%v p99=%v max=%v",
		s.hist.TotalCount(),
		s.numErrors.Get(),
		time.Duration(s.hist.ValueAtQuantile(50.)),
		time.Duration(s.hist.ValueAtQuantile(95.)),
		time.Duration(s.hist.ValueAtQuantile(99.)),
		time.Duration(s.hist.Max()))
}

// IStateSource contributes one segment to each state-log line.
type IStateSource interface {
	String() string
}

// StateLog periodically writes one line combining the request stat and
// all registered sources.
type StateLog struct {
	interval time.Duration
	reqStat  *RequestStat
	sources  []IStateSource
	chDone   chan struct{}
	wg       sync.WaitGroup
	started  bool
}

func NewStateLog(interval time.Duration, sources ...IStateSource) *StateLog {
	if interval <= 0 {
		interval = kDefaultWriteInterval
	}
	return &StateLog{
		interval: interval,
		reqStat:  NewRequestStat(),
		sources:  sources,
		chDone:   make(chan struct{}),
	}
}

func (l *StateLog) RequestStat() *RequestStat {
	return l.reqStat
}

func (l *StateLog) Observe(tm time.Duration, isError bool) {
	l.reqStat.Put(tm, isError)
}

func (l *StateLog) Start() {
	if l.started {
		return
	}
	l.started = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.chDone:
				return
			case <-ticker.C:
				l.write()
			}
		}
	}()
}

func (l *StateLog) Stop() {
	if !l.started {
		return
	}
	close(l.chDone)
	l.wg.Wait()
	l.started = false
}

func (l *StateLog) write() {
	line := l.reqStat.Summary()
	for _, src := range l.sources {
		line += " " + src.String()
	}
	logrus.Info(line)
}
