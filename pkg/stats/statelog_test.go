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

package stats

import (
	"strings"
	"testing"
	"time"
)

func TestRequestStat(t *testing.T) {
	s := NewRequestStat()
	if got := s.Summary(); got != "reqs=0" {
		t.Errorf("empty summary: %q", got)
	}
	s.Put(2*time.Millisecond, false)
	s.Put(4*time.Millisecond, true)
	if s.NumRequests() != 2 {
		t.Errorf("reqs=%d", s.NumRequests())
	}
	if s.NumErrors() != 1 {
		t.Errorf("errs=%d", s.NumErrors())
	}
	summary := s.Summary()
	if !strings.Contains(summary, "reqs=2") || !strings.Contains(summary, "p50=") {
		t.Errorf("summary: %q", summary)
	}
}

type fakeSourceT struct{}

func (fakeSourceT) String() string { return "fake=1" }

func TestStateLogStartStop(t *testing.T) {
	l := NewStateLog(time.Millisecond, fakeSourceT{})
	l.Observe(time.Millisecond, false)
	l.Start()
	time.Sleep(10 * time.Millisecond)
	l.Stop()
	// stopping twice must be harmless
	l.Stop()
}
