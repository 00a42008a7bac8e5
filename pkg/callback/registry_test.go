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

package callback

import (
	"net"
	"testing"
	"time"
)

func addrOf(t *testing.T, s string) *net.UDPAddr {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestRegisterAndAddresses(t *testing.T) {
	r := NewRegistry()
	r.Register(9999, addrOf(t, "127.0.0.1:7001"), 60)
	r.Register(1001, addrOf(t, "127.0.0.1:7002"), 60)

	addrs := r.Addresses(1001)
	if len(addrs) != 1 {
		t.Fatalf("want 1 address, got %d", len(addrs))
	}
	if addrs[0].Port != 7001 {
		t.Errorf("wrong address: %v", addrs[0])
	}
	if r.Len() != 2 {
		t.Errorf("len=%d", r.Len())
	}
}

func TestExclusionOfInitiator(t *testing.T) {
	r := NewRegistry()
	r.Register(1001, addrOf(t, "127.0.0.1:7002"), 60)
	if addrs := r.Addresses(1001); len(addrs) != 0 {
		t.Errorf("initiator must be excluded, got %v", addrs)
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(5, addrOf(t, "127.0.0.1:7003"), 60)
	if !r.Unregister(5) {
		t.Error("expected wasRegistered=true")
	}
	if r.Unregister(5) {
		t.Error("expected wasRegistered=false on second call")
	}
	if r.IsRegistered(5) {
		t.Error("still registered after unregister")
	}
}

func TestRegistrationExpires(t *testing.T) {
	r := NewRegistry()
	r.Register(5, addrOf(t, "127.0.0.1:7003"), 0)
	time.Sleep(5 * time.Millisecond)
	if addrs := r.Addresses(0); len(addrs) != 0 {
		t.Errorf("expired registration returned: %v", addrs)
	}
	if r.Len() != 0 {
		t.Errorf("expired registration not pruned, len=%d", r.Len())
	}
}

func TestReRegisterRefreshes(t *testing.T) {
	r := NewRegistry()
	r.Register(5, addrOf(t, "127.0.0.1:7003"), 0)
	r.Register(5, addrOf(t, "127.0.0.1:7004"), 60)
	addrs := r.Addresses(0)
	if len(addrs) != 1 || addrs[0].Port != 7004 {
		t.Errorf("refresh not applied: %v", addrs)
	}
}
