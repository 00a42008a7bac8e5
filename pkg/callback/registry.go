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

// Package callback tracks which clients want ACCOUNT_UPDATE notifications.
// The address of a registrant is the source address of its
// REGISTER_CALLBACK datagram; entries expire after their TTL and are
// pruned lazily.
package callback

import (
	"fmt"
	"net"
	"sync"
	"time"
)

type registrationT struct {
	addr      *net.UDPAddr
	expiresAt time.Time
}

func (r *registrationT) expired(now time.Time) bool {
	return !now.Before(r.expiresAt)
}

type Registry struct {
	mtx     sync.Mutex
	entries map[uint32]*registrationT
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]*registrationT)}
}

// Register inserts or refreshes a subscription. Re-registering is always
// safe, which is what makes the operation idempotent.
func (r *Registry) Register(clientId uint32, addr *net.UDPAddr, ttlSeconds uint32) {
	r.mtx.Lock()
	r.entries[clientId] = &registrationT{
		addr:      addr,
		expiresAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	r.mtx.Unlock()
}

// Unregister removes a subscription and reports whether one existed.
func (r *Registry) Unregister(clientId uint32) bool {
	r.mtx.Lock()
	_, found := r.entries[clientId]
	delete(r.entries, clientId)
	r.mtx.Unlock()
	return found
}

func (r *Registry) IsRegistered(clientId uint32) bool {
	now := time.Now()
	r.mtx.Lock()
	defer r.mtx.Unlock()
	reg, found := r.entries[clientId]
	if found && reg.expired(now) {
		delete(r.entries, clientId)
		return false
	}
	return found
}

// Addresses returns the addresses of all live registrants except the
// given client. Expired entries encountered on the way are pruned.
func (r *Registry) Addresses(excludeClientId uint32) []*net.UDPAddr {
	now := time.Now()
	r.mtx.Lock()
	defer r.mtx.Unlock()

	addrs := make([]*net.UDPAddr, 0, len(r.entries))
	for clientId, reg := range r.entries {
		if reg.expired(now) {
			delete(r.entries, clientId)
			continue
		}
		if clientId == excludeClientId {
			continue
		}
		addrs = append(addrs, reg.addr)
	}
	return addrs
}

func (r *Registry) Len() int {
	now := time.Now()
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for clientId, reg := range r.entries {
		if reg.expired(now) {
			delete(r.entries, clientId)
		}
	}
	return len(r.entries)
}

func (r *Registry) String() string {
	return fmt.Sprintf("CallbackRegistry{registered=%d}", r.Len())
}
