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

// Package cache implements the at-most-once reply cache. It maps
// (clientId, requestId) to the encoded reply bytes of the first completed
// execution, so a duplicate request is answered with a byte-identical
// retransmit instead of a second execution.
package cache

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/sirupsen/logrus"

	"ubank/pkg/util"
)

const (
	DefaultTTL = 5 * time.Minute

	kNumPartitions = 16
)

type cacheKeyT struct {
	clientId  uint32
	requestId uint64
}

type entryT struct {
	packed     []byte
	insertedAt time.Time
}

type partitionT struct {
	sync.Mutex
	entries map[cacheKeyT]entryT
}

// ReplyCache is safe for concurrent Lookup and Store. Entries are stored
// snappy-packed and expire ttl after insertion; expired entries are
// removed on access, Sweep removes them in bulk.
type ReplyCache struct {
	partitions [kNumPartitions]*partitionT
	ttl        time.Duration

	hits   util.AtomicUint64Counter
	misses util.AtomicUint64Counter
}

func NewReplyCache(ttl time.Duration) *ReplyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ReplyCache{ttl: ttl}
	for i := range c.partitions {
		c.partitions[i] = &partitionT{entries: make(map[cacheKeyT]entryT)}
	}
	return c
}

func (c *ReplyCache) TTL() time.Duration {
	return c.ttl
}

func (c *ReplyCache) partitionFor(key cacheKeyT) *partitionT {
	var raw [12]byte
	binary.BigEndian.PutUint32(raw[0:4], key.clientId)
	binary.BigEndian.PutUint64(raw[4:12], key.requestId)
	return c.partitions[util.GetPartitionId(raw[:], kNumPartitions)]
}

// Lookup returns the cached reply bytes iff present and not expired.
func (c *ReplyCache) Lookup(clientId uint32, requestId uint64) ([]byte, bool) {
	key := cacheKeyT{clientId: clientId, requestId: requestId}
	p := c.partitionFor(key)

	p.Lock()
	entry, found := p.entries[key]
	if found && time.Since(entry.insertedAt) >= c.ttl {
		delete(p.entries, key)
		found = false
	}
	p.Unlock()

	if !found {
		c.misses.Add(1)
		return nil, false
	}
	reply, err := snappy.Decode(nil, entry.packed)
	if err != nil {
		logrus.Warnf("dropping undecodable cache entry: cid=%d rid=%#x err=%v", clientId, requestId, err)
		p.Lock()
		delete(p.entries, key)
		p.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return reply, true
}

// Store records the encoded reply, overwriting any prior entry for the key.
func (c *ReplyCache) Store(clientId uint32, requestId uint64, reply []byte) {
	key := cacheKeyT{clientId: clientId, requestId: requestId}
	entry := entryT{
		packed:     snappy.Encode(nil, reply),
		insertedAt: time.Now(),
	}
	p := c.partitionFor(key)
	p.Lock()
	p.entries[key] = entry
	p.Unlock()
}

// Sweep removes all expired entries and reports how many were evicted.
func (c *ReplyCache) Sweep() int {
	evicted := 0
	for _, p := range c.partitions {
		p.Lock()
		for key, entry := range p.entries {
			if time.Since(entry.insertedAt) >= c.ttl {
				delete(p.entries, key)
				evicted++
			}
		}
		p.Unlock()
	}
	return evicted
}

func (c *ReplyCache) Len() int {
	n := 0
	for _, p := range c.partitions {
		p.Lock()
		n += len(p.entries)
		p.Unlock()
	}
	return n
}

func (c *ReplyCache) Hits() uint64 {
	return c.hits.Get()
}

func (c *ReplyCache) Misses() uint64 {
	return c.misses.Get()
}

func (c *ReplyCache) String() string {
	return fmt.Sprintf("ReplyCache{size=%d hits=%d misses=%d ttl=%v}", c.Len(), c.Hits(), c.Misses(), c.ttl)
}
