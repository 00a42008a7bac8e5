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

package bank

import (
	"fmt"
	"sync"

	"ubank/pkg/proto"
)

const kFirstAccountNumber = 1000

// Store is the in-memory account store, indexed by account number and by
// username. Usernames are globally unique.
type Store struct {
	mtx     sync.RWMutex
	byNo    map[string]*Account
	byUser  map[string]*Account
	counter int
}

func NewStore() *Store {
	return &Store{
		byNo:    make(map[string]*Account),
		byUser:  make(map[string]*Account),
		counter: kFirstAccountNumber,
	}
}

// CreateAccount assigns a new account number. Returns nil when the
// username is taken.
func (s *Store) CreateAccount(username, password string, currency proto.Currency, initialBalance int64) *Account {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, taken := s.byUser[username]; taken {
		return nil
	}
	s.counter++
	accountNo := fmt.Sprintf("ACC-%d", s.counter)
	account := newAccount(accountNo, username, password, currency, initialBalance)
	s.byUser[username] = account
	s.byNo[accountNo] = account
	return account
}

func (s *Store) GetByAccountNo(accountNo string) *Account {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.byNo[accountNo]
}

func (s *Store) GetByUsername(username string) *Account {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.byUser[username]
}

func (s *Store) DeleteAccount(accountNo string) *Account {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	account := s.byNo[accountNo]
	if account != nil {
		delete(s.byNo, accountNo)
		delete(s.byUser, account.username)
	}
	return account
}

func (s *Store) NumAccounts() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.byNo)
}
