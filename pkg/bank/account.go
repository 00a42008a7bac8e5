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
	"time"

	"ubank/pkg/proto"
)

// Account holds one balance in minor units (cents). Balance access is
// guarded by the account mutex; Transfer locks two accounts in accountNo
// order.
type Account struct {
	mtx       sync.Mutex
	accountNo string
	username  string
	password  string
	currency  proto.Currency
	balance   int64
	createdAt time.Time
}

func newAccount(accountNo, username, password string, currency proto.Currency, initialBalance int64) *Account {
	return &Account{
		accountNo: accountNo,
		username:  username,
		password:  password,
		currency:  currency,
		balance:   initialBalance,
		createdAt: time.Now(),
	}
}

func (a *Account) AccountNo() string {
	return a.accountNo
}

func (a *Account) Username() string {
	return a.username
}

func (a *Account) Currency() proto.Currency {
	return a.currency
}

func (a *Account) Balance() int64 {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.balance
}

func (a *Account) verifyPassword(password string) bool {
	return a.password == password
}

func (a *Account) deposit(amountCents int64) int64 {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.balance += amountCents
	return a.balance
}

// withdraw fails without touching the balance when funds are insufficient.
func (a *Account) withdraw(amountCents int64) (int64, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.balance < amountCents {
		return a.balance, false
	}
	a.balance -= amountCents
	return a.balance, true
}

func (a *Account) String() string {
	return fmt.Sprintf("Account{no=%s user=%s cur=%s balance=%d}",
		a.accountNo, a.username, a.currency, a.Balance())
}
