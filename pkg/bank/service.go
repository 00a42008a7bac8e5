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

// Package bank implements the banking domain operations behind the
// dispatcher. Authentication is by password comparison against the account
// owner; whether the user or the account was at fault is never leaked.
package bank

import (
	"github.com/sirupsen/logrus"

	"ubank/pkg/proto"
)

// Result carries the outcome of one operation. DestBalanceCents is only
// meaningful for Transfer.
type Result struct {
	Status           proto.OpStatus
	AccountNo        string
	BalanceCents     int64
	DestBalanceCents int64
	Currency         proto.Currency
}

func errorResult(status proto.OpStatus) Result {
	return Result{Status: status}
}

// IService is the contract the dispatcher invokes. All operations are
// synchronous and thread safe; Transfer is atomic across both accounts.
type IService interface {
	OpenAccount(username, password string, currency proto.Currency, initialBalanceCents int64) Result
	CloseAccount(username, password, accountNo string) Result
	Deposit(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) Result
	Withdraw(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) Result
	QueryBalance(username, password, accountNo string) Result
	Transfer(username, password, fromAccountNo, toAccountNo string, amountCents int64) Result
}

type serviceT struct {
	store *Store
}

func NewService(store *Store) IService {
	return &serviceT{store: store}
}

func (s *serviceT) OpenAccount(username, password string, currency proto.Currency, initialBalanceCents int64) Result {
	if username == "" || password == "" || !currency.IsSupported() || initialBalanceCents < 0 {
		return errorResult(proto.OpStatusBadRequest)
	}
	account := s.store.CreateAccount(username, password, currency, initialBalanceCents)
	if account == nil {
		return errorResult(proto.OpStatusAlreadyExists)
	}
	logrus.Infof("opened account %s for user %s (%s)", account.AccountNo(), username, currency)
	return Result{
		Status:       proto.OpStatusOk,
		AccountNo:    account.AccountNo(),
		BalanceCents: account.Balance(),
		Currency:     account.Currency(),
	}
}

func (s *serviceT) CloseAccount(username, password, accountNo string) Result {
	account, status := s.authenticate(username, password, accountNo)
	if status != proto.OpStatusOk {
		return errorResult(status)
	}
	finalBalance := account.Balance()
	s.store.DeleteAccount(accountNo)
	logrus.Infof("closed account %s", accountNo)
	return Result{
		Status:       proto.OpStatusOk,
		AccountNo:    accountNo,
		BalanceCents: finalBalance,
		Currency:     account.Currency(),
	}
}

func (s *serviceT) Deposit(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) Result {
	if amountCents <= 0 {
		return errorResult(proto.OpStatusBadRequest)
	}
	account, status := s.authenticate(username, password, accountNo)
	if status != proto.OpStatusOk {
		return errorResult(status)
	}
	if currencySet && currency != account.Currency() {
		return errorResult(proto.OpStatusCurrencyMismatch)
	}
	newBalance := account.deposit(amountCents)
	return Result{
		Status:       proto.OpStatusOk,
		AccountNo:    accountNo,
		BalanceCents: newBalance,
		Currency:     account.Currency(),
	}
}

func (s *serviceT) Withdraw(username, password, accountNo string, currency proto.Currency, currencySet bool, amountCents int64) Result {
	if amountCents <= 0 {
		return errorResult(proto.OpStatusBadRequest)
	}
	account, status := s.authenticate(username, password, accountNo)
	if status != proto.OpStatusOk {
		return errorResult(status)
	}
	if currencySet && currency != account.Currency() {
		return errorResult(proto.OpStatusCurrencyMismatch)
	}
	newBalance, ok := account.withdraw(amountCents)
	if !ok {
		return errorResult(proto.OpStatusInsufficientFunds)
	}
	return Result{
		Status:       proto.OpStatusOk,
		AccountNo:    accountNo,
		BalanceCents: newBalance,
		Currency:     account.Currency(),
	}
}

func (s *serviceT) QueryBalance(username, password, accountNo string) Result {
	account, status := s.authenticate(username, password, accountNo)
	if status != proto.OpStatusOk {
		return errorResult(status)
	}
	return Result{
		Status:       proto.OpStatusOk,
		AccountNo:    accountNo,
		BalanceCents: account.Balance(),
		Currency:     account.Currency(),
	}
}

func (s *serviceT) Transfer(username, password, fromAccountNo, toAccountNo string, amountCents int64) Result {
	if amountCents <= 0 || fromAccountNo == toAccountNo {
		return errorResult(proto.OpStatusBadRequest)
	}
	from, status := s.authenticate(username, password, fromAccountNo)
	if status != proto.OpStatusOk {
		return errorResult(status)
	}
	to := s.store.GetByAccountNo(toAccountNo)
	if to == nil {
		return errorResult(proto.OpStatusNotFound)
	}
	if from.Currency() != to.Currency() {
		return errorResult(proto.OpStatusCurrencyMismatch)
	}

	// lock in accountNo order so concurrent opposite transfers cannot
	// deadlock
	first, second := from, to
	if second.accountNo < first.accountNo {
		first, second = second, first
	}
	first.mtx.Lock()
	second.mtx.Lock()
	defer second.mtx.Unlock()
	defer first.mtx.Unlock()

	if from.balance < amountCents {
		return errorResult(proto.OpStatusInsufficientFunds)
	}
	from.balance -= amountCents
	to.balance += amountCents
	logrus.Infof("transferred %d cents %s -> %s", amountCents, fromAccountNo, toAccountNo)
	return Result{
		Status:           proto.OpStatusOk,
		AccountNo:        fromAccountNo,
		BalanceCents:     from.balance,
		DestBalanceCents: to.balance,
		Currency:         from.currency,
	}
}

func (s *serviceT) authenticate(username, password, accountNo string) (*Account, proto.OpStatus) {
	if username == "" || password == "" || accountNo == "" {
		return nil, proto.OpStatusBadRequest
	}
	account := s.store.GetByAccountNo(accountNo)
	if account == nil {
		return nil, proto.OpStatusNotFound
	}
	if account.Username() != username || !account.verifyPassword(password) {
		return nil, proto.OpStatusAuthFail
	}
	return account, proto.OpStatusOk
}
