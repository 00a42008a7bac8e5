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

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"ubank/pkg/client"
	"ubank/pkg/proto"
)

type shellT struct {
	cli      client.IClient
	username string
	password string
}

func runShell(c *cli.Context) error {
	server, err := serverAddr(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	clientId, err := optionalUint32(c, 2, 0)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	semantics := "AMO"
	if c.NArg() >= 4 {
		semantics = strings.ToUpper(c.Args().Get(3))
		if _, ok := proto.ParseSemantics(semantics); !ok {
			return cli.NewExitError("semantics must be AMO or ALO", 1)
		}
	}

	cl, err := client.New(client.Config{
		Server:    server,
		ClientId:  clientId,
		Semantics: semantics,
	})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer cl.Close()
	cl.SetCallbackHandler(printCallback)

	sh := &shellT{cli: cl}
	fmt.Printf("connected to %s as client %d (%s semantics)\n", server, cl.ClientId(), semantics)
	fmt.Println("type 'help' for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" {
			break
		}
		if err := sh.dispatch(words); err != nil {
			fmt.Println("error:", err)
		}
	}
	fmt.Println(cl.StatsSummary())
	return nil
}

func (sh *shellT) dispatch(words []string) error {
	switch words[0] {
	case "help":
		sh.printHelp()
		return nil
	case "login":
		if len(words) != 3 {
			return fmt.Errorf("usage: login <username> <password>")
		}
		sh.username, sh.password = words[1], words[2]
		fmt.Printf("using credentials for %s\n", sh.username)
		return nil
	case "open":
		return sh.open(words)
	case "close":
		return sh.close(words)
	case "deposit":
		return sh.move(words, true)
	case "withdraw":
		return sh.move(words, false)
	case "balance":
		return sh.balance(words)
	case "transfer":
		return sh.transfer(words)
	case "register":
		return sh.register(words)
	case "unregister":
		return sh.cli.UnregisterCallback()
	case "stats":
		fmt.Println(sh.cli.StatsSummary())
		return nil
	}
	return fmt.Errorf("unknown command %q, type 'help'", words[0])
}

func (sh *shellT) requireLogin() error {
	if sh.username == "" {
		return fmt.Errorf("login first: login <username> <password>")
	}
	return nil
}

func (sh *shellT) open(words []string) error {
	if err := sh.requireLogin(); err != nil {
		return err
	}
	if len(words) < 2 || len(words) > 3 {
		return fmt.Errorf("usage: open <currency> [initialBalanceCents]")
	}
	currency, ok := proto.ParseCurrency(strings.ToUpper(words[1]))
	if !ok {
		return fmt.Errorf("unknown currency %q", words[1])
	}
	var initial int64
	if len(words) == 3 {
		var err error
		if initial, err = strconv.ParseInt(words[2], 10, 64); err != nil {
			return fmt.Errorf("invalid amount: %s", words[2])
		}
	}
	res, err := sh.cli.OpenAccount(sh.username, sh.password, currency, initial)
	if err != nil {
		return err
	}
	fmt.Printf("opened %s with balance %s\n", res.AccountNo, formatCents(res.BalanceCents))
	return nil
}

func (sh *shellT) close(words []string) error {
	if err := sh.requireLogin(); err != nil {
		return err
	}
	if len(words) != 2 {
		return fmt.Errorf("usage: close <accountNo>")
	}
	balance, err := sh.cli.CloseAccount(sh.username, sh.password, words[1])
	if err != nil {
		return err
	}
	fmt.Printf("closed %s, final balance %s\n", words[1], formatCents(balance))
	return nil
}

func (sh *shellT) move(words []string, isDeposit bool) error {
	if err := sh.requireLogin(); err != nil {
		return err
	}
	if len(words) < 3 || len(words) > 4 {
		return fmt.Errorf("usage: %s <accountNo> <amountCents> [currency]", words[0])
	}
	amount, err := strconv.ParseInt(words[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %s", words[2])
	}
	var opts []client.IOption
	if len(words) == 4 {
		currency, ok := proto.ParseCurrency(strings.ToUpper(words[3]))
		if !ok {
			return fmt.Errorf("unknown currency %q", words[3])
		}
		opts = append(opts, client.WithCurrency(currency))
	}
	var balance int64
	if isDeposit {
		balance, err = sh.cli.Deposit(sh.username, sh.password, words[1], amount, opts...)
	} else {
		balance, err = sh.cli.Withdraw(sh.username, sh.password, words[1], amount, opts...)
	}
	if err != nil {
		return err
	}
	fmt.Printf("new balance %s\n", formatCents(balance))
	return nil
}

func (sh *shellT) balance(words []string) error {
	if err := sh.requireLogin(); err != nil {
		return err
	}
	if len(words) != 2 {
		return fmt.Errorf("usage: balance <accountNo>")
	}
	balance, currency, err := sh.cli.QueryBalance(sh.username, sh.password, words[1])
	if err != nil {
		return err
	}
	fmt.Printf("balance %s %s\n", formatCents(balance), currency)
	return nil
}

func (sh *shellT) transfer(words []string) error {
	if err := sh.requireLogin(); err != nil {
		return err
	}
	if len(words) != 4 {
		return fmt.Errorf("usage: transfer <fromAccountNo> <toAccountNo> <amountCents>")
	}
	amount, err := strconv.ParseInt(words[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %s", words[3])
	}
	balance, err := sh.cli.Transfer(sh.username, sh.password, words[1], words[2], amount)
	if err != nil {
		return err
	}
	fmt.Printf("new balance %s\n", formatCents(balance))
	return nil
}

func (sh *shellT) register(words []string) error {
	if len(words) != 2 {
		return fmt.Errorf("usage: register <ttlSeconds>")
	}
	ttl, err := strconv.ParseUint(words[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid ttl: %s", words[1])
	}
	if err := sh.cli.RegisterCallback(uint32(ttl)); err != nil {
		return err
	}
	fmt.Printf("registered for callbacks, ttl=%ds\n", ttl)
	return nil
}

func (sh *shellT) printHelp() {
	fmt.Println(`commands:
  login <username> <password>
  open <currency> [initialBalanceCents]
  close <accountNo>
  deposit <accountNo> <amountCents> [currency]
  withdraw <accountNo> <amountCents> [currency]
  balance <accountNo>
  transfer <from> <to> <amountCents>
  register <ttlSeconds>
  unregister
  stats
  quit`)
}
