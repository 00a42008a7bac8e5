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

// bankcli is the interactive banking client and the dedicated callback
// monitor.
//
//	bankcli shell <host> <port> [clientId] [AMO|ALO]
//	bankcli monitor <host> <port> [clientId] [ttlSeconds] [durationSeconds]
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"ubank/pkg/logging"
	"ubank/pkg/proto"
)

func main() {
	app := cli.NewApp()
	app.Name = "bankcli"
	app.Usage = "banking client for the UDP bank server"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level, l",
			Value: "warning",
			Usage: "log level (debug, info, warning, error)",
		},
	}
	app.Before = func(c *cli.Context) error {
		logging.Initialize(c.String("log-level"), "bankcli")
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "shell",
			Usage:     "interactive banking shell",
			ArgsUsage: "<host> <port> [clientId] [AMO|ALO]",
			Action:    runShell,
		},
		{
			Name:      "monitor",
			Usage:     "register for callbacks and print account updates",
			ArgsUsage: "<host> <port> [clientId] [ttlSeconds] [durationSeconds]",
			Action:    runMonitor,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverAddr(c *cli.Context) (string, error) {
	if c.NArg() < 2 {
		return "", fmt.Errorf("usage: %s", c.Command.ArgsUsage)
	}
	port, err := strconv.Atoi(c.Args().Get(1))
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid port: %s", c.Args().Get(1))
	}
	return fmt.Sprintf("%s:%d", c.Args().Get(0), port), nil
}

func optionalUint32(c *cli.Context, i int, fallback uint32) (uint32, error) {
	if c.NArg() <= i {
		return fallback, nil
	}
	v, err := strconv.ParseUint(c.Args().Get(i), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", c.Args().Get(i))
	}
	return uint32(v), nil
}

func printCallback(cbk *proto.Message) {
	accountNo, _ := cbk.Payload().AccountNo()
	balance, _ := cbk.Payload().AmountCents()
	fmt.Printf("\n*** ACCOUNT_UPDATE %s balance=%s\n", accountNo, formatCents(balance))
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func secondsArg(c *cli.Context, i int, fallback time.Duration) (time.Duration, error) {
	v, err := optionalUint32(c, i, uint32(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
