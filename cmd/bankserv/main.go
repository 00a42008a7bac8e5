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

// bankserv runs the UDP banking server.
//
//	bankserv [--config FILE] [--log-level LEVEL] <port> [requestLoss%] [replyLoss%]
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli"

	"ubank/pkg/logging"
	"ubank/pkg/service"
)

func main() {
	app := cli.NewApp()
	app.Name = "bankserv"
	app.Usage = "UDP banking server with selectable invocation semantics"
	app.ArgsUsage = "<port> [requestLoss%] [replyLoss%]"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file",
		},
		cli.StringFlag{
			Name:  "log-level, l",
			Usage: "log level (debug, info, warning, error)",
		},
	}
	app.Action = runServer

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	cfg := service.DefaultConfig
	if path := c.String("config"); len(path) > 0 {
		var err error
		if cfg, err = service.LoadConfig(path); err != nil {
			return cli.NewExitError(fmt.Sprintf("reading config %s: %v", path, err), 1)
		}
	}

	args := c.Args()
	if len(args) > 3 {
		return cli.NewExitError("usage: bankserv <port> [requestLoss%] [replyLoss%]", 1)
	}
	if len(args) >= 1 {
		port, err := strconv.Atoi(args.Get(0))
		if err != nil || port < 1 || port > 65535 {
			return cli.NewExitError(fmt.Sprintf("invalid port: %s", args.Get(0)), 1)
		}
		cfg.Listener.Addr = fmt.Sprintf(":%d", port)
	}
	if len(args) >= 2 {
		loss, err := parseLossPercent(args.Get(1))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		cfg.RequestLossPercent = loss
	}
	if len(args) >= 3 {
		loss, err := parseLossPercent(args.Get(2))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		cfg.ReplyLossPercent = loss
	}
	if lvl := c.String("log-level"); len(lvl) > 0 {
		cfg.LogLevel = lvl
	}

	logging.Initialize(cfg.LogLevel, "bankserv")

	svc, err := service.New(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	svc.Run()
	return nil
}

func parseLossPercent(s string) (float64, error) {
	loss, err := strconv.ParseFloat(s, 64)
	if err != nil || loss < 0 || loss > 100 {
		return 0, fmt.Errorf("invalid loss percentage: %s (must be 0-100)", s)
	}
	return loss, nil
}
