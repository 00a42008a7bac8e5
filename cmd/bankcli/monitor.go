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
	"fmt"
	"time"

	"github.com/urfave/cli"

	"ubank/pkg/client"
)

const (
	kDefaultMonitorTTL      = 60 * time.Second
	kDefaultMonitorDuration = 120 * time.Second
)

// runMonitor registers for callbacks and then listens for account update
// notifications until the duration elapses. The registration lives on the
// same socket the server saw the REGISTER_CALLBACK from.
func runMonitor(c *cli.Context) error {
	server, err := serverAddr(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	clientId, err := optionalUint32(c, 2, 0)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ttl, err := secondsArg(c, 3, kDefaultMonitorTTL)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	duration, err := secondsArg(c, 4, kDefaultMonitorDuration)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cl, err := client.New(client.Config{Server: server, ClientId: clientId})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer cl.Close()

	if err := cl.RegisterCallback(uint32(ttl / time.Second)); err != nil {
		return cli.NewExitError(fmt.Sprintf("register: %v", err), 1)
	}
	fmt.Printf("monitor %d registered (ttl=%v), listening for %v\n", cl.ClientId(), ttl, duration)

	n, err := cl.ListenCallbacks(duration, printCallback)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("monitor done, received %d callbacks\n", n)

	if err := cl.UnregisterCallback(); err != nil {
		fmt.Printf("unregister failed: %v\n", err)
	}
	return nil
}
