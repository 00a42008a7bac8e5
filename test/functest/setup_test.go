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

package functest

import (
	"os"
	"testing"

	"ubank/pkg/io"
	"ubank/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize("warning", "functest")
	os.Exit(m.Run())
}

// serviceListenerConfig binds each test server to an ephemeral loopback
// port so tests can run in parallel with whatever else owns 8888.
func serviceListenerConfig() io.ListenerConfig {
	return io.ListenerConfig{Addr: "127.0.0.1:0"}
}
