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

package client

import (
	"errors"
	"time"

	"ubank/pkg/proto"
	"ubank/pkg/util"
)

type Duration = util.Duration

const (
	kDefaultInitialTimeout = 500 * time.Millisecond
	kDefaultMaxRetries     = 5
)

type RetryConfig struct {
	InitialTimeout Duration
	MaxRetries     int
}

type Config struct {
	Server    string
	ClientId  uint32
	Semantics string // "AMO" (default) or "ALO"
	Checksum  bool
	Retry     RetryConfig
}

var defaultRetryConfig = RetryConfig{
	InitialTimeout: Duration{Duration: kDefaultInitialTimeout},
	MaxRetries:     kDefaultMaxRetries,
}

func (cfg *Config) SetDefaultIfNotDefined() {
	if cfg.Retry.InitialTimeout.Duration == 0 {
		cfg.Retry.InitialTimeout = defaultRetryConfig.InitialTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = defaultRetryConfig.MaxRetries
	}
	if len(cfg.Semantics) == 0 {
		cfg.Semantics = "AMO"
	}
}

func (cfg *Config) validate() error {
	if len(cfg.Server) == 0 {
		return errors.New("client config: server address not specified")
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("client config: negative retry count")
	}
	if _, ok := proto.ParseSemantics(cfg.Semantics); !ok {
		return errors.New("client config: semantics must be AMO or ALO")
	}
	return nil
}

func (cfg *Config) defaultSemantics() proto.Semantics {
	s, _ := proto.ParseSemantics(cfg.Semantics)
	return s
}
