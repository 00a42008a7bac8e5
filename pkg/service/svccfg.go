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

package service

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"ubank/pkg/cache"
	"ubank/pkg/io"
	"ubank/pkg/util"
)

var DefaultConfig = Config{
	Listener: io.ListenerConfig{
		Addr: ":8888",
	},
	CacheTTL:         util.Duration{Duration: cache.DefaultTTL},
	StateLogInterval: util.Duration{Duration: 10 * time.Second},
	LogLevel:         "info",
}

type Config struct {
	Listener           io.ListenerConfig
	RequestLossPercent float64
	ReplyLossPercent   float64
	CacheTTL           util.Duration
	StateLogInterval   util.Duration
	LogLevel           string
}

func (cfg *Config) SetDefaultIfNotDefined() {
	cfg.Listener.SetDefaultIfNotDefined()
	if cfg.CacheTTL.Duration == 0 {
		cfg.CacheTTL = DefaultConfig.CacheTTL
	}
	if cfg.StateLogInterval.Duration == 0 {
		cfg.StateLogInterval = DefaultConfig.StateLogInterval
	}
	if len(cfg.LogLevel) == 0 {
		cfg.LogLevel = DefaultConfig.LogLevel
	}
}

func (cfg *Config) Validate() error {
	if cfg.RequestLossPercent < 0 || cfg.RequestLossPercent > 100 {
		return fmt.Errorf("request loss %v%% out of range [0,100]", cfg.RequestLossPercent)
	}
	if cfg.ReplyLossPercent < 0 || cfg.ReplyLossPercent > 100 {
		return fmt.Errorf("reply loss %v%% out of range [0,100]", cfg.ReplyLossPercent)
	}
	return nil
}

// LoadConfig reads a TOML configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaultIfNotDefined()
	return cfg, nil
}
