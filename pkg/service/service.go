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

// Package service assembles the server runtime: account store, banking
// service, reply cache, callback registry, loss simulator, listener and
// state log.
package service

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ubank/pkg/bank"
	"ubank/pkg/cache"
	"ubank/pkg/callback"
	"ubank/pkg/io"
	"ubank/pkg/proc"
	"ubank/pkg/sim"
	"ubank/pkg/stats"
)

type Service struct {
	config   Config
	store    *bank.Store
	bankSvc  bank.IService
	cache    *cache.ReplyCache
	registry *callback.Registry
	lossSim  *sim.Simulator
	proc     *proc.RequestProcessor
	listener *io.UDPListener
	statelog *stats.StateLog

	chSweepDone chan struct{}
	wg          sync.WaitGroup
}

func New(config Config) (*Service, error) {
	config.SetDefaultIfNotDefined()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		config:   config,
		store:    bank.NewStore(),
		cache:    cache.NewReplyCache(config.CacheTTL.Duration),
		registry: callback.NewRegistry(),
		lossSim:  sim.New(),

		chSweepDone: make(chan struct{}),
	}
	s.bankSvc = bank.NewService(s.store)
	s.proc = proc.NewRequestProcessor(s.bankSvc, s.cache, s.registry)

	if config.RequestLossPercent > 0 || config.ReplyLossPercent > 0 {
		if err := s.lossSim.Enable(config.RequestLossPercent/100, config.ReplyLossPercent/100); err != nil {
			return nil, err
		}
		logrus.Infof("packet loss simulation enabled: request=%.0f%% reply=%.0f%%",
			config.RequestLossPercent, config.ReplyLossPercent)
	}

	listener, err := io.NewUDPListener(config.Listener, s.proc, s.lossSim)
	if err != nil {
		return nil, err
	}
	s.listener = listener

	s.statelog = stats.NewStateLog(config.StateLogInterval.Duration, s.cache, s.registry, s.lossSim)
	listener.SetObserver(func(tm time.Duration) {
		s.statelog.Observe(tm, false)
	})
	return s, nil
}

// Start brings the receive loop, the state log and the background cache
// sweep up without blocking.
func (s *Service) Start() {
	s.statelog.Start()
	s.wg.Add(1)
	go s.sweeper()
	go s.listener.Serve()
}

// expired cache entries are already evicted lazily on lookup; the sweep
// bounds memory for keys that are never retried
func (s *Service) sweeper() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cache.TTL())
	defer ticker.Stop()
	for {
		select {
		case <-s.chSweepDone:
			return
		case <-ticker.C:
			if n := s.cache.Sweep(); n > 0 {
				logrus.Debugf("cache sweep evicted %d entries", n)
			}
		}
	}
}

// Stop shuts everything down and writes the final stats the way the
// original server's shutdown hook does.
func (s *Service) Stop() {
	s.listener.Shutdown()
	close(s.chSweepDone)
	s.wg.Wait()
	s.statelog.Stop()
	logrus.Infof("final state: %s %s %s", s.cache, s.registry, s.lossSim)
}

// Run starts the service and blocks until SIGINT/SIGTERM.
func (s *Service) Run() {
	s.Start()
	logrus.Infof("bank server ready on %s", s.Addr())

	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, syscall.SIGINT, syscall.SIGTERM)
	sig := <-chSignal
	logrus.Infof("received %v, shutting down", sig)
	s.Stop()
}

func (s *Service) Addr() *net.UDPAddr {
	return s.listener.Addr()
}

func (s *Service) Store() *bank.Store {
	return s.store
}

func (s *Service) Bank() bank.IService {
	return s.bankSvc
}

func (s *Service) Cache() *cache.ReplyCache {
	return s.cache
}

func (s *Service) Registry() *callback.Registry {
	return s.registry
}

func (s *Service) LossSimulator() *sim.Simulator {
	return s.lossSim
}
