/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server provides the relay server which is the main entry point of
// the relay. The server is responsible for starting the RPC server that
// relays rooms and the profiling server.
package server

import (
	"context"
	gosync "sync"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/profiling"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
	"github.com/yorkie-team/relay/server/rooms"
	"github.com/yorkie-team/relay/server/rpc"
)

// Relay is a server of the relay.
// The server receives updates from connections, persists them, and
// propagates them to the other connections of the same room.
type Relay struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Relay.
func New(conf *Config) (*Relay, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Compaction,
		conf.Housekeeping,
		conf.Store(),
		metrics,
	)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Relay{
		conf:            conf,
		backend:         be,
		rpcServer:       rpc.NewServer(conf.RPC, be),
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (r *Relay) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Shutdown shuts down this relay. Connections are closed first, then every
// room is flushed to the store before the store is closed.
func (r *Relay) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)

	ctx, cancel := context.WithTimeout(context.Background(), r.backend.Config.ParseStoreTimeout())
	defer cancel()
	err := r.backend.Shutdown(ctx)

	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	close(r.shutdownCh)
	r.shutdown = true
	if err != nil {
		logging.DefaultLogger().Errorf("shutdown: %v", err)
		return err
	}
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Relay) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *Relay) RPCAddr() string {
	return r.conf.RPCAddr()
}

// Room returns the live room of the given key, if any. It is used for
// testing.
func (r *Relay) Room(roomKey string) (*rooms.Room, bool) {
	return r.backend.Rooms.Find(key.Key(roomKey))
}

// Backend returns the backend of the relay. It is used for testing.
func (r *Relay) Backend() *backend.Backend {
	return r.backend
}
