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

// Package helper provides helpers for tests that run a relay.
package helper

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/client"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/backend/housekeeping"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/profiling"
	"github.com/yorkie-team/relay/server/rpc"
)

var testStartedAt int64

// Below are the values of the relay config used in the test.
var (
	RPCPort = 21101

	ProfilingPort = 21102

	CompactionThreshold     = 100
	CompactionSweepInterval = 100 * gotime.Millisecond
	FlushInterval           = 100 * gotime.Millisecond
	SnapshotDebounce        = 50 * gotime.Millisecond
	StoreTimeout            = 2 * gotime.Second
	PingInterval            = 5 * gotime.Second
)

func init() {
	testStartedAt = gotime.Now().Unix()
}

// MongoConnectionURI returns the URI of the MongoDB used in tests, or an
// empty string if none is configured.
func MongoConnectionURI() string {
	return os.Getenv("RELAY_TEST_MONGO_URI")
}

// PostgresConnectionURI returns the DSN of the PostgreSQL used in tests, or
// an empty string if none is configured.
func PostgresConnectionURI() string {
	return os.Getenv("RELAY_TEST_POSTGRES_DSN")
}

// TestDBName returns the name of test database with timestamp.
// timestamp is set only once on first call.
func TestDBName() string {
	return fmt.Sprintf("test-%s-%d", server.DefaultMongoRelayDatabase, testStartedAt)
}

var portOffset = 0

// TestConfig returns config for creating a relay instance. The in-memory
// store is used.
func TestConfig() *server.Config {
	portOffset += 10
	return &server.Config{
		RPC: &rpc.Config{
			Port:           RPCPort + portOffset,
			MaxMessageSize: server.DefaultRPCMaxMessageSize,
			PingInterval:   PingInterval.String(),
			SendQueueSize:  server.DefaultRPCSendQueueSize,
		},
		Profiling: &profiling.Config{
			Port: ProfilingPort + portOffset,
		},
		Housekeeping: &housekeeping.Config{
			RetentionPeriod:   "0s",
			RetentionInterval: server.DefaultHousekeepingRetentionInterval.String(),
		},
		Backend: &backend.Config{
			PersistenceMode:  "log",
			SnapshotDebounce: SnapshotDebounce.String(),
			FlushInterval:    FlushInterval.String(),
			StoreTimeout:     StoreTimeout.String(),
		},
		Compaction: &compaction.Config{
			Threshold:     CompactionThreshold,
			SweepInterval: CompactionSweepInterval.String(),
		},
	}
}

// TestServer starts a relay with the given config and shuts it down when
// the test ends.
func TestServer(t testing.TB, conf *server.Config) *server.Relay {
	r, err := server.New(conf)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	require.NoError(t, WaitForServerToStart(r.RPCAddr()))

	t.Cleanup(func() {
		if err := r.Shutdown(true); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})
	return r
}

// TestRoomKey returns a room key derived from the name of the test.
func TestRoomKey(t testing.TB, suffix ...string) key.Key {
	name := t.Name()
	if len(suffix) > 0 {
		name = name + "-" + strings.Join(suffix, "-")
	}
	return key.FromPath(name)
}

// RoomURL returns the WebSocket URL of the room on the given relay.
func RoomURL(r *server.Relay, roomKey key.Key) string {
	return fmt.Sprintf("ws://%s/%s", r.RPCAddr(), roomKey)
}

// SyncedClient connects a client to the room and waits for the handshake.
// The client is closed when the test ends.
func SyncedClient(t testing.TB, r *server.Relay, roomKey key.Key, opts ...client.Option) *client.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*gotime.Second)
	defer cancel()

	c, err := client.Dial(ctx, RoomURL(r, roomKey), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Synced(ctx))
	return c
}

// WaitForServerToStart waits for the server to start.
func WaitForServerToStart(addr string) error {
	maxRetries := 10
	initialDelay := 10 * gotime.Millisecond
	maxDelay := 1 * gotime.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		delay := initialDelay * gotime.Duration(1<<uint(attempt))
		delay = min(delay, maxDelay)

		conn, err := net.DialTimeout("tcp", addr, 1*gotime.Second)
		if err != nil {
			gotime.Sleep(delay)
			continue
		}

		if err := conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}

		return nil
	}

	return fmt.Errorf("timeout for server to start: %s", addr)
}
