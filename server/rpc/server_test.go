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

package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	relayerrors "github.com/yorkie-team/relay/pkg/errors"
	"github.com/yorkie-team/relay/pkg/presence"
	"github.com/yorkie-team/relay/pkg/protocol"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/backend/housekeeping"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
	"github.com/yorkie-team/relay/server/rpc"
)

const waitFor = 3 * time.Second

type testServer struct {
	be  *backend.Backend
	srv *rpc.Server
	ts  *httptest.Server
}

func newTestServer(t *testing.T, conf rpc.Config) *testServer {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(&backend.Config{
		PersistenceMode:  "log",
		SnapshotDebounce: "1s",
		FlushInterval:    "1h",
		StoreTimeout:     "1s",
		Hostname:         "test",
	}, &compaction.Config{
		Threshold:     100,
		SweepInterval: "1h",
	}, &housekeeping.Config{
		RetentionPeriod:   "0s",
		RetentionInterval: "24h",
	}, nil, metrics)
	require.NoError(t, err)
	require.NoError(t, be.Start())

	srv := rpc.NewServer(&conf, be)
	ts := httptest.NewServer(srv.Handler())

	s := &testServer{be: be, srv: srv, ts: ts}
	t.Cleanup(s.shutdown)
	return s
}

func (s *testServer) shutdown() {
	s.srv.Shutdown(true)
	s.ts.Close()
	_ = s.be.Shutdown(context.Background())
}

func defaultConf() rpc.Config {
	return rpc.Config{
		Port:           11101,
		MaxMessageSize: 4 << 20,
		PingInterval:   "30s",
		SendQueueSize:  64,
	}
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T, path string) *peer {
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	p := &peer{t: t, conn: conn}
	step1 := p.next()
	require.Equal(t, protocol.MessageSync, step1.Type)
	require.Equal(t, protocol.SyncStep1, step1.SyncType)
	return p
}

func (p *peer) send(frame []byte) {
	require.NoError(p.t, p.conn.WriteMessage(websocket.BinaryMessage, frame))
}

func (p *peer) next() *protocol.Frame {
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	frame, err := protocol.DecodeFrame(data)
	require.NoError(p.t, err)
	return frame
}

// silent asserts that nothing arrives for a while. The connection cannot be
// read again afterwards.
func (p *peer) silent() {
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := p.conn.ReadMessage()
	assert.Error(p.t, err, "unexpected frame %v", data)
}

// closeCode reads until the connection is closed and returns the code.
func (p *peer) closeCode() int {
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, _, err := p.conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(p.t, err, &closeErr)
		return closeErr.Code
	}
}

func newUpdate(t *testing.T, k, v string) []byte {
	var u []byte
	doc := document.New()
	doc.OnUpdate(func(b []byte, _ document.Origin) { u = b })
	doc.Set(k, []byte(v))
	require.NotNil(t, u)
	return u
}

func TestServer(t *testing.T) {
	t.Run("health check test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())

		resp, err := http.Get(s.ts.URL + "/healthz")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("relay without echo test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())
		a := s.dial(t, "/doc1")
		b := s.dial(t, "/doc1")
		other := s.dial(t, "/doc2")

		u1 := newUpdate(t, "k1", "v1")
		a.send(protocol.EncodeUpdate(u1))

		frame := b.next()
		assert.Equal(t, protocol.SyncUpdate, frame.SyncType)
		assert.Equal(t, u1, frame.Payload)

		u2 := newUpdate(t, "k2", "v2")
		b.send(protocol.EncodeUpdate(u2))

		frame = a.next()
		assert.Equal(t, protocol.SyncUpdate, frame.SyncType)
		assert.Equal(t, u2, frame.Payload)

		a.silent()
		b.silent()
		other.silent()
	})

	t.Run("step 1 answered with step 2 test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())
		a := s.dial(t, "/doc")
		a.send(protocol.EncodeUpdate(newUpdate(t, "k", "v")))
		assert.Eventually(t, func() bool {
			room, ok := s.be.Rooms.Find("doc")
			return ok && room.Seq() == 1
		}, waitFor, 10*time.Millisecond)

		b := s.dial(t, "/doc")
		local := document.New()
		b.send(protocol.EncodeSyncStep1(local.EncodeStateVector()))

		frame := b.next()
		require.Equal(t, protocol.SyncStep2, frame.SyncType)
		require.NoError(t, local.ApplyUpdate(frame.Payload, "remote"))
		value, ok := local.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "v", string(value))
	})

	t.Run("malformed frame keeps connection test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())
		a := s.dial(t, "/doc")
		b := s.dial(t, "/doc")

		a.send([]byte{0xff, 0xff})
		a.send(protocol.EncodeUpdate([]byte{0x0a, 0x05, 0x01}))
		u := newUpdate(t, "k", "v")
		a.send(protocol.EncodeUpdate(u))

		frame := b.next()
		assert.Equal(t, u, frame.Payload)
	})

	t.Run("presence removed on leave test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())
		a := s.dial(t, "/doc")
		b := s.dial(t, "/doc")

		aw := presence.New(7)
		require.NoError(t, aw.SetLocalState(json.RawMessage(`{"name":"a"}`)))
		a.send(protocol.EncodeAwareness(aw.EncodeUpdate([]presence.ClientID{7})))

		frame := b.next()
		require.Equal(t, protocol.MessageAwareness, frame.Type)
		entries, err := presence.DecodeUpdate(frame.Payload)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, presence.ClientID(7), entries[0].ClientID)
		assert.NotNil(t, entries[0].State)

		require.NoError(t, a.conn.Close())

		frame = b.next()
		require.Equal(t, protocol.MessageAwareness, frame.Type)
		entries, err = presence.DecodeUpdate(frame.Payload)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].State)
	})

	t.Run("message too big test", func(t *testing.T) {
		conf := defaultConf()
		conf.MaxMessageSize = 64
		s := newTestServer(t, conf)
		a := s.dial(t, "/doc")

		a.send(make([]byte, 128))
		assert.Equal(t, relayerrors.CloseMessageTooBig, a.closeCode())
	})

	t.Run("shutdown closes sessions test", func(t *testing.T) {
		s := newTestServer(t, defaultConf())
		a := s.dial(t, "/doc")
		u := newUpdate(t, "k", "v")
		a.send(protocol.EncodeUpdate(u))

		assert.Eventually(t, func() bool {
			room, ok := s.be.Rooms.Find("doc")
			return ok && room.Seq() == 1
		}, waitFor, 10*time.Millisecond)

		go s.srv.Shutdown(true)
		assert.Equal(t, relayerrors.CloseGoingAway, a.closeCode())

		assert.Eventually(t, func() bool {
			_, updates, err := s.be.DB.LoadRoom(context.Background(), "doc")
			return err == nil && len(updates) == 1
		}, waitFor, 10*time.Millisecond)
	})
}
