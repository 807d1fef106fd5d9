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

package client_test

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

	"github.com/yorkie-team/relay/client"
	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/presence"
	"github.com/yorkie-team/relay/pkg/protocol"
)

const waitFor = 3 * time.Second

// fakeRoom answers the handshake with a document holding "k": "v" and
// forwards every frame it receives but the handshake.
func fakeRoom(t *testing.T, received chan<- *protocol.Frame) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		doc := document.New()
		doc.Set("k", []byte("v"))
		if err := conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeSyncStep1(doc.EncodeStateVector())); err != nil {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := protocol.DecodeFrame(data)
			if err != nil {
				continue
			}
			reply, err := protocol.HandleSync(doc, frame, "peer")
			if err == nil && reply != nil {
				_ = conn.WriteMessage(websocket.BinaryMessage, reply)
				continue
			}
			if frame.Type == protocol.MessageSync && frame.SyncType == protocol.SyncStep2 {
				continue
			}
			received <- frame
		}
	}))
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("sync handshake test", func(t *testing.T) {
		received := make(chan *protocol.Frame, 8)
		ts := fakeRoom(t, received)
		defer ts.Close()

		c, err := client.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/room")
		require.NoError(t, err)
		defer func() { _ = c.Close() }()

		syncCtx, cancel := context.WithTimeout(ctx, waitFor)
		defer cancel()
		require.NoError(t, c.Synced(syncCtx))

		value, ok := c.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "v", string(value))
		assert.Empty(t, c.ReceivedUpdates())
	})

	t.Run("local edits sent test", func(t *testing.T) {
		received := make(chan *protocol.Frame, 8)
		ts := fakeRoom(t, received)
		defer ts.Close()

		c, err := client.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/room", client.WithPresenceID(42))
		require.NoError(t, err)
		defer func() { _ = c.Close() }()

		c.Set("a", []byte("1"))
		select {
		case frame := <-received:
			assert.Equal(t, protocol.SyncUpdate, frame.SyncType)
			remote := document.New()
			require.NoError(t, remote.ApplyUpdate(frame.Payload, "relay"))
			value, ok := remote.Get("a")
			assert.True(t, ok)
			assert.Equal(t, "1", string(value))
		case <-time.After(waitFor):
			t.Fatal("update not received")
		}

		require.NoError(t, c.SetPresence(json.RawMessage(`{"name":"a"}`)))
		select {
		case frame := <-received:
			assert.Equal(t, protocol.MessageAwareness, frame.Type)
			entries, err := presence.DecodeUpdate(frame.Payload)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, presence.ClientID(42), entries[0].ClientID)
		case <-time.After(waitFor):
			t.Fatal("presence not received")
		}
	})

	t.Run("dial failure test", func(t *testing.T) {
		_, err := client.Dial(ctx, "ws://127.0.0.1:1/room", client.WithHandshakeTimeout(time.Second))
		assert.Error(t, err)
	})
}
