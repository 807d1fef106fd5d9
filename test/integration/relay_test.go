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

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/protocol"
	"github.com/yorkie-team/relay/test/helper"
)

const waitFor = 5 * time.Second

func TestRelay(t *testing.T) {
	r := helper.TestServer(t, helper.TestConfig())

	t.Run("health check test", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", r.RPCAddr()))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("late joiner receives only new updates test", func(t *testing.T) {
		roomKey := helper.TestRoomKey(t)
		a := helper.SyncedClient(t, r, roomKey)
		a.Set("k1", []byte("u1"))
		assert.Eventually(t, func() bool {
			room, ok := r.Room(roomKey.String())
			return ok && room.Seq() == 1
		}, waitFor, 10*time.Millisecond)

		b := helper.SyncedClient(t, r, roomKey)
		value, ok := b.Get("k1")
		require.True(t, ok)
		assert.Equal(t, "u1", string(value))

		a.Set("k2", []byte("u2"))
		assert.Eventually(t, func() bool {
			_, ok := b.Get("k2")
			return ok
		}, waitFor, 10*time.Millisecond)

		received := b.ReceivedUpdates()
		require.Len(t, received, 1)
		only := document.New()
		require.NoError(t, only.ApplyUpdate(received[0], "test"))
		assert.Equal(t, []string{"k2"}, only.Keys())
		assert.Empty(t, a.ReceivedUpdates())
	})

	t.Run("concurrent edits converge test", func(t *testing.T) {
		roomKey := helper.TestRoomKey(t)
		a := helper.SyncedClient(t, r, roomKey)
		b := helper.SyncedClient(t, r, roomKey)
		c := helper.SyncedClient(t, r, roomKey)

		for i := 0; i < 10; i++ {
			a.Set("shared", []byte(fmt.Sprintf("a%d", i)))
			b.Set("shared", []byte(fmt.Sprintf("b%d", i)))
			c.Set(fmt.Sprintf("c%d", i), []byte("c"))
		}
		b.Delete("c0")

		room, ok := r.Room(roomKey.String())
		require.True(t, ok)
		assert.Eventually(t, func() bool {
			return room.Seq() == 31
		}, waitFor, 10*time.Millisecond)
		assert.Eventually(t, func() bool {
			text := room.Text()
			return a.Text() == text && b.Text() == text && c.Text() == text
		}, waitFor, 10*time.Millisecond)
		_, ok = a.Get("c0")
		assert.False(t, ok)
	})

	t.Run("presence test", func(t *testing.T) {
		roomKey := helper.TestRoomKey(t)
		a := helper.SyncedClient(t, r, roomKey)
		b := helper.SyncedClient(t, r, roomKey)

		require.NoError(t, a.SetPresence(json.RawMessage(`{"cursor":1}`)))
		assert.Eventually(t, func() bool {
			_, ok := b.Presence()[a.PresenceID()]
			return ok
		}, waitFor, 10*time.Millisecond)

		c := helper.SyncedClient(t, r, roomKey)
		assert.Eventually(t, func() bool {
			state, ok := c.Presence()[a.PresenceID()]
			return ok && string(state) == `{"cursor":1}`
		}, waitFor, 10*time.Millisecond)

		require.NoError(t, a.Close())
		assert.Eventually(t, func() bool {
			_, okB := b.Presence()[a.PresenceID()]
			_, okC := c.Presence()[a.PresenceID()]
			return !okB && !okC
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("malformed frame keeps connection test", func(t *testing.T) {
		roomKey := helper.TestRoomKey(t)
		b := helper.SyncedClient(t, r, roomKey)

		conn, resp, err := websocket.DefaultDialer.Dial(helper.RoomURL(r, roomKey), nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		defer func() { _ = conn.Close() }()

		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x07}))
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeUpdate([]byte{0x0a, 0x09})))

		doc := document.New()
		var update []byte
		doc.OnUpdate(func(u []byte, _ document.Origin) { update = u })
		doc.Set("raw", []byte("ok"))
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeUpdate(update)))

		assert.Eventually(t, func() bool {
			value, ok := b.Get("raw")
			return ok && string(value) == "ok"
		}, waitFor, 10*time.Millisecond)
		assert.Zero(t, b.CloseCode())
	})

	t.Run("rooms are isolated test", func(t *testing.T) {
		a := helper.SyncedClient(t, r, helper.TestRoomKey(t, "a"))
		b := helper.SyncedClient(t, r, helper.TestRoomKey(t, "b"))

		a.Set("only-a", []byte("1"))
		assert.Eventually(t, func() bool {
			room, ok := r.Room(helper.TestRoomKey(t, "a").String())
			return ok && room.Seq() == 1
		}, waitFor, 10*time.Millisecond)

		ctx := context.Background()
		_, updates, err := r.Backend().DB.LoadRoom(ctx, helper.TestRoomKey(t, "b"))
		require.NoError(t, err)
		assert.Empty(t, updates)
		_, ok := b.Get("only-a")
		assert.False(t, ok)
	})
}
