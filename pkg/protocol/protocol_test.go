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

package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/protocol"
)

func TestFrames(t *testing.T) {
	t.Run("encode and decode sync frames", func(t *testing.T) {
		for _, tt := range []struct {
			encoded  []byte
			syncType protocol.SyncType
		}{
			{protocol.EncodeSyncStep1([]byte{1, 2}), protocol.SyncStep1},
			{protocol.EncodeSyncStep2([]byte{1, 2}), protocol.SyncStep2},
			{protocol.EncodeUpdate([]byte{1, 2}), protocol.SyncUpdate},
		} {
			frame, err := protocol.DecodeFrame(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, protocol.MessageSync, frame.Type)
			assert.Equal(t, tt.syncType, frame.SyncType)
			assert.Equal(t, []byte{1, 2}, frame.Payload)
		}
	})

	t.Run("wire layout", func(t *testing.T) {
		assert.Equal(t, []byte{0x00, 0x02, 0x01, 0x07}, protocol.EncodeUpdate([]byte{7}))
		assert.Equal(t, []byte{0x01, 0x01, 0x07}, protocol.EncodeAwareness([]byte{7}))
	})

	t.Run("decode awareness frame", func(t *testing.T) {
		frame, err := protocol.DecodeFrame(protocol.EncodeAwareness([]byte{9}))
		require.NoError(t, err)
		assert.Equal(t, protocol.MessageAwareness, frame.Type)
		assert.Equal(t, []byte{9}, frame.Payload)
	})

	t.Run("malformed frames", func(t *testing.T) {
		for _, b := range [][]byte{
			nil,
			{0x00},
			{0x00, 0x07, 0x00},
			{0x02, 0x00},
			{0x00, 0x02, 0x05, 0x01},
			{0x01},
		} {
			_, err := protocol.DecodeFrame(b)
			assert.ErrorIs(t, err, protocol.ErrMalformedFrame, "%v", b)
		}
	})
}

func TestHandleSync(t *testing.T) {
	server := document.New()
	server.Set("title", []byte("relay"))

	client := document.New()
	client.Set("body", []byte("text"))

	t.Run("step 1 is answered with the missing updates", func(t *testing.T) {
		frame, err := protocol.DecodeFrame(protocol.EncodeSyncStep1(client.EncodeStateVector()))
		require.NoError(t, err)

		reply, err := protocol.HandleSync(server, frame, "conn-1")
		require.NoError(t, err)

		replyFrame, err := protocol.DecodeFrame(reply)
		require.NoError(t, err)
		assert.Equal(t, protocol.SyncStep2, replyFrame.SyncType)

		_, err = protocol.HandleSync(client, replyFrame, "server")
		require.NoError(t, err)
		title, ok := client.Get("title")
		assert.True(t, ok)
		assert.Equal(t, "relay", string(title))
	})

	t.Run("updates are applied with the origin", func(t *testing.T) {
		var origin document.Origin
		unsubscribe := server.OnUpdate(func(_ []byte, o document.Origin) { origin = o })
		defer unsubscribe()

		frame, err := protocol.DecodeFrame(protocol.EncodeUpdate(client.EncodeStateAsUpdate()))
		require.NoError(t, err)
		reply, err := protocol.HandleSync(server, frame, "conn-1")
		require.NoError(t, err)
		assert.Nil(t, reply)
		assert.Equal(t, document.Origin("conn-1"), origin)
		assert.Equal(t, client.EncodeStateAsUpdate(), server.EncodeStateAsUpdate())
	})

	t.Run("malformed payloads are reported", func(t *testing.T) {
		frame, err := protocol.DecodeFrame(protocol.EncodeUpdate([]byte{0xff}))
		require.NoError(t, err)
		_, err = protocol.HandleSync(server, frame, "conn-1")
		assert.ErrorIs(t, err, document.ErrMalformedUpdate)
	})
}
