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

package presence_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/presence"
)

type recorded struct {
	change presence.Change
	origin document.Origin
}

func record(a *presence.Awareness) *[]recorded {
	var changes []recorded
	a.OnChange(func(change presence.Change, origin document.Origin) {
		changes = append(changes, recorded{change, origin})
	})
	return &changes
}

func TestAwareness(t *testing.T) {
	t.Run("local state propagates to a peer", func(t *testing.T) {
		alice := presence.New(1)
		relay := presence.New(0)
		changes := record(relay)

		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"name":"alice"}`)))
		require.NoError(t, relay.ApplyUpdate(alice.EncodeUpdate([]presence.ClientID{1}), "conn-a"))

		state, ok := relay.State(1)
		assert.True(t, ok)
		assert.JSONEq(t, `{"name":"alice"}`, string(state))
		require.Len(t, *changes, 1)
		assert.Equal(t, []presence.ClientID{1}, (*changes)[0].change.Added)
		assert.Equal(t, document.Origin("conn-a"), (*changes)[0].origin)

		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"name":"alice","cursor":3}`)))
		require.NoError(t, relay.ApplyUpdate(alice.EncodeUpdate([]presence.ClientID{1}), "conn-a"))
		require.Len(t, *changes, 2)
		assert.Equal(t, []presence.ClientID{1}, (*changes)[1].change.Updated)
	})

	t.Run("stale updates are ignored", func(t *testing.T) {
		alice := presence.New(1)
		relay := presence.New(0)

		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"v":1}`)))
		old := alice.EncodeUpdate([]presence.ClientID{1})
		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"v":2}`)))
		require.NoError(t, relay.ApplyUpdate(alice.EncodeUpdate([]presence.ClientID{1}), "conn-a"))

		changes := record(relay)
		require.NoError(t, relay.ApplyUpdate(old, "conn-a"))
		assert.Empty(t, *changes)
		state, _ := relay.State(1)
		assert.JSONEq(t, `{"v":2}`, string(state))
	})

	t.Run("remove states broadcasts null with the same clock", func(t *testing.T) {
		alice := presence.New(1)
		relay := presence.New(0)
		bob := presence.New(2)

		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"name":"alice"}`)))
		update := alice.EncodeUpdate([]presence.ClientID{1})
		require.NoError(t, relay.ApplyUpdate(update, "conn-a"))
		require.NoError(t, bob.ApplyUpdate(update, "conn-a"))

		changes := record(relay)
		relay.RemoveStates([]presence.ClientID{1, 42}, document.OriginSystem)
		require.Len(t, *changes, 1)
		assert.Equal(t, []presence.ClientID{1}, (*changes)[0].change.Removed)
		assert.Equal(t, document.OriginSystem, (*changes)[0].origin)
		assert.Equal(t, 0, relay.Len())

		require.NoError(t, bob.ApplyUpdate(relay.EncodeUpdate([]presence.ClientID{1}), document.OriginSystem))
		_, ok := bob.State(1)
		assert.False(t, ok)
	})

	t.Run("peers cannot remove the local state", func(t *testing.T) {
		alice := presence.New(1)
		require.NoError(t, alice.SetLocalState(json.RawMessage(`{"name":"alice"}`)))

		removal := presence.EncodeEntries([]presence.Entry{{ClientID: 1, Clock: 5}})
		require.NoError(t, alice.ApplyUpdate(removal, "remote"))
		_, ok := alice.State(1)
		assert.True(t, ok)
	})

	t.Run("malformed updates leave the awareness untouched", func(t *testing.T) {
		relay := presence.New(0)
		changes := record(relay)

		for _, update := range [][]byte{
			nil,
			{0x01, 0x01},
			{0x01, 0x01, 0x01, 0x05, 'a', 'b'},
			presence.EncodeEntries([]presence.Entry{{ClientID: 1, Clock: 1, State: json.RawMessage(`{"a":`)}}),
		} {
			assert.ErrorIs(t, relay.ApplyUpdate(update, "conn"), presence.ErrMalformedUpdate)
		}
		assert.Equal(t, 0, relay.Len())
		assert.Empty(t, *changes)

		assert.ErrorIs(t, relay.SetLocalState(json.RawMessage(`{`)), presence.ErrMalformedUpdate)
	})

	t.Run("encode update of all clients", func(t *testing.T) {
		relay := presence.New(0)
		update := presence.EncodeEntries([]presence.Entry{
			{ClientID: 3, Clock: 1, State: json.RawMessage(`{"n":3}`)},
			{ClientID: 2, Clock: 4, State: json.RawMessage(`{"n":2}`)},
		})
		require.NoError(t, relay.ApplyUpdate(update, "conn"))
		assert.Equal(t, []presence.ClientID{2, 3}, relay.Clients())

		entries, err := presence.DecodeUpdate(relay.EncodeUpdate(relay.Clients()))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, presence.ClientID(2), entries[0].ClientID)
		assert.Equal(t, uint64(4), entries[0].Clock)
		assert.JSONEq(t, `{"n":2}`, string(entries[0].State))
	})
}
