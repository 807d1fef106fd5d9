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


package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/memory"
)

func storeUpdates(t *testing.T, db database.Database, roomKey key.Key, n int) *document.Doc {
	ctx := context.Background()
	doc := document.New()
	seq := int64(0)
	doc.OnUpdate(func(u []byte, _ document.Origin) {
		seq++
		require.NoError(t, db.AppendUpdate(ctx, database.NewUpdateInfo(roomKey, seq, u)))
	})
	for i := 0; i < n; i++ {
		doc.Set(fmt.Sprintf("k%d", i), []byte("v"))
	}
	return doc
}

func TestRoomCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("compact replays the log test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)
		expected := storeUpdates(t, db, "doc", 5)

		snapshot, err := compact(ctx, db, "doc")
		require.NoError(t, err)
		assert.Equal(t, int64(5), snapshot.Seq)
		assert.Equal(t, expected.Text(), snapshot.Text)

		stored, updates, err := db.LoadRoom(ctx, "doc")
		require.NoError(t, err)
		assert.Empty(t, updates)
		assert.Equal(t, expected.EncodeStateAsUpdate(), stored.State)
	})

	t.Run("missing room test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)

		_, err = replay(ctx, db, "nothing")
		assert.ErrorIs(t, err, database.ErrRoomNotFound)
		_, err = compact(ctx, db, "nothing")
		assert.ErrorIs(t, err, database.ErrRoomNotFound)
	})

	t.Run("print rooms test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)
		storeUpdates(t, db, "a", 2)
		storeUpdates(t, db, "b", 3)

		rooms, err := db.ListRooms(ctx)
		require.NoError(t, err)

		var table bytes.Buffer
		require.NoError(t, printRooms(&table, "", rooms))
		assert.Contains(t, table.String(), "LOG ENTRIES")

		var out bytes.Buffer
		require.NoError(t, printRooms(&out, "json", rooms))
		var decoded []*database.RoomInfo
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, key.Key("b"), decoded[1].Key)
		assert.Equal(t, 3, decoded[1].Updates)

		assert.Error(t, printRooms(&out, "xml", rooms))
	})

	t.Run("print room tail test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)
		storeUpdates(t, db, "doc", 4)

		s, err := replay(ctx, db, "doc")
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, printRoom(&out, "yaml", s, 2))
		assert.Len(t, s.Tail, 2)
		assert.Equal(t, int64(3), s.Tail[0].Seq)
		assert.Contains(t, out.String(), "k3: v")
	})

	t.Run("room argument test", func(t *testing.T) {
		assert.NoError(t, roomArg(nil, []string{"doc"}))
		assert.Error(t, roomArg(nil, nil))
		assert.Error(t, roomArg(nil, []string{"a", "b"}))

		err := roomArg(nil, []string{"team/doc"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"team_doc"`)
	})
}
