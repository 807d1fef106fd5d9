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

// Package testcases contains testcases for database. It is used by database
// implementations to test their own implementations with the same testcases.
package testcases

import (
	"context"
	"fmt"
	"testing"
	gotime "time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
)

// roomKeyOf returns a room key unique to the running test, so that the
// testcases can share one database, even across runs.
func roomKeyOf(t *testing.T) key.Key {
	return key.Key(fmt.Sprintf("%s-%s", key.FromPath(t.Name()), xid.New()))
}

func appendUpdates(t *testing.T, db database.Database, roomKey key.Key, from, to int64, at gotime.Time) {
	for seq := from; seq <= to; seq++ {
		info := database.NewUpdateInfo(roomKey, seq, []byte(fmt.Sprintf("update-%d", seq)))
		info.CreatedAt = at
		assert.NoError(t, db.AppendUpdate(context.Background(), info))
	}
}

func seqsOf(updates []*database.UpdateInfo) []int64 {
	seqs := make([]int64, 0, len(updates))
	for _, update := range updates {
		seqs = append(seqs, update.Seq)
	}
	return seqs
}

// RunLoadRoomTest runs the LoadRoom and AppendUpdate tests for the given db.
func RunLoadRoomTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("load a room that was never stored test", func(t *testing.T) {
		snapshot, updates, err := db.LoadRoom(ctx, roomKeyOf(t))
		assert.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.Empty(t, updates)
	})

	t.Run("load appended updates in order test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 3, gotime.Now())

		snapshot, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.Equal(t, []int64{1, 2, 3}, seqsOf(updates))
		assert.Equal(t, []byte("update-2"), updates[1].Payload)
		assert.Equal(t, len("update-2"), updates[1].Size)
		assert.Equal(t, roomKey, updates[0].RoomKey)
	})

	t.Run("rooms do not share logs test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		otherKey := roomKey + "-other"
		appendUpdates(t, db, roomKey, 1, 2, gotime.Now())
		appendUpdates(t, db, otherKey, 1, 1, gotime.Now())

		_, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Len(t, updates, 2)

		_, updates, err = db.LoadRoom(ctx, otherKey)
		assert.NoError(t, err)
		assert.Len(t, updates, 1)
	})

	t.Run("append the same sequence twice test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 1, gotime.Now())

		err := db.AppendUpdate(ctx, database.NewUpdateInfo(roomKey, 1, []byte("again")))
		assert.ErrorIs(t, err, database.ErrUpdateAlreadyExists)

		_, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Len(t, updates, 1)
		assert.Equal(t, []byte("update-1"), updates[0].Payload)
	})

	t.Run("append an invalid sequence test", func(t *testing.T) {
		err := db.AppendUpdate(ctx, database.NewUpdateInfo(roomKeyOf(t), 0, []byte("zero")))
		assert.ErrorIs(t, err, database.ErrInvalidSeq)
	})
}

// RunCompactRoomTest runs the CompactRoom tests for the given db.
func RunCompactRoomTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("compact folds the log up to the snapshot test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 5, gotime.Now())

		snapshot := database.NewSnapshotInfo(roomKey, 3, []byte("state-3"), []byte("sv-3"), "a: 1\n")
		assert.NoError(t, db.CompactRoom(ctx, snapshot))

		loaded, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.NotNil(t, loaded)
		assert.Equal(t, int64(3), loaded.Seq)
		assert.Equal(t, []byte("state-3"), loaded.State)
		assert.Equal(t, []byte("sv-3"), loaded.StateVector)
		assert.Equal(t, "a: 1\n", loaded.Text)
		assert.Equal(t, []int64{4, 5}, seqsOf(updates))
	})

	t.Run("compact replaces the previous snapshot test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 2, gotime.Now())
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 2, []byte("state-2"), nil, "")))

		appendUpdates(t, db, roomKey, 3, 4, gotime.Now())
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 4, []byte("state-4"), nil, "")))

		loaded, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), loaded.Seq)
		assert.Equal(t, []byte("state-4"), loaded.State)
		assert.Empty(t, updates)

		infos, err := db.ListRooms(ctx)
		assert.NoError(t, err)
		info := findRoom(infos, roomKey)
		assert.NotNil(t, info)
		assert.Equal(t, 0, info.Updates)
		assert.Equal(t, int64(4), info.SnapshotSeq)
	})

	t.Run("compact a room without a log test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 0, []byte("empty"), nil, "")))

		loaded, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), loaded.Seq)
		assert.Empty(t, updates)
	})

	t.Run("appends after a compaction are kept test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 2, gotime.Now())
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 2, []byte("state-2"), nil, "")))
		appendUpdates(t, db, roomKey, 3, 3, gotime.Now())

		_, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Equal(t, []int64{3}, seqsOf(updates))
	})
}

// RunDeleteRoomTest runs the DeleteRoom tests for the given db.
func RunDeleteRoomTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("delete a stored room test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		appendUpdates(t, db, roomKey, 1, 2, gotime.Now())
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 1, []byte("state-1"), nil, "")))

		assert.NoError(t, db.DeleteRoom(ctx, roomKey))

		snapshot, updates, err := db.LoadRoom(ctx, roomKey)
		assert.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.Empty(t, updates)

		infos, err := db.ListRooms(ctx)
		assert.NoError(t, err)
		assert.Nil(t, findRoom(infos, roomKey))
	})

	t.Run("delete a room that was never stored test", func(t *testing.T) {
		assert.NoError(t, db.DeleteRoom(ctx, roomKeyOf(t)))
	})
}

// RunFindRoomsAboveThresholdTest runs the FindRoomsAboveThreshold tests for
// the given db.
func RunFindRoomsAboveThresholdTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("find rooms with long logs test", func(t *testing.T) {
		long := roomKeyOf(t)
		short := long + "-short"
		exact := long + "-exact"
		appendUpdates(t, db, long, 1, 6, gotime.Now())
		appendUpdates(t, db, short, 1, 2, gotime.Now())
		appendUpdates(t, db, exact, 1, 5, gotime.Now())

		roomKeys, err := db.FindRoomsAboveThreshold(ctx, 5)
		assert.NoError(t, err)
		assert.Contains(t, roomKeys, long)
		assert.Contains(t, roomKeys, exact)
		assert.NotContains(t, roomKeys, short)

		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(long, 6, []byte("state"), nil, "")))
		roomKeys, err = db.FindRoomsAboveThreshold(ctx, 5)
		assert.NoError(t, err)
		assert.NotContains(t, roomKeys, long)
	})
}

// RunPurgeOlderThanTest runs the PurgeOlderThan tests for the given db.
func RunPurgeOlderThanTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("purge rooms idle since the cutoff test", func(t *testing.T) {
		now := gotime.Now()
		old := now.Add(-48 * gotime.Hour)

		stale := roomKeyOf(t)
		appendUpdates(t, db, stale, 1, 2, old)
		snapshot := database.NewSnapshotInfo(stale, 1, []byte("state"), nil, "")
		snapshot.CreatedAt = old
		assert.NoError(t, db.CompactRoom(ctx, snapshot))

		mixed := stale + "-mixed"
		appendUpdates(t, db, mixed, 1, 1, old)
		appendUpdates(t, db, mixed, 2, 2, now)

		fresh := stale + "-fresh"
		appendUpdates(t, db, fresh, 1, 1, now)

		purged, err := db.PurgeOlderThan(ctx, now.Add(-24*gotime.Hour))
		assert.NoError(t, err)
		assert.Contains(t, purged, stale)
		assert.NotContains(t, purged, mixed)
		assert.NotContains(t, purged, fresh)

		loaded, updates, err := db.LoadRoom(ctx, stale)
		assert.NoError(t, err)
		assert.Nil(t, loaded)
		assert.Empty(t, updates)

		_, updates, err = db.LoadRoom(ctx, mixed)
		assert.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, seqsOf(updates))
	})
}

// RunListRoomsTest runs the ListRooms tests for the given db.
func RunListRoomsTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("list stored rooms test", func(t *testing.T) {
		roomKey := roomKeyOf(t)
		before := gotime.Now().Add(-gotime.Minute)
		appendUpdates(t, db, roomKey, 1, 4, gotime.Now())
		assert.NoError(t, db.CompactRoom(ctx, database.NewSnapshotInfo(roomKey, 2, []byte("state"), nil, "")))

		infos, err := db.ListRooms(ctx)
		assert.NoError(t, err)
		for i := 1; i < len(infos); i++ {
			assert.Less(t, infos[i-1].Key.String(), infos[i].Key.String())
		}

		info := findRoom(infos, roomKey)
		assert.NotNil(t, info)
		assert.Equal(t, int64(2), info.SnapshotSeq)
		assert.Equal(t, len("state"), info.SnapshotSize)
		assert.Equal(t, 2, info.Updates)
		assert.Equal(t, int64(4), info.LastSeq)
		assert.True(t, info.UpdatedAt.After(before))
	})
}

// RunAll runs every testcase for the given db.
func RunAll(t *testing.T, db database.Database) {
	t.Run("LoadRoom test", func(t *testing.T) {
		RunLoadRoomTest(t, db)
	})

	t.Run("CompactRoom test", func(t *testing.T) {
		RunCompactRoomTest(t, db)
	})

	t.Run("DeleteRoom test", func(t *testing.T) {
		RunDeleteRoomTest(t, db)
	})

	t.Run("FindRoomsAboveThreshold test", func(t *testing.T) {
		RunFindRoomsAboveThresholdTest(t, db)
	})

	t.Run("PurgeOlderThan test", func(t *testing.T) {
		RunPurgeOlderThanTest(t, db)
	})

	t.Run("ListRooms test", func(t *testing.T) {
		RunListRoomsTest(t, db)
	})
}

func findRoom(infos []*database.RoomInfo, roomKey key.Key) *database.RoomInfo {
	for _, info := range infos {
		if info.Key == roomKey {
			return info
		}
	}
	return nil
}
