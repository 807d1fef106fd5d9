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

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"
	"sort"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// LoadRoom returns the snapshot and the remaining log entries of the room.
func (d *DB) LoadRoom(
	_ context.Context,
	roomKey key.Key,
) (*database.SnapshotInfo, []*database.UpdateInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var snapshot *database.SnapshotInfo
	raw, err := txn.First(tblSnapshots, "id", roomKey.String())
	if err != nil {
		return nil, nil, fmt.Errorf("find snapshot of %s: %w", roomKey, err)
	}
	if raw != nil {
		snapshot = raw.(*database.SnapshotInfo).DeepCopy()
	}

	var from int64 = 1
	if snapshot != nil {
		from = snapshot.Seq + 1
	}

	iterator, err := txn.LowerBound(tblUpdates, "id", roomKey.String(), from)
	if err != nil {
		return nil, nil, fmt.Errorf("find updates of %s: %w", roomKey, err)
	}

	var updates []*database.UpdateInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		info := raw.(*database.UpdateInfo)
		if info.RoomKey != roomKey {
			break
		}
		updates = append(updates, info.DeepCopy())
	}

	return snapshot, updates, nil
}

// AppendUpdate appends the given update to the log of its room.
func (d *DB) AppendUpdate(_ context.Context, info *database.UpdateInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblUpdates, "id", info.RoomKey.String(), info.Seq)
	if err != nil {
		return fmt.Errorf("find update %s/%d: %w", info.RoomKey, info.Seq, err)
	}
	if raw != nil {
		return fmt.Errorf("append %s/%d: %w", info.RoomKey, info.Seq, database.ErrUpdateAlreadyExists)
	}

	if err := txn.Insert(tblUpdates, info.DeepCopy()); err != nil {
		return fmt.Errorf("append %s/%d: %w", info.RoomKey, info.Seq, err)
	}

	txn.Commit()
	return nil
}

// CompactRoom replaces the snapshot of the room and deletes the log entries
// it folds, in one transaction.
func (d *DB) CompactRoom(_ context.Context, snapshot *database.SnapshotInfo) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblSnapshots, snapshot.DeepCopy()); err != nil {
		return fmt.Errorf("compact %s: %w", snapshot.RoomKey, err)
	}

	iterator, err := txn.LowerBound(tblUpdates, "id", snapshot.RoomKey.String(), int64(0))
	if err != nil {
		return fmt.Errorf("compact %s: %w", snapshot.RoomKey, err)
	}

	var folded []*database.UpdateInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		info := raw.(*database.UpdateInfo)
		if info.RoomKey != snapshot.RoomKey || info.Seq > snapshot.Seq {
			break
		}
		folded = append(folded, info)
	}

	for _, info := range folded {
		if err := txn.Delete(tblUpdates, info); err != nil {
			return fmt.Errorf("compact %s: %w", snapshot.RoomKey, err)
		}
	}

	txn.Commit()
	return nil
}

// DeleteRoom deletes the snapshot and the log of the room.
func (d *DB) DeleteRoom(_ context.Context, roomKey key.Key) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := deleteRoom(txn, roomKey); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// FindRoomsAboveThreshold returns the rooms having at least threshold log
// entries.
func (d *DB) FindRoomsAboveThreshold(_ context.Context, threshold int) ([]key.Key, error) {
	if threshold < 1 {
		threshold = 1
	}

	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.Get(tblUpdates, "id")
	if err != nil {
		return nil, fmt.Errorf("find rooms above %d: %w", threshold, err)
	}

	var roomKeys []key.Key
	var current key.Key
	count := 0
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		info := raw.(*database.UpdateInfo)
		if info.RoomKey != current {
			current = info.RoomKey
			count = 0
		}

		count++
		if count == threshold {
			roomKeys = append(roomKeys, current)
		}
	}

	return roomKeys, nil
}

// PurgeOlderThan deletes the rooms whose newest record was written before
// the cutoff.
func (d *DB) PurgeOlderThan(_ context.Context, cutoff gotime.Time) ([]key.Key, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	infos, err := listRooms(txn)
	if err != nil {
		return nil, err
	}

	var purged []key.Key
	for _, info := range infos {
		if !info.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := deleteRoom(txn, info.Key); err != nil {
			return nil, err
		}
		purged = append(purged, info.Key)
	}

	txn.Commit()
	return purged, nil
}

// ListRooms returns a summary of every stored room.
func (d *DB) ListRooms(_ context.Context) ([]*database.RoomInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	return listRooms(txn)
}

func listRooms(txn *memdb.Txn) ([]*database.RoomInfo, error) {
	rooms := make(map[key.Key]*database.RoomInfo)
	roomOf := func(k key.Key) *database.RoomInfo {
		info, ok := rooms[k]
		if !ok {
			info = &database.RoomInfo{Key: k}
			rooms[k] = info
		}
		return info
	}

	snapshots, err := txn.Get(tblSnapshots, "id")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	for raw := snapshots.Next(); raw != nil; raw = snapshots.Next() {
		snapshot := raw.(*database.SnapshotInfo)
		roomOf(snapshot.RoomKey).ObserveSnapshot(snapshot)
	}

	updates, err := txn.Get(tblUpdates, "id")
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	for raw := updates.Next(); raw != nil; raw = updates.Next() {
		update := raw.(*database.UpdateInfo)
		roomOf(update.RoomKey).Observe(update)
	}

	infos := make([]*database.RoomInfo, 0, len(rooms))
	for _, info := range rooms {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})

	return infos, nil
}

func deleteRoom(txn *memdb.Txn, roomKey key.Key) error {
	if _, err := txn.DeleteAll(tblSnapshots, "id", roomKey.String()); err != nil {
		return fmt.Errorf("delete snapshot of %s: %w", roomKey, err)
	}
	if _, err := txn.DeleteAll(tblUpdates, "room_key", roomKey.String()); err != nil {
		return fmt.Errorf("delete updates of %s: %w", roomKey, err)
	}
	return nil
}
