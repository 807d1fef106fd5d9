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

// Package fs implements the database interface on a local directory.
//
// Every room keeps its snapshot in "<room>-snapshot.bin", a plain text
// extract next to it in "<room>-markdown.txt", and one file per log entry in
// the "<room>-updates" directory. Files are written to a temporary name and
// renamed into place, so a reader sees either the old or the new content.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	gotime "time"

	"github.com/yorkie-team/relay/pkg/document/key"
	relayerrors "github.com/yorkie-team/relay/pkg/errors"
	"github.com/yorkie-team/relay/pkg/locker"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
)

const (
	snapshotSuffix = "-snapshot.bin"
	markdownSuffix = "-markdown.txt"
	updatesSuffix  = "-updates"
	updateExt      = ".bin"
	tempPrefix     = ".tmp-"
)

// ErrInvalidRoomKey is returned when a room key cannot be used as a file
// name.
var ErrInvalidRoomKey = relayerrors.InvalidArgument("room key is not a valid file name").WithCode("ErrInvalidRoomKey")

// DB is a database that keeps rooms in files.
type DB struct {
	config *Config
	locks  *locker.Locker
}

// Dial creates the directory of the given config if needed and returns a DB
// on it.
func Dial(conf *Config) (*DB, error) {
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", conf.Dir, err)
	}

	logging.DefaultLogger().Infof("FS store opened, Dir: %s", conf.Dir)

	return &DB{
		config: conf,
		locks:  locker.New(),
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
	if err := validateRoomKey(roomKey); err != nil {
		return nil, nil, err
	}

	unlock := d.lock(roomKey)
	defer unlock()

	snapshot, err := d.readSnapshot(roomKey)
	if err != nil {
		return nil, nil, err
	}

	var from int64
	if snapshot != nil {
		from = snapshot.Seq
	}

	seqs, err := d.readSeqs(roomKey)
	if err != nil {
		return nil, nil, err
	}

	var updates []*database.UpdateInfo
	for _, seq := range seqs {
		if seq <= from {
			continue
		}

		data, err := os.ReadFile(d.updatePath(roomKey, seq))
		if err != nil {
			return nil, nil, unavailable(fmt.Sprintf("read update %s/%d", roomKey, seq), err)
		}

		info := &database.UpdateInfo{RoomKey: roomKey, Seq: seq}
		if err := decodeUpdate(data, info); err != nil {
			return nil, nil, fmt.Errorf("update %s/%d: %w", roomKey, seq, err)
		}
		updates = append(updates, info)
	}

	return snapshot, updates, nil
}

// AppendUpdate appends the given update to the log of its room.
func (d *DB) AppendUpdate(_ context.Context, info *database.UpdateInfo) error {
	if err := validateRoomKey(info.RoomKey); err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		return err
	}

	unlock := d.lock(info.RoomKey)
	defer unlock()

	path := d.updatePath(info.RoomKey, info.Seq)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("append %s/%d: %w", info.RoomKey, info.Seq, database.ErrUpdateAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return unavailable(fmt.Sprintf("append %s/%d", info.RoomKey, info.Seq), err)
	}

	if err := os.MkdirAll(d.updatesDir(info.RoomKey), 0o755); err != nil {
		return unavailable(fmt.Sprintf("append %s/%d", info.RoomKey, info.Seq), err)
	}

	if err := writeFile(path, encodeUpdate(info)); err != nil {
		return unavailable(fmt.Sprintf("append %s/%d", info.RoomKey, info.Seq), err)
	}

	return nil
}

// CompactRoom replaces the snapshot of the room and deletes the log entries
// it folds. Entries left behind by a crash in between are skipped by
// LoadRoom and removed by the next compaction.
func (d *DB) CompactRoom(_ context.Context, snapshot *database.SnapshotInfo) error {
	if err := validateRoomKey(snapshot.RoomKey); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}

	unlock := d.lock(snapshot.RoomKey)
	defer unlock()

	if err := writeFile(d.snapshotPath(snapshot.RoomKey), encodeSnapshot(snapshot)); err != nil {
		return unavailable("compact "+snapshot.RoomKey.String(), err)
	}

	if err := writeFile(d.markdownPath(snapshot.RoomKey), []byte(snapshot.Text)); err != nil {
		logging.DefaultLogger().Warnf("write text of %s: %v", snapshot.RoomKey, err)
	}

	seqs, err := d.readSeqs(snapshot.RoomKey)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		if seq > snapshot.Seq {
			break
		}
		if err := os.Remove(d.updatePath(snapshot.RoomKey, seq)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return unavailable(fmt.Sprintf("delete update %s/%d", snapshot.RoomKey, seq), err)
		}
	}

	return nil
}

// DeleteRoom deletes every file of the room.
func (d *DB) DeleteRoom(_ context.Context, roomKey key.Key) error {
	if err := validateRoomKey(roomKey); err != nil {
		return err
	}

	unlock := d.lock(roomKey)
	defer unlock()

	return d.deleteRoom(roomKey)
}

// FindRoomsAboveThreshold returns the rooms having at least threshold log
// entries.
func (d *DB) FindRoomsAboveThreshold(_ context.Context, threshold int) ([]key.Key, error) {
	if threshold < 1 {
		threshold = 1
	}

	roomKeys, err := d.roomKeys()
	if err != nil {
		return nil, err
	}

	var found []key.Key
	for _, roomKey := range roomKeys {
		seqs, err := d.readSeqs(roomKey)
		if err != nil {
			return nil, err
		}
		if len(seqs) >= threshold {
			found = append(found, roomKey)
		}
	}
	return found, nil
}

// PurgeOlderThan deletes the rooms whose newest record was written before
// the cutoff.
func (d *DB) PurgeOlderThan(ctx context.Context, cutoff gotime.Time) ([]key.Key, error) {
	infos, err := d.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var purged []key.Key
	for _, info := range infos {
		if !info.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := d.purgeRoom(info.Key, cutoff); err != nil {
			return purged, err
		}
		purged = append(purged, info.Key)
	}

	return purged, nil
}

// ListRooms returns a summary of every stored room.
func (d *DB) ListRooms(_ context.Context) ([]*database.RoomInfo, error) {
	roomKeys, err := d.roomKeys()
	if err != nil {
		return nil, err
	}

	var infos []*database.RoomInfo
	for _, roomKey := range roomKeys {
		info, err := d.roomInfo(roomKey)
		if err != nil {
			return nil, err
		}
		if info.SnapshotSeq == 0 && info.Updates == 0 && info.UpdatedAt.IsZero() {
			continue
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (d *DB) purgeRoom(roomKey key.Key, cutoff gotime.Time) error {
	unlock := d.lock(roomKey)
	defer unlock()

	// An append may have landed since the room was listed.
	info, err := d.roomInfo(roomKey)
	if err != nil {
		return err
	}
	if !info.UpdatedAt.Before(cutoff) {
		return nil
	}

	return d.deleteRoom(roomKey)
}

func (d *DB) roomInfo(roomKey key.Key) (*database.RoomInfo, error) {
	info := &database.RoomInfo{Key: roomKey}

	snapshot, err := d.readSnapshot(roomKey)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		info.ObserveSnapshot(snapshot)
	}

	seqs, err := d.readSeqs(roomKey)
	if err != nil {
		return nil, err
	}
	for _, seq := range seqs {
		data, err := os.ReadFile(d.updatePath(roomKey, seq))
		if err != nil {
			return nil, unavailable(fmt.Sprintf("read update %s/%d", roomKey, seq), err)
		}
		createdAt, err := decodeUpdateTime(data)
		if err != nil {
			return nil, fmt.Errorf("update %s/%d: %w", roomKey, seq, err)
		}
		info.Observe(&database.UpdateInfo{RoomKey: roomKey, Seq: seq, CreatedAt: createdAt})
	}

	return info, nil
}

func (d *DB) deleteRoom(roomKey key.Key) error {
	for _, path := range []string{d.snapshotPath(roomKey), d.markdownPath(roomKey)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return unavailable("delete "+roomKey.String(), err)
		}
	}
	if err := os.RemoveAll(d.updatesDir(roomKey)); err != nil {
		return unavailable("delete "+roomKey.String(), err)
	}
	return nil
}

func (d *DB) readSnapshot(roomKey key.Key) (*database.SnapshotInfo, error) {
	data, err := os.ReadFile(d.snapshotPath(roomKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("read snapshot of "+roomKey.String(), err)
	}

	snapshot := &database.SnapshotInfo{RoomKey: roomKey}
	if err := decodeSnapshot(data, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", roomKey, err)
	}

	text, err := os.ReadFile(d.markdownPath(roomKey))
	if err == nil {
		snapshot.Text = string(text)
	}

	return snapshot, nil
}

// readSeqs returns the sequence numbers of the log of the room in ascending
// order.
func (d *DB) readSeqs(roomKey key.Key) ([]int64, error) {
	entries, err := os.ReadDir(d.updatesDir(roomKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("list updates of "+roomKey.String(), err)
	}

	var seqs []int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, updateExt) {
			continue
		}

		seq, err := strconv.ParseInt(strings.TrimSuffix(name, updateExt), 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}

	sort.Slice(seqs, func(i, j int) bool {
		return seqs[i] < seqs[j]
	})
	return seqs, nil
}

// roomKeys returns the keys of every room with a file in the directory.
func (d *DB) roomKeys() ([]key.Key, error) {
	entries, err := os.ReadDir(d.config.Dir)
	if err != nil {
		return nil, unavailable("list "+d.config.Dir, err)
	}

	seen := make(map[key.Key]bool)
	var roomKeys []key.Key
	for _, entry := range entries {
		name := entry.Name()

		var roomKey key.Key
		switch {
		case strings.HasPrefix(name, tempPrefix):
			continue
		case entry.IsDir() && strings.HasSuffix(name, updatesSuffix):
			roomKey = key.Key(strings.TrimSuffix(name, updatesSuffix))
		case !entry.IsDir() && strings.HasSuffix(name, snapshotSuffix):
			roomKey = key.Key(strings.TrimSuffix(name, snapshotSuffix))
		default:
			continue
		}

		if !seen[roomKey] {
			seen[roomKey] = true
			roomKeys = append(roomKeys, roomKey)
		}
	}

	sort.Slice(roomKeys, func(i, j int) bool {
		return roomKeys[i] < roomKeys[j]
	})
	return roomKeys, nil
}

func (d *DB) lock(roomKey key.Key) func() {
	d.locks.Lock(roomKey.String())
	return func() {
		if err := d.locks.Unlock(roomKey.String()); err != nil {
			logging.DefaultLogger().Error(err)
		}
	}
}

func (d *DB) snapshotPath(roomKey key.Key) string {
	return filepath.Join(d.config.Dir, roomKey.String()+snapshotSuffix)
}

func (d *DB) markdownPath(roomKey key.Key) string {
	return filepath.Join(d.config.Dir, roomKey.String()+markdownSuffix)
}

func (d *DB) updatesDir(roomKey key.Key) string {
	return filepath.Join(d.config.Dir, roomKey.String()+updatesSuffix)
}

func (d *DB) updatePath(roomKey key.Key, seq int64) string {
	return filepath.Join(d.updatesDir(roomKey), fmt.Sprintf("%020d%s", seq, updateExt))
}

// writeFile writes data to a temporary file in the same directory and
// renames it over path.
func writeFile(path string, data []byte) error {
	dir, name := filepath.Split(path)
	file, err := os.CreateTemp(dir, tempPrefix+name+"-*")
	if err != nil {
		return err
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

func validateRoomKey(roomKey key.Key) error {
	name := roomKey.String()
	if name == "" || name == "." || name == ".." ||
		strings.HasPrefix(name, tempPrefix) ||
		strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%q: %w", name, ErrInvalidRoomKey)
	}
	return nil
}

func unavailable(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, database.ErrStoreUnavailable, err)
}
