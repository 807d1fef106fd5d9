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

// Package redis implements database interfaces using Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	gotime "time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
)

// Client is a client that connects to Redis and reads or saves rooms.
//
// A room is kept in three hashes: the snapshot, the payloads of the log
// keyed by sequence number, and the creation times of the log entries.
// A set indexes the keys of stored rooms.
type Client struct {
	config *Config
	client *goredis.Client
}

// Dial creates an instance of Client and dials the given Redis.
func Dial(conf *Config) (*Client, error) {
	opts, err := goredis.ParseURL(conf.ConnectionURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logging.DefaultLogger().Infof("Redis connected, Addr: %s, DB: %d", opts.Addr, opts.DB)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// LoadRoom returns the snapshot and the remaining log entries of the room.
func (c *Client) LoadRoom(
	ctx context.Context,
	roomKey key.Key,
) (*database.SnapshotInfo, []*database.UpdateInfo, error) {
	var snapshotCmd, payloadsCmd, createdCmd *goredis.MapStringStringCmd
	if _, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		snapshotCmd = pipe.HGetAll(ctx, c.snapshotKey(roomKey))
		payloadsCmd = pipe.HGetAll(ctx, c.payloadsKey(roomKey))
		createdCmd = pipe.HGetAll(ctx, c.createdKey(roomKey))
		return nil
	}); err != nil {
		return nil, nil, unavailable("load "+roomKey.String(), err)
	}

	snapshot, err := decodeSnapshot(roomKey, snapshotCmd.Val())
	if err != nil {
		return nil, nil, err
	}

	var from int64
	if snapshot != nil {
		from = snapshot.Seq
	}

	created := createdCmd.Val()
	var updates []*database.UpdateInfo
	for field, payload := range payloadsCmd.Val() {
		seq, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("decode seq %q of %s: %w", field, roomKey, err)
		}
		if seq <= from {
			continue
		}

		updates = append(updates, &database.UpdateInfo{
			RoomKey:   roomKey,
			Seq:       seq,
			Payload:   []byte(payload),
			Size:      len(payload),
			CreatedAt: decodeTime(created[field]),
		})
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Seq < updates[j].Seq
	})

	return snapshot, updates, nil
}

// AppendUpdate appends the given update to the log of its room.
func (c *Client) AppendUpdate(ctx context.Context, info *database.UpdateInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	appended, err := appendScript.Run(
		ctx,
		c.client,
		[]string{c.payloadsKey(info.RoomKey), c.createdKey(info.RoomKey), c.roomsKey()},
		info.Seq,
		info.Payload,
		encodeTime(info.CreatedAt),
		info.RoomKey.String(),
	).Int()
	if err != nil {
		return unavailable(fmt.Sprintf("append %s/%d", info.RoomKey, info.Seq), err)
	}
	if appended == 0 {
		return fmt.Errorf("append %s/%d: %w", info.RoomKey, info.Seq, database.ErrUpdateAlreadyExists)
	}

	return nil
}

// CompactRoom replaces the snapshot of the room and deletes the log entries
// it folds, in one script.
func (c *Client) CompactRoom(ctx context.Context, snapshot *database.SnapshotInfo) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	if err := compactScript.Run(
		ctx,
		c.client,
		[]string{
			c.snapshotKey(snapshot.RoomKey),
			c.payloadsKey(snapshot.RoomKey),
			c.createdKey(snapshot.RoomKey),
			c.roomsKey(),
		},
		snapshot.Seq,
		snapshot.State,
		snapshot.StateVector,
		snapshot.Text,
		snapshot.Size,
		encodeTime(snapshot.CreatedAt),
		snapshot.RoomKey.String(),
	).Err(); err != nil {
		return unavailable("compact "+snapshot.RoomKey.String(), err)
	}

	return nil
}

// DeleteRoom deletes the snapshot and the log of the room.
func (c *Client) DeleteRoom(ctx context.Context, roomKey key.Key) error {
	return c.deleteRooms(ctx, []key.Key{roomKey})
}

// FindRoomsAboveThreshold returns the rooms having at least threshold log
// entries.
func (c *Client) FindRoomsAboveThreshold(ctx context.Context, threshold int) ([]key.Key, error) {
	if threshold < 1 {
		threshold = 1
	}

	roomKeys, err := c.roomKeys(ctx)
	if err != nil {
		return nil, err
	}

	lens := make([]*goredis.IntCmd, len(roomKeys))
	if _, err := c.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, roomKey := range roomKeys {
			lens[i] = pipe.HLen(ctx, c.payloadsKey(roomKey))
		}
		return nil
	}); err != nil {
		return nil, unavailable(fmt.Sprintf("find rooms above %d", threshold), err)
	}

	var found []key.Key
	for i, roomKey := range roomKeys {
		if lens[i].Val() >= int64(threshold) {
			found = append(found, roomKey)
		}
	}
	return found, nil
}

// PurgeOlderThan deletes the rooms whose newest record was written before
// the cutoff.
func (c *Client) PurgeOlderThan(ctx context.Context, cutoff gotime.Time) ([]key.Key, error) {
	infos, err := c.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var purged []key.Key
	for _, info := range infos {
		if info.UpdatedAt.Before(cutoff) {
			purged = append(purged, info.Key)
		}
	}

	if len(purged) == 0 {
		return nil, nil
	}

	if err := c.deleteRooms(ctx, purged); err != nil {
		return nil, err
	}
	return purged, nil
}

// ListRooms returns a summary of every stored room.
func (c *Client) ListRooms(ctx context.Context) ([]*database.RoomInfo, error) {
	roomKeys, err := c.roomKeys(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*goredis.SliceCmd, len(roomKeys))
	created := make([]*goredis.MapStringStringCmd, len(roomKeys))
	if _, err := c.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, roomKey := range roomKeys {
			snapshots[i] = pipe.HMGet(ctx, c.snapshotKey(roomKey), "seq", "size", "created_at")
			created[i] = pipe.HGetAll(ctx, c.createdKey(roomKey))
		}
		return nil
	}); err != nil {
		return nil, unavailable("list rooms", err)
	}

	var infos []*database.RoomInfo
	for i, roomKey := range roomKeys {
		info := &database.RoomInfo{Key: roomKey}

		if values := snapshots[i].Val(); len(values) == 3 && values[0] != nil {
			seq, _ := strconv.ParseInt(fmt.Sprint(values[0]), 10, 64)
			size, _ := strconv.Atoi(fmt.Sprint(values[1]))
			info.ObserveSnapshot(&database.SnapshotInfo{
				RoomKey:   roomKey,
				Seq:       seq,
				Size:      size,
				CreatedAt: decodeTime(fmt.Sprint(values[2])),
			})
		}

		for field, at := range created[i].Val() {
			seq, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				continue
			}
			info.Observe(&database.UpdateInfo{RoomKey: roomKey, Seq: seq, CreatedAt: decodeTime(at)})
		}

		if info.SnapshotSeq == 0 && info.Updates == 0 && info.UpdatedAt.IsZero() {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})
	return infos, nil
}

func (c *Client) roomKeys(ctx context.Context) ([]key.Key, error) {
	members, err := c.client.SMembers(ctx, c.roomsKey()).Result()
	if err != nil {
		return nil, unavailable("list room keys", err)
	}

	roomKeys := make([]key.Key, 0, len(members))
	for _, member := range members {
		roomKeys = append(roomKeys, key.Key(member))
	}
	sort.Slice(roomKeys, func(i, j int) bool {
		return roomKeys[i] < roomKeys[j]
	})
	return roomKeys, nil
}

func (c *Client) deleteRooms(ctx context.Context, roomKeys []key.Key) error {
	if _, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, roomKey := range roomKeys {
			pipe.Del(ctx, c.snapshotKey(roomKey), c.payloadsKey(roomKey), c.createdKey(roomKey))
			pipe.SRem(ctx, c.roomsKey(), roomKey.String())
		}
		return nil
	}); err != nil {
		return unavailable("delete rooms", err)
	}
	return nil
}

func (c *Client) roomsKey() string {
	return c.config.KeyPrefix + "rooms"
}

func (c *Client) snapshotKey(roomKey key.Key) string {
	return c.config.KeyPrefix + "room:" + roomKey.String() + ":snapshot"
}

func (c *Client) payloadsKey(roomKey key.Key) string {
	return c.config.KeyPrefix + "room:" + roomKey.String() + ":payloads"
}

func (c *Client) createdKey(roomKey key.Key) string {
	return c.config.KeyPrefix + "room:" + roomKey.String() + ":created"
}

func decodeSnapshot(roomKey key.Key, fields map[string]string) (*database.SnapshotInfo, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	seq, err := strconv.ParseInt(fields["seq"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot seq of %s: %w", roomKey, err)
	}
	size, err := strconv.Atoi(fields["size"])
	if err != nil {
		return nil, fmt.Errorf("decode snapshot size of %s: %w", roomKey, err)
	}

	return &database.SnapshotInfo{
		RoomKey:     roomKey,
		StateVector: []byte(fields["state_vector"]),
		State:       []byte(fields["state"]),
		Text:        fields["text"],
		Seq:         seq,
		Size:        size,
		CreatedAt:   decodeTime(fields["created_at"]),
	}, nil
}

func encodeTime(t gotime.Time) int64 {
	return t.UnixNano()
}

func decodeTime(value string) gotime.Time {
	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return gotime.Time{}
	}
	return gotime.Unix(0, nanos)
}

func unavailable(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, database.ErrStoreUnavailable, err)
}
