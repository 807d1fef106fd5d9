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

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gotime "time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
)

// Client is a client that connects to Mongo DB and reads or saves rooms.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	clientOptions := options.Client().ApplyURI(conf.ConnectionURI)
	if conf.MonitoringEnabled {
		threshold, err := gotime.ParseDuration(conf.MonitoringSlowQueryThreshold)
		if err != nil {
			return nil, fmt.Errorf("parse slow query threshold: %w", err)
		}

		clientOptions.SetMonitor(newCommandMonitor(threshold))
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.RelayDatabase)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.RelayDatabase)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// LoadRoom returns the snapshot and the remaining log entries of the room.
func (c *Client) LoadRoom(
	ctx context.Context,
	roomKey key.Key,
) (*database.SnapshotInfo, []*database.UpdateInfo, error) {
	var snapshot *database.SnapshotInfo
	result := c.collection(ColSnapshots).FindOne(ctx, bson.M{"room_key": roomKey})
	if err := result.Err(); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, unavailable("find snapshot of "+roomKey.String(), err)
	} else if err == nil {
		snapshot = &database.SnapshotInfo{}
		if err := result.Decode(snapshot); err != nil {
			return nil, nil, fmt.Errorf("decode snapshot of %s: %w", roomKey, err)
		}
	}

	var from int64
	if snapshot != nil {
		from = snapshot.Seq
	}

	cursor, err := c.collection(ColUpdates).Find(ctx, bson.M{
		"room_key": roomKey,
		"seq":      bson.M{"$gt": from},
	}, options.Find().SetSort(bson.M{"seq": 1}))
	if err != nil {
		return nil, nil, unavailable("find updates of "+roomKey.String(), err)
	}

	var updates []*database.UpdateInfo
	if err := cursor.All(ctx, &updates); err != nil {
		return nil, nil, unavailable("fetch updates of "+roomKey.String(), err)
	}

	return snapshot, updates, nil
}

// AppendUpdate appends the given update to the log of its room.
func (c *Client) AppendUpdate(ctx context.Context, info *database.UpdateInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	if _, err := c.collection(ColUpdates).InsertOne(ctx, info); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("append %s/%d: %w", info.RoomKey, info.Seq, database.ErrUpdateAlreadyExists)
		}
		return unavailable(fmt.Sprintf("append %s/%d", info.RoomKey, info.Seq), err)
	}

	return nil
}

// CompactRoom replaces the snapshot of the room and deletes the log entries
// it folds, in one transaction.
func (c *Client) CompactRoom(ctx context.Context, snapshot *database.SnapshotInfo) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	session, err := c.client.StartSession()
	if err != nil {
		return unavailable("start session", err)
	}
	defer session.EndSession(ctx)

	if _, err := session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := c.collection(ColSnapshots).ReplaceOne(
			sessCtx,
			bson.M{"room_key": snapshot.RoomKey},
			snapshot,
			options.Replace().SetUpsert(true),
		); err != nil {
			return nil, fmt.Errorf("replace snapshot: %w", err)
		}

		if _, err := c.collection(ColUpdates).DeleteMany(sessCtx, bson.M{
			"room_key": snapshot.RoomKey,
			"seq":      bson.M{"$lte": snapshot.Seq},
		}); err != nil {
			return nil, fmt.Errorf("delete folded updates: %w", err)
		}

		return nil, nil
	}); err != nil {
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

	cursor, err := c.collection(ColUpdates).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$room_key", "count": bson.M{"$sum": 1}}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gte": threshold}}}},
	})
	if err != nil {
		return nil, unavailable(fmt.Sprintf("find rooms above %d", threshold), err)
	}

	var results []struct {
		RoomKey key.Key `bson:"_id"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, unavailable(fmt.Sprintf("fetch rooms above %d", threshold), err)
	}

	roomKeys := make([]key.Key, 0, len(results))
	for _, result := range results {
		roomKeys = append(roomKeys, result.RoomKey)
	}
	return roomKeys, nil
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
	rooms := make(map[key.Key]*database.RoomInfo)
	roomOf := func(k key.Key) *database.RoomInfo {
		info, ok := rooms[k]
		if !ok {
			info = &database.RoomInfo{Key: k}
			rooms[k] = info
		}
		return info
	}

	cursor, err := c.collection(ColSnapshots).Find(
		ctx,
		bson.M{},
		options.Find().SetProjection(bson.M{"state": 0, "state_vector": 0, "text": 0}),
	)
	if err != nil {
		return nil, unavailable("list snapshots", err)
	}

	var snapshots []*database.SnapshotInfo
	if err := cursor.All(ctx, &snapshots); err != nil {
		return nil, unavailable("fetch snapshots", err)
	}
	for _, snapshot := range snapshots {
		roomOf(snapshot.RoomKey).ObserveSnapshot(snapshot)
	}

	cursor, err = c.collection(ColUpdates).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":        "$room_key",
			"count":      bson.M{"$sum": 1},
			"last_seq":   bson.M{"$max": "$seq"},
			"updated_at": bson.M{"$max": "$created_at"},
		}}},
	})
	if err != nil {
		return nil, unavailable("list updates", err)
	}

	var groups []struct {
		RoomKey   key.Key     `bson:"_id"`
		Count     int         `bson:"count"`
		LastSeq   int64       `bson:"last_seq"`
		UpdatedAt gotime.Time `bson:"updated_at"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, unavailable("fetch updates", err)
	}
	for _, group := range groups {
		info := roomOf(group.RoomKey)
		info.Updates = group.Count
		if group.LastSeq > info.LastSeq {
			info.LastSeq = group.LastSeq
		}
		if group.UpdatedAt.After(info.UpdatedAt) {
			info.UpdatedAt = group.UpdatedAt
		}
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

func (c *Client) deleteRooms(ctx context.Context, roomKeys []key.Key) error {
	filter := bson.M{"room_key": bson.M{"$in": roomKeys}}

	if _, err := c.collection(ColUpdates).DeleteMany(ctx, filter); err != nil {
		return unavailable("delete updates", err)
	}
	if _, err := c.collection(ColSnapshots).DeleteMany(ctx, filter); err != nil {
		return unavailable("delete snapshots", err)
	}

	return nil
}

func (c *Client) collection(
	name string,
	opts ...*options.CollectionOptions,
) *mongo.Collection {
	return c.client.
		Database(c.config.RelayDatabase).
		Collection(name, opts...)
}

func unavailable(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, database.ErrStoreUnavailable, err)
}
