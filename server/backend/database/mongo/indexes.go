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

package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// ColSnapshots represents the snapshots collection in the database.
	ColSnapshots = "snapshots"
	// ColUpdates represents the updates collection in the database.
	ColUpdates = "updates"
)

// Collections represents the list of all collections in the database.
var Collections = []string{
	ColSnapshots,
	ColUpdates,
}

type collectionInfo struct {
	name    string
	indexes []mongo.IndexModel
}

// Below are names and indexes information of Collections that stores rooms.
var collectionInfos = []collectionInfo{
	{
		name: ColSnapshots,
		indexes: []mongo.IndexModel{{
			Keys:    bson.D{{Key: "room_key", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		}, {
			Keys: bson.D{{Key: "created_at", Value: int32(1)}},
		}},
	},
	{
		name: ColUpdates,
		indexes: []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "room_key", Value: int32(1)},
				{Key: "seq", Value: int32(1)},
			},
			Options: options.Index().SetUnique(true),
		}, {
			Keys: bson.D{{Key: "created_at", Value: int32(1)}},
		}},
	},
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, info := range collectionInfos {
		_, err := db.Collection(info.name).Indexes().CreateMany(ctx, info.indexes)
		if err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
	}
	return nil
}
