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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tblSnapshots = "relay_snapshots"
	tblUpdates   = "relay_updates"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + tblSnapshots + ` (
		room_key     TEXT PRIMARY KEY,
		seq          BIGINT NOT NULL,
		state        BYTEA NOT NULL,
		state_vector BYTEA NOT NULL,
		text         TEXT NOT NULL DEFAULT '',
		size         INTEGER NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ` + tblUpdates + ` (
		room_key   TEXT NOT NULL,
		seq        BIGINT NOT NULL,
		payload    BYTEA NOT NULL,
		size       INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (room_key, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS ` + tblSnapshots + `_created_at ON ` + tblSnapshots + ` (created_at)`,
	`CREATE INDEX IF NOT EXISTS ` + tblUpdates + `_created_at ON ` + tblUpdates + ` (created_at)`,
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
