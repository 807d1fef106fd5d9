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

// Package postgres implements database interfaces using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gotime "time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
)

// codeUniqueViolation is the SQLSTATE of a unique constraint violation.
const codeUniqueViolation = "23505"

// Client is a client that connects to PostgreSQL and reads or saves rooms.
type Client struct {
	config *Config
	pool   *pgxpool.Pool
}

// Dial creates an instance of Client and dials the given PostgreSQL.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(conf.ConnectionURI)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if conf.MaxConns > 0 {
		poolConfig.MaxConns = conf.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logging.DefaultLogger().Infof(
		"PostgreSQL connected, host: %s, DB: %s",
		poolConfig.ConnConfig.Host,
		poolConfig.ConnConfig.Database,
	)

	return &Client{
		config: conf,
		pool:   pool,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

// LoadRoom returns the snapshot and the remaining log entries of the room.
func (c *Client) LoadRoom(
	ctx context.Context,
	roomKey key.Key,
) (*database.SnapshotInfo, []*database.UpdateInfo, error) {
	snapshot := &database.SnapshotInfo{RoomKey: roomKey}
	err := c.pool.QueryRow(ctx, `
		SELECT seq, state, state_vector, text, size, created_at
		FROM `+tblSnapshots+` WHERE room_key = $1`,
		roomKey.String(),
	).Scan(
		&snapshot.Seq,
		&snapshot.State,
		&snapshot.StateVector,
		&snapshot.Text,
		&snapshot.Size,
		&snapshot.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		snapshot = nil
	} else if err != nil {
		return nil, nil, unavailable("find snapshot of "+roomKey.String(), err)
	}

	var from int64
	if snapshot != nil {
		from = snapshot.Seq
	}

	rows, err := c.pool.Query(ctx, `
		SELECT seq, payload, size, created_at
		FROM `+tblUpdates+` WHERE room_key = $1 AND seq > $2
		ORDER BY seq`,
		roomKey.String(),
		from,
	)
	if err != nil {
		return nil, nil, unavailable("find updates of "+roomKey.String(), err)
	}

	updates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*database.UpdateInfo, error) {
		info := &database.UpdateInfo{RoomKey: roomKey}
		if err := row.Scan(&info.Seq, &info.Payload, &info.Size, &info.CreatedAt); err != nil {
			return nil, err
		}
		return info, nil
	})
	if err != nil {
		return nil, nil, unavailable("fetch updates of "+roomKey.String(), err)
	}

	return snapshot, updates, nil
}

// AppendUpdate appends the given update to the log of its room.
func (c *Client) AppendUpdate(ctx context.Context, info *database.UpdateInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	if _, err := c.pool.Exec(ctx, `
		INSERT INTO `+tblUpdates+` (room_key, seq, payload, size, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		info.RoomKey.String(),
		info.Seq,
		info.Payload,
		info.Size,
		info.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
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

	state, stateVector := snapshot.State, snapshot.StateVector
	if state == nil {
		state = []byte{}
	}
	if stateVector == nil {
		stateVector = []byte{}
	}

	if err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+tblSnapshots+` (room_key, seq, state, state_vector, text, size, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (room_key) DO UPDATE SET
				seq = EXCLUDED.seq,
				state = EXCLUDED.state,
				state_vector = EXCLUDED.state_vector,
				text = EXCLUDED.text,
				size = EXCLUDED.size,
				created_at = EXCLUDED.created_at`,
			snapshot.RoomKey.String(),
			snapshot.Seq,
			state,
			stateVector,
			snapshot.Text,
			snapshot.Size,
			snapshot.CreatedAt,
		); err != nil {
			return fmt.Errorf("replace snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM `+tblUpdates+` WHERE room_key = $1 AND seq <= $2`,
			snapshot.RoomKey.String(),
			snapshot.Seq,
		); err != nil {
			return fmt.Errorf("delete folded updates: %w", err)
		}

		return nil
	}); err != nil {
		return unavailable("compact "+snapshot.RoomKey.String(), err)
	}

	return nil
}

// DeleteRoom deletes the snapshot and the log of the room.
func (c *Client) DeleteRoom(ctx context.Context, roomKey key.Key) error {
	if err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		return deleteRooms(ctx, tx, []string{roomKey.String()})
	}); err != nil {
		return unavailable("delete "+roomKey.String(), err)
	}

	return nil
}

// FindRoomsAboveThreshold returns the rooms having at least threshold log
// entries.
func (c *Client) FindRoomsAboveThreshold(ctx context.Context, threshold int) ([]key.Key, error) {
	if threshold < 1 {
		threshold = 1
	}

	rows, err := c.pool.Query(ctx, `
		SELECT room_key FROM `+tblUpdates+`
		GROUP BY room_key HAVING COUNT(*) >= $1`,
		threshold,
	)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("find rooms above %d", threshold), err)
	}

	roomKeys, err := pgx.CollectRows(rows, scanRoomKey)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("fetch rooms above %d", threshold), err)
	}
	return roomKeys, nil
}

// PurgeOlderThan deletes the rooms whose newest record was written before
// the cutoff.
func (c *Client) PurgeOlderThan(ctx context.Context, cutoff gotime.Time) ([]key.Key, error) {
	var purged []key.Key
	if err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT room_key FROM (
				SELECT room_key, created_at FROM `+tblSnapshots+`
				UNION ALL
				SELECT room_key, created_at FROM `+tblUpdates+`
			) AS records
			GROUP BY room_key HAVING MAX(created_at) < $1`,
			cutoff,
		)
		if err != nil {
			return err
		}

		purged, err = pgx.CollectRows(rows, scanRoomKey)
		if err != nil {
			return err
		}
		if len(purged) == 0 {
			return nil
		}

		roomKeys := make([]string, 0, len(purged))
		for _, roomKey := range purged {
			roomKeys = append(roomKeys, roomKey.String())
		}
		return deleteRooms(ctx, tx, roomKeys)
	}); err != nil {
		return nil, unavailable("purge rooms", err)
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

	rows, err := c.pool.Query(ctx, `SELECT room_key, seq, size, created_at FROM `+tblSnapshots)
	if err != nil {
		return nil, unavailable("list snapshots", err)
	}
	snapshots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*database.SnapshotInfo, error) {
		var roomKey string
		info := &database.SnapshotInfo{}
		if err := row.Scan(&roomKey, &info.Seq, &info.Size, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.RoomKey = key.Key(roomKey)
		return info, nil
	})
	if err != nil {
		return nil, unavailable("fetch snapshots", err)
	}
	for _, snapshot := range snapshots {
		roomOf(snapshot.RoomKey).ObserveSnapshot(snapshot)
	}

	rows, err = c.pool.Query(ctx, `
		SELECT room_key, COUNT(*), MAX(seq), MAX(created_at)
		FROM `+tblUpdates+` GROUP BY room_key`)
	if err != nil {
		return nil, unavailable("list updates", err)
	}
	var (
		roomKey   string
		count     int
		lastSeq   int64
		updatedAt gotime.Time
	)
	if _, err := pgx.ForEachRow(rows, []any{&roomKey, &count, &lastSeq, &updatedAt}, func() error {
		info := roomOf(key.Key(roomKey))
		info.Updates = count
		if lastSeq > info.LastSeq {
			info.LastSeq = lastSeq
		}
		if updatedAt.After(info.UpdatedAt) {
			info.UpdatedAt = updatedAt
		}
		return nil
	}); err != nil {
		return nil, unavailable("fetch updates", err)
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

func deleteRooms(ctx context.Context, tx pgx.Tx, roomKeys []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM `+tblUpdates+` WHERE room_key = ANY($1)`, roomKeys); err != nil {
		return unavailable("delete updates", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM `+tblSnapshots+` WHERE room_key = ANY($1)`, roomKeys); err != nil {
		return unavailable("delete snapshots", err)
	}
	return nil
}

func scanRoomKey(row pgx.CollectableRow) (key.Key, error) {
	var roomKey string
	if err := row.Scan(&roomKey); err != nil {
		return "", err
	}
	return key.Key(roomKey), nil
}

func unavailable(operation string, err error) error {
	if errors.Is(err, database.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, database.ErrStoreUnavailable, err)
}
