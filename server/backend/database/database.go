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

// Package database provides the persistence store of the relay. A store
// keeps, per room, an append-only log of updates and at most one snapshot
// that folds every update up to its sequence number.
package database

import (
	"context"
	gotime "time"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/pkg/errors"
)

var (
	// ErrStoreUnavailable is returned when the backend cannot be reached or
	// fails a request. Callers keep the data in memory and retry later.
	ErrStoreUnavailable = errors.Unavailable("store unavailable").WithCode("ErrStoreUnavailable")

	// ErrRoomNotFound is returned when a room has neither a snapshot nor
	// log entries.
	ErrRoomNotFound = errors.NotFound("room not found").WithCode("ErrRoomNotFound")

	// ErrInvalidSeq is returned when an update or snapshot carries a
	// sequence number that can never be stored.
	ErrInvalidSeq = errors.InvalidArgument("invalid sequence number").WithCode("ErrInvalidSeq")

	// ErrUpdateAlreadyExists is returned when appending an update whose
	// sequence number is already in the log of the room.
	ErrUpdateAlreadyExists = errors.AlreadyExists("update already exists").WithCode("ErrUpdateAlreadyExists")
)

// Database represents the persistence store of rooms. Implementations must
// be safe for concurrent use.
type Database interface {
	// Close all resources of this database.
	Close() error

	// LoadRoom returns the snapshot of the room, or nil if there is none,
	// and the log entries with a sequence number greater than the one of
	// the snapshot in ascending order. A room that was never stored is not
	// an error: it has no snapshot and no entries.
	LoadRoom(ctx context.Context, roomKey key.Key) (*SnapshotInfo, []*UpdateInfo, error)

	// AppendUpdate durably writes one log entry. Callers append the entries
	// of one room in increasing sequence order.
	AppendUpdate(ctx context.Context, info *UpdateInfo) error

	// CompactRoom atomically replaces the snapshot of the room and deletes
	// every log entry with a sequence number less than or equal to the
	// sequence number of the snapshot.
	CompactRoom(ctx context.Context, snapshot *SnapshotInfo) error

	// DeleteRoom removes the snapshot and every log entry of the room.
	DeleteRoom(ctx context.Context, roomKey key.Key) error

	// FindRoomsAboveThreshold returns the rooms whose log holds at least
	// threshold entries.
	FindRoomsAboveThreshold(ctx context.Context, threshold int) ([]key.Key, error)

	// PurgeOlderThan deletes the rooms whose snapshot and log entries were
	// all written before the cutoff, and returns their keys.
	PurgeOlderThan(ctx context.Context, cutoff gotime.Time) ([]key.Key, error)

	// ListRooms returns a summary of every stored room ordered by key.
	ListRooms(ctx context.Context) ([]*RoomInfo, error)
}
