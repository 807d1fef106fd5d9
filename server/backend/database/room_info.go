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

package database

import (
	"time"

	"github.com/yorkie-team/relay/pkg/document/key"
)

// RoomInfo summarizes what is stored for a room.
type RoomInfo struct {
	Key key.Key `json:"key" yaml:"key"`

	// SnapshotSeq is the sequence number of the snapshot, 0 if none.
	SnapshotSeq  int64 `json:"snapshot_seq" yaml:"snapshot_seq"`
	SnapshotSize int   `json:"snapshot_size" yaml:"snapshot_size"`

	// Updates is the number of log entries.
	Updates int `json:"updates" yaml:"updates"`

	// LastSeq is the highest stored sequence number.
	LastSeq int64 `json:"last_seq" yaml:"last_seq"`

	// UpdatedAt is the time of the newest snapshot or log entry.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Observe folds a log entry into the summary.
func (i *RoomInfo) Observe(update *UpdateInfo) {
	i.Updates++
	if update.Seq > i.LastSeq {
		i.LastSeq = update.Seq
	}
	if update.CreatedAt.After(i.UpdatedAt) {
		i.UpdatedAt = update.CreatedAt
	}
}

// ObserveSnapshot folds the snapshot into the summary.
func (i *RoomInfo) ObserveSnapshot(snapshot *SnapshotInfo) {
	i.SnapshotSeq = snapshot.Seq
	i.SnapshotSize = snapshot.Size
	if snapshot.Seq > i.LastSeq {
		i.LastSeq = snapshot.Seq
	}
	if snapshot.CreatedAt.After(i.UpdatedAt) {
		i.UpdatedAt = snapshot.CreatedAt
	}
}
