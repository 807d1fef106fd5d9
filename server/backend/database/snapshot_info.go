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
	"fmt"
	"time"

	"github.com/yorkie-team/relay/pkg/document/key"
)

// SnapshotInfo is the full state of a room folded up to a sequence number.
// A room has at most one snapshot.
type SnapshotInfo struct {
	// RoomKey is the key of the room the snapshot belongs to.
	RoomKey key.Key `bson:"room_key"`

	// StateVector is the encoded state vector of the document.
	StateVector []byte `bson:"state_vector"`

	// State is the full state of the document encoded as an update.
	State []byte `bson:"state"`

	// Text is a human readable extract of the document.
	Text string `bson:"text"`

	// Seq is the highest sequence number of the updates folded into the
	// snapshot.
	Seq int64 `bson:"seq"`

	// Size is the size of the state in bytes.
	Size int `bson:"size"`

	// CreatedAt is the time when the snapshot was written.
	CreatedAt time.Time `bson:"created_at"`
}

// NewSnapshotInfo creates a new SnapshotInfo of the given state.
func NewSnapshotInfo(roomKey key.Key, seq int64, state, stateVector []byte, text string) *SnapshotInfo {
	return &SnapshotInfo{
		RoomKey:     roomKey,
		StateVector: stateVector,
		State:       state,
		Text:        text,
		Seq:         seq,
		Size:        len(state),
		CreatedAt:   time.Now(),
	}
}

// Validate returns an error if the snapshot can never be stored.
func (i *SnapshotInfo) Validate() error {
	if i.Seq < 0 {
		return fmt.Errorf("snapshot %s/%d: %w", i.RoomKey, i.Seq, ErrInvalidSeq)
	}
	return nil
}

// DeepCopy returns a deep copy of the SnapshotInfo.
func (i *SnapshotInfo) DeepCopy() *SnapshotInfo {
	if i == nil {
		return nil
	}

	return &SnapshotInfo{
		RoomKey:     i.RoomKey,
		StateVector: append([]byte{}, i.StateVector...),
		State:       append([]byte{}, i.State...),
		Text:        i.Text,
		Seq:         i.Seq,
		Size:        i.Size,
		CreatedAt:   i.CreatedAt,
	}
}
