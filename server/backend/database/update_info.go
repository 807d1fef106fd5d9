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

// UpdateInfo is a log entry: one update of a room. It is immutable once
// written.
type UpdateInfo struct {
	// RoomKey is the key of the room the update belongs to.
	RoomKey key.Key `bson:"room_key"`

	// Seq orders the updates of a room. It starts at 1 and has no gaps.
	Seq int64 `bson:"seq"`

	// Payload is the encoded update.
	Payload []byte `bson:"payload"`

	// Size is the size of the payload in bytes.
	Size int `bson:"size"`

	// CreatedAt is the time when the update was appended.
	CreatedAt time.Time `bson:"created_at"`
}

// NewUpdateInfo creates a new UpdateInfo of the given payload.
func NewUpdateInfo(roomKey key.Key, seq int64, payload []byte) *UpdateInfo {
	return &UpdateInfo{
		RoomKey:   roomKey,
		Seq:       seq,
		Payload:   payload,
		Size:      len(payload),
		CreatedAt: time.Now(),
	}
}

// Validate returns an error if the update can never be stored.
func (i *UpdateInfo) Validate() error {
	if i.Seq <= 0 {
		return fmt.Errorf("update %s/%d: %w", i.RoomKey, i.Seq, ErrInvalidSeq)
	}
	return nil
}

// DeepCopy returns a deep copy of the UpdateInfo.
func (i *UpdateInfo) DeepCopy() *UpdateInfo {
	if i == nil {
		return nil
	}

	return &UpdateInfo{
		RoomKey:   i.RoomKey,
		Seq:       i.Seq,
		Payload:   append([]byte{}, i.Payload...),
		Size:      i.Size,
		CreatedAt: i.CreatedAt,
	}
}
