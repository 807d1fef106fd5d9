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

package fs

import (
	"fmt"
	gotime "time"

	"github.com/yorkie-team/relay/pkg/binary"
	"github.com/yorkie-team/relay/server/backend/database"
)

// encodeSnapshot frames a snapshot as
// [seq][created at][state vector][state], created at in unix nanoseconds.
func encodeSnapshot(snapshot *database.SnapshotInfo) []byte {
	encoder := binary.NewEncoder()
	encoder.WriteVarUint(uint64(snapshot.Seq))
	encoder.WriteVarUint(uint64(snapshot.CreatedAt.UnixNano()))
	encoder.WriteVarBytes(snapshot.StateVector)
	encoder.WriteVarBytes(snapshot.State)
	return encoder.Bytes()
}

func decodeSnapshot(data []byte, snapshot *database.SnapshotInfo) error {
	decoder := binary.NewDecoder(data)

	seq, err := decoder.ReadVarUint()
	if err != nil {
		return fmt.Errorf("decode seq: %w", err)
	}
	createdAt, err := decoder.ReadVarUint()
	if err != nil {
		return fmt.Errorf("decode created at: %w", err)
	}
	stateVector, err := decoder.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("decode state vector: %w", err)
	}
	state, err := decoder.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	snapshot.Seq = int64(seq)
	snapshot.CreatedAt = gotime.Unix(0, int64(createdAt))
	snapshot.StateVector = stateVector
	snapshot.State = state
	snapshot.Size = len(state)
	return nil
}

// encodeUpdate frames a log entry as [created at][payload].
func encodeUpdate(info *database.UpdateInfo) []byte {
	encoder := binary.NewEncoder()
	encoder.WriteVarUint(uint64(info.CreatedAt.UnixNano()))
	encoder.WriteVarBytes(info.Payload)
	return encoder.Bytes()
}

func decodeUpdate(data []byte, info *database.UpdateInfo) error {
	decoder := binary.NewDecoder(data)

	createdAt, err := decoder.ReadVarUint()
	if err != nil {
		return fmt.Errorf("decode created at: %w", err)
	}
	payload, err := decoder.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	info.CreatedAt = gotime.Unix(0, int64(createdAt))
	info.Payload = payload
	info.Size = len(payload)
	return nil
}

// decodeUpdateTime reads only the creation time of a log entry.
func decodeUpdateTime(data []byte) (gotime.Time, error) {
	createdAt, err := binary.NewDecoder(data).ReadVarUint()
	if err != nil {
		return gotime.Time{}, fmt.Errorf("decode created at: %w", err)
	}
	return gotime.Unix(0, int64(createdAt)), nil
}
