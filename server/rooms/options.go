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

package rooms

import (
	"fmt"
	"time"

	"github.com/yorkie-team/relay/pkg/errors"
)

// PersistenceMode selects how a room writes its changes to the store.
type PersistenceMode string

const (
	// PersistenceModeLog appends every change to the update log and folds
	// the log into a snapshot once it reaches the compaction threshold.
	PersistenceModeLog PersistenceMode = "log"

	// PersistenceModeSnapshot writes a full snapshot after a quiet period.
	PersistenceModeSnapshot PersistenceMode = "snapshot"
)

// DefaultStoreTimeout is the deadline of a single store operation issued by
// a room.
const DefaultStoreTimeout = 10 * time.Second

var (
	// ErrRoomLoading is returned when the room has not been loaded yet.
	ErrRoomLoading = errors.FailedPrecond("room is loading").WithCode("ErrRoomLoading")

	// ErrShuttingDown is returned when a room is requested during shutdown.
	ErrShuttingDown = errors.Unavailable("relay is shutting down").WithCode("ErrShuttingDown")
)

// Options are the options of rooms.
type Options struct {
	// PersistenceMode is the persistence policy of every room.
	PersistenceMode PersistenceMode

	// SnapshotDebounce is the quiet period before a snapshot is written in
	// snapshot mode.
	SnapshotDebounce time.Duration

	// CompactionThreshold is the number of log entries that triggers a
	// compaction in log mode. Zero disables the inline trigger.
	CompactionThreshold int

	// StoreTimeout bounds every store operation of a room.
	StoreTimeout time.Duration
}

// Validate validates the options.
func (o *Options) Validate() error {
	switch o.PersistenceMode {
	case PersistenceModeLog, PersistenceModeSnapshot:
	default:
		return fmt.Errorf("invalid persistence mode %q: want %q or %q",
			o.PersistenceMode, PersistenceModeLog, PersistenceModeSnapshot)
	}
	if o.PersistenceMode == PersistenceModeSnapshot && o.SnapshotDebounce <= 0 {
		return fmt.Errorf("snapshot debounce must be positive: %s", o.SnapshotDebounce)
	}
	if o.CompactionThreshold < 0 {
		return fmt.Errorf("compaction threshold must not be negative: %d", o.CompactionThreshold)
	}
	return nil
}

func (o *Options) storeTimeout() time.Duration {
	if o.StoreTimeout <= 0 {
		return DefaultStoreTimeout
	}
	return o.StoreTimeout
}
