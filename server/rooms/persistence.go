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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
)

// logPolicy appends every change to the update log of the room. Entries are
// queued under the room mutex and drained in seq order by one writer at a
// time, off the broadcast path.
type logPolicy struct {
	room *Room

	// writeMu serializes the store writes of the room.
	writeMu sync.Mutex

	// The fields below are guarded by the room mutex.
	queue     []*database.UpdateInfo
	scheduled bool
	logSize   int
	pending   bool
}

func newLogPolicy(room *Room) *logPolicy {
	return &logPolicy{room: room}
}

func (p *logPolicy) restore(_ *database.SnapshotInfo, updates []*database.UpdateInfo) {
	p.logSize = len(updates)
}

func (p *logPolicy) record(update []byte) {
	r := p.room
	r.seq++
	p.queue = append(p.queue, database.NewUpdateInfo(r.key, r.seq, update))
	p.schedule()
}

// schedule starts a writer unless one is already scheduled. The room mutex
// must be held.
func (p *logPolicy) schedule() {
	if p.scheduled {
		return
	}
	p.scheduled = true

	r := p.room
	if !r.bg.AttachGoroutine(func(ctx context.Context) {
		r.mu.Lock()
		p.scheduled = false
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, r.options.storeTimeout())
		defer cancel()

		start := time.Now()
		if err := p.flush(ctx); err != nil {
			logging.LogError(r.logger, "append", time.Since(start), err)
		}
	}, "append-log") {
		p.scheduled = false
	}
}

// flush appends the queued entries in order. A failed entry stays at the
// head of the queue and is retried by the next flush.
func (p *logPolicy) flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	r := p.room
	for {
		r.mu.Lock()
		if len(p.queue) == 0 {
			r.mu.Unlock()
			return nil
		}
		info := p.queue[0]
		r.mu.Unlock()

		if err := r.db.AppendUpdate(ctx, info); err != nil &&
			!errors.Is(err, database.ErrUpdateAlreadyExists) {
			r.metrics.AddPersistenceFailure("append")
			return fmt.Errorf("append seq %d: %w", info.Seq, err)
		}
		r.metrics.AddPersistedUpdates(1, info.Size)

		r.mu.Lock()
		p.queue = p.queue[1:]
		p.logSize++
		trigger := r.options.CompactionThreshold > 0 &&
			p.logSize >= r.options.CompactionThreshold && !p.pending
		if trigger {
			p.pending = true
		}
		r.mu.Unlock()

		if trigger && r.onThreshold != nil {
			r.onThreshold(r)
		}
	}
}

// compact folds the log into a snapshot of the current state. Queued entries
// covered by the snapshot are dropped without being appended.
func (p *logPolicy) compact(ctx context.Context) (int64, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	r := p.room
	r.mu.Lock()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	err := r.db.CompactRoom(ctx, snapshot)

	r.mu.Lock()
	p.pending = false
	if err == nil {
		i := 0
		for i < len(p.queue) && p.queue[i].Seq <= snapshot.Seq {
			i++
		}
		p.queue = p.queue[i:]
		p.logSize = 0
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.AddPersistenceFailure("compact")
		return 0, err
	}
	r.metrics.AddPersistedSnapshot(snapshot.Size)
	return snapshot.Seq, nil
}

func (p *logPolicy) close() {}

// snapshotPolicy writes a full snapshot of the room once no change has been
// made for the debounce period. Every change re-arms the timer.
type snapshotPolicy struct {
	room *Room

	// writeMu serializes the store writes of the room.
	writeMu sync.Mutex

	// The fields below are guarded by the room mutex.
	timer *time.Timer
	dirty bool
}

func newSnapshotPolicy(room *Room) *snapshotPolicy {
	return &snapshotPolicy{room: room}
}

func (p *snapshotPolicy) restore(_ *database.SnapshotInfo, _ []*database.UpdateInfo) {}

func (p *snapshotPolicy) record(_ []byte) {
	p.room.seq++
	p.dirty = true

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.room.options.SnapshotDebounce, p.fire)
}

func (p *snapshotPolicy) fire() {
	r := p.room
	r.bg.AttachGoroutine(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, r.options.storeTimeout())
		defer cancel()

		start := time.Now()
		if err := p.flush(ctx); err != nil {
			logging.LogError(r.logger, "snapshot", time.Since(start), err)
		}
	}, "write-snapshot")
}

// flush cancels the pending timer and writes the snapshot now if the room
// changed since the last write.
func (p *snapshotPolicy) flush(ctx context.Context) error {
	_, err := p.write(ctx, false)
	return err
}

func (p *snapshotPolicy) compact(ctx context.Context) (int64, error) {
	return p.write(ctx, true)
}

func (p *snapshotPolicy) write(ctx context.Context, force bool) (int64, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	r := p.room
	r.mu.Lock()
	p.stopLocked()
	if !p.dirty && !force {
		seq := r.seq
		r.mu.Unlock()
		return seq, nil
	}
	p.dirty = false
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.db.CompactRoom(ctx, snapshot); err != nil {
		r.mu.Lock()
		p.dirty = true
		r.mu.Unlock()

		r.metrics.AddPersistenceFailure("snapshot")
		return 0, fmt.Errorf("write snapshot at seq %d: %w", snapshot.Seq, err)
	}
	r.metrics.AddPersistedSnapshot(snapshot.Size)
	return snapshot.Seq, nil
}

func (p *snapshotPolicy) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *snapshotPolicy) close() {
	p.stopLocked()
}
