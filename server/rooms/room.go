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

// Package rooms provides the document handles of the relay. A Room owns the
// document and the presence of one room, relays changes between the
// connections subscribed to it and persists them through a policy.
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/pkg/errors"
	"github.com/yorkie-team/relay/pkg/presence"
	"github.com/yorkie-team/relay/pkg/protocol"
	"github.com/yorkie-team/relay/server/backend/background"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
)

// serverClientID is the presence client of the relay. The relay never sets a
// local state.
const serverClientID presence.ClientID = 0

// persister writes the changes of a room to the store.
type persister interface {
	// restore initializes the policy from the loaded records.
	restore(snapshot *database.SnapshotInfo, updates []*database.UpdateInfo)

	// record is called with the room mutex held for every change that must
	// be persisted.
	record(update []byte)

	// flush writes every pending change.
	flush(ctx context.Context) error

	// compact writes a snapshot of the current state and returns its seq.
	compact(ctx context.Context) (int64, error)

	// close releases the timers of the policy.
	close()
}

// Room is the document handle of one room. Every mutation of the document
// and the presence goes through the room mutex, so subscribers observe the
// changes of a room in one order.
type Room struct {
	key     key.Key
	options *Options
	db      database.Database
	bg      *background.Background
	metrics *prometheus.Metrics
	logger  logging.Logger

	// onThreshold is called when the log reaches the compaction threshold.
	// It must not block.
	onThreshold func(*Room)

	loaded  chan struct{}
	loadErr error

	mu          sync.Mutex
	doc         *document.Doc
	awareness   *presence.Awareness
	subs        map[document.Origin]*Subscription
	owners      map[document.Origin]map[presence.ClientID]struct{}
	seq         int64
	persistence persister
}

func newRoom(
	roomKey key.Key,
	options *Options,
	db database.Database,
	bg *background.Background,
	metrics *prometheus.Metrics,
	onThreshold func(*Room),
) *Room {
	r := &Room{
		key:         roomKey,
		options:     options,
		db:          db,
		bg:          bg,
		metrics:     metrics,
		logger:      logging.New("ROOM", logging.NewField("room", roomKey.String())),
		onThreshold: onThreshold,
		loaded:      make(chan struct{}),
		doc:         document.New(),
		awareness:   presence.New(serverClientID),
		subs:        make(map[document.Origin]*Subscription),
		owners:      make(map[document.Origin]map[presence.ClientID]struct{}),
	}

	if options.PersistenceMode == PersistenceModeSnapshot {
		r.persistence = newSnapshotPolicy(r)
	} else {
		r.persistence = newLogPolicy(r)
	}

	r.doc.OnUpdate(r.onUpdate)
	r.awareness.OnChange(r.onPresence)
	return r
}

// Key returns the key of the room.
func (r *Room) Key() key.Key {
	return r.key
}

// load reads the room from the store. Records are applied with the load
// origin so that they are neither persisted again nor broadcast.
func (r *Room) load(ctx context.Context) error {
	defer close(r.loaded)

	snapshot, updates, err := r.db.LoadRoom(ctx, r.key)
	if err != nil {
		r.loadErr = fmt.Errorf("load %s: %w", r.key, err)
		return r.loadErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot != nil {
		if err := r.doc.ApplyUpdate(snapshot.State, document.OriginLoad); err != nil {
			r.logger.Errorf("apply snapshot at seq %d: %v", snapshot.Seq, err)
		}
		r.seq = snapshot.Seq
	}
	for _, update := range updates {
		if err := r.doc.ApplyUpdate(update.Payload, document.OriginLoad); err != nil {
			r.logger.Errorf("replay update %d: %v", update.Seq, err)
		}
		if update.Seq > r.seq {
			r.seq = update.Seq
		}
	}
	r.persistence.restore(snapshot, updates)

	r.logger.Debugf("loaded at seq %d with %d log entries", r.seq, len(updates))
	return nil
}

// WaitLoaded blocks until the room is loaded and returns the load error.
func (r *Room) WaitLoaded(ctx context.Context) error {
	select {
	case <-r.loaded:
		return r.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ready returns nil if the room has been loaded successfully.
func (r *Room) ready() error {
	select {
	case <-r.loaded:
		return r.loadErr
	default:
		return ErrRoomLoading
	}
}

// onUpdate is called by the document with the room mutex held.
func (r *Room) onUpdate(update []byte, origin document.Origin) {
	if origin.IsStorage() {
		return
	}

	r.persistence.record(update)
	r.publish(protocol.EncodeUpdate(update), origin)
}

// onPresence is called by the awareness with the room mutex held.
func (r *Room) onPresence(change presence.Change, origin document.Origin) {
	ids := change.All()
	if len(ids) == 0 {
		return
	}
	r.publish(protocol.EncodeAwareness(r.awareness.EncodeUpdate(ids)), origin)
}

// publish sends the frame to every subscriber except the origin. A
// subscriber whose queue is full is dropped.
func (r *Room) publish(frame []byte, origin document.Origin) {
	for id, sub := range r.subs {
		if id == origin {
			continue
		}
		if sub.Publish(frame) {
			continue
		}

		delete(r.subs, id)
		sub.Close()
		r.metrics.AddDroppedConnection()
		r.logger.Warnf("drop subscriber %s: send queue full", id)
	}
}

// Subscribe registers the subscription and enqueues the handshake: a
// sync step 1 with the state vector of the room, then the presence of the
// room if any. No change can be published in between. A subscription whose
// queue cannot hold the handshake is closed without being registered.
func (r *Room) Subscribe(sub *Subscription) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handshake := [][]byte{protocol.EncodeSyncStep1(r.doc.EncodeStateVector())}
	if r.awareness.Len() > 0 {
		handshake = append(handshake,
			protocol.EncodeAwareness(r.awareness.EncodeUpdate(r.awareness.Clients())))
	}
	for _, frame := range handshake {
		if !sub.Publish(frame) {
			sub.Close()
			r.metrics.AddDroppedConnection()
			r.logger.Warnf("drop subscriber %s: send queue full during handshake", sub.ID())
			return func() {}
		}
	}
	r.subs[sub.ID()] = sub

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if cur, ok := r.subs[sub.ID()]; ok && cur == sub {
			delete(r.subs, sub.ID())
		}
	}
}

// Subscribers returns the number of subscribers of the room.
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subs)
}

// HandleSync handles a sync frame of the given origin and returns the reply
// to send back to it, or nil.
func (r *Room) HandleSync(frame *protocol.Frame, origin document.Origin) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return protocol.HandleSync(r.doc, frame, origin)
}

// ApplyUpdate applies a remote update. Changes are persisted and published
// to every subscriber but the origin.
func (r *Room) ApplyUpdate(update []byte, origin document.Origin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.doc.ApplyUpdate(update, origin)
}

// ApplyPresence applies a presence update of the given origin. The clients
// it introduces are owned by the origin until it leaves.
func (r *Room) ApplyPresence(update []byte, origin document.Origin) error {
	entries, err := presence.DecodeUpdate(update)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.awareness.ApplyUpdate(update, origin); err != nil {
		return err
	}

	owned, ok := r.owners[origin]
	if !ok {
		owned = make(map[presence.ClientID]struct{})
		r.owners[origin] = owned
	}
	for _, e := range entries {
		if e.State == nil {
			delete(owned, e.ClientID)
			continue
		}
		if _, ok := r.awareness.State(e.ClientID); ok {
			owned[e.ClientID] = struct{}{}
		}
	}
	if len(owned) == 0 {
		delete(r.owners, origin)
	}
	return nil
}

// Leave removes the presence owned by the origin. The removal is published
// with the system origin so every remaining subscriber receives it.
func (r *Room) Leave(origin document.Origin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.owners[origin]
	delete(r.owners, origin)
	if len(owned) == 0 {
		return
	}

	ids := make([]presence.ClientID, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	r.awareness.RemoveStates(ids, document.OriginSystem)
}

// Presence returns a copy of the presence states of the room.
func (r *Room) Presence() map[presence.ClientID]json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.awareness.GetStates()
}

// StateSnapshot returns the state vector and the full state of the room.
func (r *Room) StateSnapshot() (stateVector []byte, state []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.doc.EncodeStateVector(), r.doc.EncodeStateAsUpdate()
}

// Text returns the text extract of the room.
func (r *Room) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.doc.Text()
}

// Seq returns the last sequence number assigned to a change of the room.
func (r *Room) Seq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.seq
}

// Flush writes every pending change of the room to the store.
func (r *Room) Flush(ctx context.Context) error {
	if err := r.ready(); err != nil {
		if errors.IsStatus(err, errors.ErrCodeFailedPrecondition) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.options.storeTimeout())
	defer cancel()

	if err := r.persistence.flush(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", r.key, err)
	}
	return nil
}

// Compact writes a snapshot of the current state of the room and folds the
// update log into it. It returns the seq of the snapshot.
func (r *Room) Compact(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.options.storeTimeout())
	defer cancel()

	seq, err := r.persistence.compact(ctx)
	if err != nil {
		return 0, fmt.Errorf("compact %s: %w", r.key, err)
	}
	return seq, nil
}

// snapshotLocked captures the current state. The room mutex must be held.
func (r *Room) snapshotLocked() *database.SnapshotInfo {
	return database.NewSnapshotInfo(
		r.key,
		r.seq,
		r.doc.EncodeStateAsUpdate(),
		r.doc.EncodeStateVector(),
		r.doc.Text(),
	)
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.persistence.close()
}
