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

// Package document provides the replicated document edited by the clients of
// a room. A Doc is an operation-based CRDT: a map of string keys to values
// where concurrent assignments to the same key are resolved by Lamport
// timestamp, ties broken by actor. Replicas that integrated the same set of
// operations have the same content and the same encoded state, whatever the
// order in which they received them.
package document

import (
	"sort"
	"strings"

	"github.com/yorkie-team/relay/pkg/document/time"
	"github.com/yorkie-team/relay/pkg/errors"
)

// ErrMalformedUpdate is returned when an update or a state vector cannot be
// decoded. The document is left untouched.
var ErrMalformedUpdate = errors.InvalidArgument("malformed update").WithCode("ErrMalformedUpdate")

// Origin tags the source of a change. Handlers use it to decide whether a
// change must be persisted and to whom it must be broadcast.
type Origin string

const (
	// OriginSystem is the origin of changes made by the relay itself, e.g.
	// removing the presence of a closed connection.
	OriginSystem Origin = ""

	// OriginLocal is the origin of edits made through Set and Delete.
	OriginLocal Origin = "local"

	// OriginLoad is the origin of updates replayed from storage.
	OriginLoad Origin = "load"

	// OriginCompaction is the origin of updates produced by compaction.
	OriginCompaction Origin = "compaction"
)

// IsStorage returns true if changes with this origin already exist in
// storage and must not be persisted again.
func (o Origin) IsStorage() bool {
	return o == OriginLoad || o == OriginCompaction
}

// UpdateHandler is called with the encoded operations integrated by a change
// and the origin of the change.
type UpdateHandler func(update []byte, origin Origin)

type register struct {
	value   []byte
	deleted bool
	lamport uint64
	actor   time.ActorID
}

// Doc is a replica of a document. It is not safe for concurrent use.
type Doc struct {
	actor   time.ActorID
	lamport uint64

	vector  time.StateVector
	ops     map[time.ActorID][]*Op
	pending map[time.ActorID]map[uint64]*Op

	registers map[string]*register

	handlerSeq int
	handlers   map[int]UpdateHandler
}

// New creates a new empty Doc with a fresh actor.
func New() *Doc {
	return NewWithActor(time.NewActorID())
}

// NewWithActor creates a new empty Doc whose local edits are made by the
// given actor.
func NewWithActor(actor time.ActorID) *Doc {
	return &Doc{
		actor:     actor,
		vector:    time.NewStateVector(),
		ops:       make(map[time.ActorID][]*Op),
		pending:   make(map[time.ActorID]map[uint64]*Op),
		registers: make(map[string]*register),
		handlers:  make(map[int]UpdateHandler),
	}
}

// Actor returns the actor of local edits.
func (d *Doc) Actor() time.ActorID {
	return d.actor
}

// OnUpdate registers a handler called synchronously after every change that
// integrated at least one new operation. It returns a function that removes
// the handler.
func (d *Doc) OnUpdate(handler UpdateHandler) func() {
	d.handlerSeq++
	id := d.handlerSeq
	d.handlers[id] = handler
	return func() {
		delete(d.handlers, id)
	}
}

func (d *Doc) emit(ops []*Op, origin Origin) {
	if len(ops) == 0 || len(d.handlers) == 0 {
		return
	}

	update := encodeOps(ops)
	ids := make([]int, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if handler, ok := d.handlers[id]; ok {
			handler(update, origin)
		}
	}
}

// ApplyUpdate integrates the operations of the given update. Operations
// already known are ignored. Operations whose predecessor from the same actor
// is missing are kept pending until it arrives.
func (d *Doc) ApplyUpdate(update []byte, origin Origin) error {
	ops, err := DecodeUpdate(update)
	if err != nil {
		return err
	}

	touched := make(map[time.ActorID]bool)
	for _, op := range ops {
		if d.vector.Covers(op.Actor, op.Counter) {
			continue
		}
		queue, ok := d.pending[op.Actor]
		if !ok {
			queue = make(map[uint64]*Op)
			d.pending[op.Actor] = queue
		}
		if _, ok := queue[op.Counter]; !ok {
			queue[op.Counter] = op
		}
		touched[op.Actor] = true
	}

	var integrated []*Op
	for actor := range touched {
		queue := d.pending[actor]
		for {
			next, ok := queue[d.vector.Get(actor)+1]
			if !ok {
				break
			}
			delete(queue, next.Counter)
			d.integrate(next)
			integrated = append(integrated, next)
		}
		if len(queue) == 0 {
			delete(d.pending, actor)
		}
	}

	sortOps(integrated)
	d.emit(integrated, origin)
	return nil
}

func (d *Doc) integrate(op *Op) {
	d.ops[op.Actor] = append(d.ops[op.Actor], op)
	d.vector.Set(op.Actor, op.Counter)
	if op.Lamport > d.lamport {
		d.lamport = op.Lamport
	}

	reg, ok := d.registers[op.Key]
	if ok && !op.wins(reg.lamport, reg.actor) {
		return
	}
	d.registers[op.Key] = &register{
		value:   op.Value,
		deleted: op.Deleted,
		lamport: op.Lamport,
		actor:   op.Actor,
	}
}

func (d *Doc) local(key string, value []byte, deleted bool) {
	d.lamport++
	op := &Op{
		Actor:   d.actor,
		Counter: d.vector.Get(d.actor) + 1,
		Lamport: d.lamport,
		Key:     key,
		Deleted: deleted,
	}
	if !deleted {
		op.Value = append([]byte{}, value...)
	}
	d.integrate(op)
	d.emit([]*Op{op}, OriginLocal)
}

// Set assigns the value to the key.
func (d *Doc) Set(key string, value []byte) {
	d.local(key, value, false)
}

// Delete removes the key.
func (d *Doc) Delete(key string) {
	d.local(key, nil, true)
}

// Get returns the value of the key.
func (d *Doc) Get(key string) ([]byte, bool) {
	reg, ok := d.registers[key]
	if !ok || reg.deleted {
		return nil, false
	}
	return reg.value, true
}

// Keys returns the live keys in ascending order.
func (d *Doc) Keys() []string {
	var keys []string
	for k, reg := range d.registers {
		if !reg.deleted {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// StateVector returns a copy of the state vector of the document.
func (d *Doc) StateVector() time.StateVector {
	return d.vector.DeepCopy()
}

// EncodeStateVector returns the encoded state vector of the document.
func (d *Doc) EncodeStateVector() []byte {
	return encodeStateVector(d.vector)
}

// EncodeStateAsUpdate returns the full state of the document as an update.
// Pending operations are included so that they survive a snapshot.
func (d *Doc) EncodeStateAsUpdate() []byte {
	return encodeOps(d.opsAfter(nil))
}

// EncodeStateAsUpdateFrom returns the operations missing from a replica with
// the given encoded state vector.
func (d *Doc) EncodeStateAsUpdateFrom(stateVector []byte) ([]byte, error) {
	sv, err := DecodeStateVector(stateVector)
	if err != nil {
		return nil, err
	}
	return encodeOps(d.opsAfter(sv)), nil
}

func (d *Doc) opsAfter(sv time.StateVector) []*Op {
	var ops []*Op
	for actor, list := range d.ops {
		from := sv.Get(actor)
		if from >= uint64(len(list)) {
			continue
		}
		ops = append(ops, list[from:]...)
	}
	for _, queue := range d.pending {
		for _, op := range queue {
			ops = append(ops, op)
		}
	}
	sortOps(ops)
	return ops
}

// Text returns a human readable extract of the document, one "key: value"
// line per live key.
func (d *Doc) Text() string {
	var sb strings.Builder
	for _, k := range d.Keys() {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.Write(d.registers[k].value)
		sb.WriteString("\n")
	}
	return sb.String()
}
