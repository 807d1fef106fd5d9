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

// Package presence provides the awareness state of a room: ephemeral,
// never persisted, per-client JSON values such as cursors and user names.
// Every client state carries a clock; a state with a higher clock replaces
// the current one, and a "null" state removes the client.
package presence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yorkie-team/relay/pkg/binary"
	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/errors"
)

// ErrMalformedUpdate is returned when an awareness update cannot be decoded.
// The awareness is left untouched.
var ErrMalformedUpdate = errors.InvalidArgument("malformed awareness update").WithCode("ErrMalformedAwarenessUpdate")

var nullState = []byte("null")

// ClientID identifies an awareness client. It is chosen by the client.
type ClientID uint64

// Change lists the clients affected by a change of the awareness. Updated
// includes clients whose clock was renewed with an unchanged state.
type Change struct {
	Added   []ClientID
	Updated []ClientID
	Removed []ClientID
}

// All returns the clients of the change in one list.
func (c Change) All() []ClientID {
	all := make([]ClientID, 0, len(c.Added)+len(c.Updated)+len(c.Removed))
	all = append(all, c.Added...)
	all = append(all, c.Updated...)
	return append(all, c.Removed...)
}

// IsEmpty returns true if no client was affected.
func (c Change) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// ChangeHandler is called with every non-empty change and its origin.
type ChangeHandler func(change Change, origin document.Origin)

// Entry is one client state of an encoded update. A nil State removes the
// client.
type Entry struct {
	ClientID ClientID
	Clock    uint64
	State    json.RawMessage
}

// Awareness holds the client states of one room. It is not safe for
// concurrent use.
type Awareness struct {
	clientID ClientID
	states   map[ClientID]json.RawMessage
	clocks   map[ClientID]uint64

	handlerSeq int
	handlers   map[int]ChangeHandler
}

// New creates a new Awareness whose local state belongs to the given client.
// The relay itself uses 0 and never sets a local state.
func New(clientID ClientID) *Awareness {
	return &Awareness{
		clientID: clientID,
		states:   make(map[ClientID]json.RawMessage),
		clocks:   make(map[ClientID]uint64),
		handlers: make(map[int]ChangeHandler),
	}
}

// ClientID returns the local client.
func (a *Awareness) ClientID() ClientID {
	return a.clientID
}

// OnChange registers a handler and returns a function that removes it.
func (a *Awareness) OnChange(handler ChangeHandler) func() {
	a.handlerSeq++
	id := a.handlerSeq
	a.handlers[id] = handler
	return func() {
		delete(a.handlers, id)
	}
}

func (a *Awareness) emit(change Change, origin document.Origin) {
	if change.IsEmpty() {
		return
	}
	ids := make([]int, 0, len(a.handlers))
	for id := range a.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if handler, ok := a.handlers[id]; ok {
			handler(change, origin)
		}
	}
}

// Len returns the number of clients with a state.
func (a *Awareness) Len() int {
	return len(a.states)
}

// Clients returns the clients with a state in ascending order.
func (a *Awareness) Clients() []ClientID {
	ids := make([]ClientID, 0, len(a.states))
	for id := range a.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetStates returns a copy of the client states.
func (a *Awareness) GetStates() map[ClientID]json.RawMessage {
	states := make(map[ClientID]json.RawMessage, len(a.states))
	for id, state := range a.states {
		states[id] = state
	}
	return states
}

// State returns the state of the given client.
func (a *Awareness) State(id ClientID) (json.RawMessage, bool) {
	state, ok := a.states[id]
	return state, ok
}

// SetLocalState replaces the state of the local client. A nil state removes
// it.
func (a *Awareness) SetLocalState(state json.RawMessage) error {
	if state != nil && !json.Valid(state) {
		return fmt.Errorf("set local state: %w", ErrMalformedUpdate)
	}
	if bytes.Equal(state, nullState) {
		state = nil
	}

	id := a.clientID
	_, existed := a.states[id]
	a.clocks[id]++

	var change Change
	switch {
	case state == nil && existed:
		delete(a.states, id)
		change.Removed = append(change.Removed, id)
	case state == nil:
	case existed:
		a.states[id] = append(json.RawMessage{}, state...)
		change.Updated = append(change.Updated, id)
	default:
		a.states[id] = append(json.RawMessage{}, state...)
		change.Added = append(change.Added, id)
	}

	a.emit(change, document.OriginLocal)
	return nil
}

// EncodeUpdate encodes the current states of the given clients. Removed
// clients are encoded with a "null" state. Clients never seen are skipped.
func (a *Awareness) EncodeUpdate(ids []ClientID) []byte {
	var entries []Entry
	for _, id := range ids {
		clock, ok := a.clocks[id]
		if !ok {
			continue
		}
		entries = append(entries, Entry{ClientID: id, Clock: clock, State: a.states[id]})
	}
	return EncodeEntries(entries)
}

// EncodeEntries encodes the given entries as an awareness update.
func EncodeEntries(entries []Entry) []byte {
	enc := binary.NewEncoder()
	enc.WriteVarUint(uint64(len(entries)))
	for _, e := range entries {
		enc.WriteVarUint(uint64(e.ClientID))
		enc.WriteVarUint(e.Clock)
		if e.State == nil {
			enc.WriteVarBytes(nullState)
		} else {
			enc.WriteVarBytes(e.State)
		}
	}
	return enc.Bytes()
}

// DecodeUpdate decodes the entries of an awareness update.
func DecodeUpdate(update []byte) ([]Entry, error) {
	dec := binary.NewDecoder(update)
	n, err := dec.ReadVarUint()
	if err != nil {
		return nil, fmt.Errorf("decode awareness update: %w: %w", ErrMalformedUpdate, err)
	}

	var entries []Entry
	for i := uint64(0); i < n; i++ {
		id, err := dec.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("decode awareness client: %w: %w", ErrMalformedUpdate, err)
		}
		clock, err := dec.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("decode awareness clock: %w: %w", ErrMalformedUpdate, err)
		}
		state, err := dec.ReadVarString()
		if err != nil {
			return nil, fmt.Errorf("decode awareness state: %w: %w", ErrMalformedUpdate, err)
		}
		if !json.Valid([]byte(state)) {
			return nil, fmt.Errorf("decode awareness state of %d: %w", id, ErrMalformedUpdate)
		}

		entry := Entry{ClientID: ClientID(id), Clock: clock}
		if state != string(nullState) {
			entry.State = json.RawMessage(state)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ApplyUpdate applies an encoded awareness update. Entries older than the
// known clock of their client are ignored.
func (a *Awareness) ApplyUpdate(update []byte, origin document.Origin) error {
	entries, err := DecodeUpdate(update)
	if err != nil {
		return err
	}

	var change Change
	for _, e := range entries {
		clock, known := a.clocks[e.ClientID]
		_, existed := a.states[e.ClientID]

		if known && clock > e.Clock {
			continue
		}
		if known && clock == e.Clock && (e.State != nil || !existed) {
			continue
		}

		if e.State == nil {
			if e.ClientID == a.clientID && existed {
				// Remote peers may not remove the local state; renew it.
				a.clocks[e.ClientID] = e.Clock + 1
				continue
			}
			delete(a.states, e.ClientID)
		} else {
			a.states[e.ClientID] = e.State
		}
		a.clocks[e.ClientID] = e.Clock

		switch {
		case !existed && e.State != nil:
			change.Added = append(change.Added, e.ClientID)
		case existed && e.State == nil:
			change.Removed = append(change.Removed, e.ClientID)
		case e.State != nil:
			change.Updated = append(change.Updated, e.ClientID)
		}
	}

	a.emit(change, origin)
	return nil
}

// RemoveStates removes the states of the given clients.
func (a *Awareness) RemoveStates(ids []ClientID, origin document.Origin) {
	var change Change
	for _, id := range ids {
		if _, ok := a.states[id]; !ok {
			continue
		}
		delete(a.states, id)
		if id == a.clientID {
			a.clocks[id]++
		}
		change.Removed = append(change.Removed, id)
	}
	a.emit(change, origin)
}
