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

// Package protocol provides the frames exchanged between the relay and its
// clients. A frame starts with a varuint message type. Sync frames carry a
// sync sub-message: step 1 asks for the updates missing from a state
// vector, step 2 answers it, and update carries an incremental change.
// Awareness frames carry an encoded awareness update.
package protocol

import (
	"fmt"

	"github.com/yorkie-team/relay/pkg/binary"
	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/errors"
)

// MessageType is the type of a frame.
type MessageType uint64

const (
	// MessageSync is the type of frames carrying a sync sub-message.
	MessageSync MessageType = 0

	// MessageAwareness is the type of frames carrying an awareness update.
	MessageAwareness MessageType = 1
)

// String returns the name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageSync:
		return "sync"
	case MessageAwareness:
		return "awareness"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// SyncType is the type of a sync sub-message.
type SyncType uint64

const (
	// SyncStep1 carries the state vector of the sender.
	SyncStep1 SyncType = 0

	// SyncStep2 carries the updates missing from a received state vector.
	SyncStep2 SyncType = 1

	// SyncUpdate carries an incremental update.
	SyncUpdate SyncType = 2
)

// ErrMalformedFrame is returned when a frame cannot be decoded.
var ErrMalformedFrame = errors.InvalidArgument("malformed frame").WithCode("ErrMalformedFrame")

// Frame is a decoded frame. For sync frames Payload is the payload of the
// sub-message; for awareness frames it is the awareness update.
type Frame struct {
	Type     MessageType
	SyncType SyncType
	Payload  []byte
}

// DecodeFrame decodes a frame.
func DecodeFrame(b []byte) (*Frame, error) {
	dec := binary.NewDecoder(b)
	typ, err := dec.ReadVarUint()
	if err != nil {
		return nil, fmt.Errorf("read message type: %w: %w", ErrMalformedFrame, err)
	}

	frame := &Frame{Type: MessageType(typ)}
	switch frame.Type {
	case MessageSync:
		syncType, err := dec.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("read sync type: %w: %w", ErrMalformedFrame, err)
		}
		frame.SyncType = SyncType(syncType)
		if frame.SyncType > SyncUpdate {
			return nil, fmt.Errorf("sync type %d: %w", syncType, ErrMalformedFrame)
		}
	case MessageAwareness:
	default:
		return nil, fmt.Errorf("message type %d: %w", typ, ErrMalformedFrame)
	}

	payload, err := dec.ReadVarBytes()
	if err != nil {
		return nil, fmt.Errorf("read %s payload: %w: %w", frame.Type, ErrMalformedFrame, err)
	}
	frame.Payload = payload
	return frame, nil
}

func encodeSync(syncType SyncType, payload []byte) []byte {
	enc := binary.NewEncoder()
	enc.WriteVarUint(uint64(MessageSync))
	enc.WriteVarUint(uint64(syncType))
	enc.WriteVarBytes(payload)
	return enc.Bytes()
}

// EncodeSyncStep1 encodes a step 1 frame with the given state vector.
func EncodeSyncStep1(stateVector []byte) []byte {
	return encodeSync(SyncStep1, stateVector)
}

// EncodeSyncStep2 encodes a step 2 frame with the given update.
func EncodeSyncStep2(update []byte) []byte {
	return encodeSync(SyncStep2, update)
}

// EncodeUpdate encodes an update frame.
func EncodeUpdate(update []byte) []byte {
	return encodeSync(SyncUpdate, update)
}

// EncodeAwareness encodes an awareness frame.
func EncodeAwareness(update []byte) []byte {
	enc := binary.NewEncoder()
	enc.WriteVarUint(uint64(MessageAwareness))
	enc.WriteVarBytes(update)
	return enc.Bytes()
}

// SyncDoc is the document side of the sync sub-protocol.
type SyncDoc interface {
	EncodeStateAsUpdateFrom(stateVector []byte) ([]byte, error)
	ApplyUpdate(update []byte, origin document.Origin) error
}

// HandleSync handles a decoded sync frame on behalf of the given origin. It
// returns the reply frame to send back to the sender only, or nil.
func HandleSync(doc SyncDoc, frame *Frame, origin document.Origin) ([]byte, error) {
	switch frame.SyncType {
	case SyncStep1:
		update, err := doc.EncodeStateAsUpdateFrom(frame.Payload)
		if err != nil {
			return nil, fmt.Errorf("answer step 1: %w", err)
		}
		return EncodeSyncStep2(update), nil
	case SyncStep2, SyncUpdate:
		if err := doc.ApplyUpdate(frame.Payload, origin); err != nil {
			return nil, fmt.Errorf("apply %d: %w", frame.SyncType, err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("sync type %d: %w", frame.SyncType, ErrMalformedFrame)
	}
}
