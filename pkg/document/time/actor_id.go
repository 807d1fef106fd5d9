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

package time

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/xid"
)

const actorIDSize = 12

var (
	// InitialActorID represents the zero value of ActorID.
	InitialActorID = ActorID{}

	// ErrInvalidHexString is returned when the given string is not valid hex.
	ErrInvalidHexString = errors.New("invalid hex string")

	// ErrInvalidActorID is returned when the given ID is not valid.
	ErrInvalidActorID = errors.New("invalid actor id")
)

// ActorID represents the unique ID of a document replica. It is composed of
// 12 bytes, the size of an xid, so it is comparable and usable as a map key.
type ActorID [actorIDSize]byte

// NewActorID creates a new globally unique ActorID.
func NewActorID() ActorID {
	return ActorID(xid.New())
}

// ActorIDFromHex returns the ActorID represented by the hexadecimal string str.
func ActorIDFromHex(str string) (ActorID, error) {
	if str == "" {
		return InitialActorID, fmt.Errorf("%s: %w", str, ErrInvalidHexString)
	}

	decoded, err := hex.DecodeString(str)
	if err != nil {
		return InitialActorID, fmt.Errorf("%s: %w", str, ErrInvalidHexString)
	}

	if len(decoded) != actorIDSize {
		return InitialActorID, fmt.Errorf("decoded length %d: %w", len(decoded), ErrInvalidHexString)
	}

	return ActorID(decoded), nil
}

// ActorIDFromBytes returns the ActorID represented by the given bytes.
func ActorIDFromBytes(b []byte) (ActorID, error) {
	if len(b) != actorIDSize {
		return InitialActorID, fmt.Errorf("bytes length %d: %w", len(b), ErrInvalidActorID)
	}

	return ActorID(b), nil
}

// String returns the hexadecimal encoding of ActorID.
func (id ActorID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns a copy of the bytes of ActorID.
func (id ActorID) Bytes() []byte {
	b := make([]byte, actorIDSize)
	copy(b, id[:])
	return b
}

// Compare returns an integer comparing two ActorIDs lexicographically.
// The result will be 0 if id==other, -1 if id < other, and +1 if id > other.
func (id ActorID) Compare(other ActorID) int {
	return bytes.Compare(id[:], other[:])
}
