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

package document

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yorkie-team/relay/pkg/document/time"
)

// Field numbers of the update encoding. An update is a sequence of
// operations; a state vector is a sequence of (actor, counter) entries.
const (
	fieldUpdateOp protowire.Number = 1

	fieldOpActor   protowire.Number = 1
	fieldOpCounter protowire.Number = 2
	fieldOpLamport protowire.Number = 3
	fieldOpKey     protowire.Number = 4
	fieldOpValue   protowire.Number = 5
	fieldOpDeleted protowire.Number = 6

	fieldVectorEntry protowire.Number = 1

	fieldEntryActor   protowire.Number = 1
	fieldEntryCounter protowire.Number = 2
)

// Op is a single register assignment. Counter numbers the operations of an
// actor contiguously from 1; Lamport orders assignments to the same key.
type Op struct {
	Actor   time.ActorID
	Counter uint64
	Lamport uint64
	Key     string
	Value   []byte
	Deleted bool
}

// wins returns true if the op overrides an assignment made at the given
// lamport by the given actor.
func (o *Op) wins(lamport uint64, actor time.ActorID) bool {
	if o.Lamport != lamport {
		return o.Lamport > lamport
	}
	return o.Actor.Compare(actor) > 0
}

// sortOps orders ops by actor then counter, which makes encodings of equal
// op sets byte-identical.
func sortOps(ops []*Op) {
	sort.Slice(ops, func(i, j int) bool {
		if c := ops[i].Actor.Compare(ops[j].Actor); c != 0 {
			return c < 0
		}
		return ops[i].Counter < ops[j].Counter
	})
}

func encodeOps(ops []*Op) []byte {
	var buf []byte
	for _, op := range ops {
		buf = protowire.AppendTag(buf, fieldUpdateOp, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeOp(op))
	}
	return buf
}

func encodeOp(op *Op) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldOpActor, protowire.BytesType)
	buf = protowire.AppendBytes(buf, op.Actor[:])
	buf = protowire.AppendTag(buf, fieldOpCounter, protowire.VarintType)
	buf = protowire.AppendVarint(buf, op.Counter)
	buf = protowire.AppendTag(buf, fieldOpLamport, protowire.VarintType)
	buf = protowire.AppendVarint(buf, op.Lamport)
	buf = protowire.AppendTag(buf, fieldOpKey, protowire.BytesType)
	buf = protowire.AppendString(buf, op.Key)
	if !op.Deleted {
		buf = protowire.AppendTag(buf, fieldOpValue, protowire.BytesType)
		buf = protowire.AppendBytes(buf, op.Value)
	} else {
		buf = protowire.AppendTag(buf, fieldOpDeleted, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeBool(true))
	}
	return buf
}

// DecodeUpdate decodes the operations of an update. It fails with
// ErrMalformedUpdate without returning any operation if any part of the
// update is invalid.
func DecodeUpdate(update []byte) ([]*Op, error) {
	var ops []*Op
	err := forEachField(update, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldUpdateOp || typ != protowire.BytesType {
			return skipField(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		op, err := decodeOp(v)
		if err != nil {
			return 0, err
		}
		ops = append(ops, op)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode update: %w: %w", ErrMalformedUpdate, err)
	}
	return ops, nil
}

func decodeOp(b []byte) (*Op, error) {
	op := &Op{}
	var hasActor, hasKey bool
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldOpActor && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			actor, err := time.ActorIDFromBytes(v)
			if err != nil {
				return 0, err
			}
			op.Actor, hasActor = actor, true
			return n, nil
		case num == fieldOpCounter && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			op.Counter = v
			return n, protowire.ParseError(n)
		case num == fieldOpLamport && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			op.Lamport = v
			return n, protowire.ParseError(n)
		case num == fieldOpKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			op.Key, hasKey = string(v), true
			return n, protowire.ParseError(n)
		case num == fieldOpValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			op.Value = append([]byte{}, v...)
			return n, protowire.ParseError(n)
		case num == fieldOpDeleted && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			op.Deleted = protowire.DecodeBool(v)
			return n, protowire.ParseError(n)
		default:
			return skipField(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	if !hasActor || !hasKey {
		return nil, errors.New("op without actor or key")
	}
	if op.Counter == 0 || op.Lamport == 0 {
		return nil, fmt.Errorf("op %s:%d without counter or lamport", op.Actor, op.Counter)
	}
	if op.Deleted {
		op.Value = nil
	}
	return op, nil
}

func encodeStateVector(sv time.StateVector) []byte {
	var buf []byte
	for _, actor := range sv.Actors() {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryActor, protowire.BytesType)
		entry = protowire.AppendBytes(entry, actor[:])
		entry = protowire.AppendTag(entry, fieldEntryCounter, protowire.VarintType)
		entry = protowire.AppendVarint(entry, sv.Get(actor))

		buf = protowire.AppendTag(buf, fieldVectorEntry, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}
	return buf
}

// DecodeStateVector decodes an encoded state vector.
func DecodeStateVector(b []byte) (time.StateVector, error) {
	sv := time.NewStateVector()
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldVectorEntry || typ != protowire.BytesType {
			return skipField(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}

		var actor time.ActorID
		var counter uint64
		var hasActor bool
		if err := forEachField(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == fieldEntryActor && typ == protowire.BytesType:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return 0, protowire.ParseError(n)
				}
				id, err := time.ActorIDFromBytes(v)
				actor, hasActor = id, err == nil
				return n, err
			case num == fieldEntryCounter && typ == protowire.VarintType:
				v, n := protowire.ConsumeVarint(b)
				counter = v
				return n, protowire.ParseError(n)
			default:
				return skipField(num, typ, b)
			}
		}); err != nil {
			return 0, err
		}
		if !hasActor {
			return 0, errors.New("state vector entry without actor")
		}
		sv.Set(actor, counter)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode state vector: %w: %w", ErrMalformedUpdate, err)
	}
	return sv, nil
}

// forEachField calls fn with the remaining input after each field tag. fn
// returns the number of bytes of the field value it consumed.
func forEachField(
	b []byte,
	fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error),
) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
