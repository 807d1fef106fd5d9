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

// Package binary provides the variable-length encoding used by the sync and
// awareness wire protocol: unsigned varints, length-prefixed byte arrays and
// length-prefixed UTF-8 strings. The varint layout is the same as the one of
// Protocol Buffers, seven bits per byte, least significant group first.
package binary

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnexpectedEOF is returned when the input ends in the middle of a value.
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	// ErrOverflow is returned when a varint does not fit in 64 bits.
	ErrOverflow = errors.New("varint overflows uint64")

	// ErrInvalidUTF8 is returned when a string is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8 string")
)

// Encoder appends values to a growing buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// WriteVarUint appends an unsigned varint.
func (e *Encoder) WriteVarUint(v uint64) {
	e.buf = protowire.AppendVarint(e.buf, v)
}

// WriteVarBytes appends the length of b followed by b.
func (e *Encoder) WriteVarBytes(b []byte) {
	e.buf = protowire.AppendBytes(e.buf, b)
}

// WriteVarString appends the length of s followed by s.
func (e *Encoder) WriteVarString(s string) {
	e.buf = protowire.AppendString(e.buf, s)
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads values from a byte slice.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a new Decoder reading from b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// HasContent returns true if there are unread bytes.
func (d *Decoder) HasContent() bool {
	return d.pos < len(d.buf)
}

// ReadVarUint reads an unsigned varint.
func (d *Decoder) ReadVarUint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.buf[d.pos:])
	if n < 0 {
		return 0, fmt.Errorf("read varuint at %d: %w", d.pos, convertErr(n))
	}
	d.pos += n
	return v, nil
}

// ReadVarBytes reads a length-prefixed byte array. The returned slice aliases
// the input.
func (d *Decoder) ReadVarBytes() ([]byte, error) {
	b, n := protowire.ConsumeBytes(d.buf[d.pos:])
	if n < 0 {
		return nil, fmt.Errorf("read varbytes at %d: %w", d.pos, convertErr(n))
	}
	d.pos += n
	return b, nil
}

// ReadVarString reads a length-prefixed UTF-8 string.
func (d *Decoder) ReadVarString() (string, error) {
	b, err := d.ReadVarBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("read varstring at %d: %w", d.pos, ErrInvalidUTF8)
	}
	return string(b), nil
}

func convertErr(n int) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return ErrOverflow
}
