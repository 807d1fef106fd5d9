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

package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarUint(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{1<<64 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, tt := range tests {
		enc := NewEncoder()
		enc.WriteVarUint(tt.value)
		assert.Equal(t, tt.encoded, enc.Bytes())

		dec := NewDecoder(enc.Bytes())
		v, err := dec.ReadVarUint()
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
		assert.False(t, dec.HasContent())
	}
}

func TestVarBytesAndStrings(t *testing.T) {
	enc := NewEncoder()
	enc.WriteVarUint(0)
	enc.WriteVarBytes([]byte{1, 2, 3})
	enc.WriteVarString(`{"name":"a"}`)
	enc.WriteVarBytes(nil)
	assert.Equal(t, 1+4+13+1, enc.Len())

	dec := NewDecoder(enc.Bytes())
	tag, err := dec.ReadVarUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tag)

	b, err := dec.ReadVarBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	s, err := dec.ReadVarString()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a"}`, s)

	b, err = dec.ReadVarBytes()
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.False(t, dec.HasContent())
}

func TestMalformedInput(t *testing.T) {
	t.Run("truncated varuint", func(t *testing.T) {
		_, err := NewDecoder([]byte{0x80}).ReadVarUint()
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := NewDecoder(nil).ReadVarUint()
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})

	t.Run("overflowing varuint", func(t *testing.T) {
		_, err := NewDecoder([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}).ReadVarUint()
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("length beyond input", func(t *testing.T) {
		_, err := NewDecoder([]byte{0x05, 0x01, 0x02}).ReadVarBytes()
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := NewDecoder([]byte{0x02, 0xc3, 0x28}).ReadVarString()
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
}
