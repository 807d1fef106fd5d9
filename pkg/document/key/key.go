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

// Package key provides the identifier of a room.
package key

import (
	"strings"
	"unicode/utf8"
)

const (
	// Default is the key of the room addressed by an empty path.
	Default Key = "default"

	// MaxLength is the maximum length of a key in bytes. Longer inputs are
	// truncated so that keys always fit in a file name.
	MaxLength = 200

	roomQueryPrefix = "?room="
)

// Key is a sanitized room identifier. It is never empty and never contains
// path separators or characters that are special to file systems, so it can
// be embedded in storage keys and file names as is. It never starts with a
// dot.
type Key string

// FromPath derives a Key from the untrusted request target of a connection,
// e.g. "/doc1" or "/?room=doc1". FromPath is idempotent. Different inputs may
// map to the same key, e.g. "/a/b" and "/a_b"; such inputs address the same
// room.
func FromPath(raw string) Key {
	if raw == "" || raw == "/" {
		return Default
	}

	s := strings.TrimPrefix(raw, "/")
	s = strings.TrimPrefix(s, roomQueryPrefix)

	var sb strings.Builder
	for _, r := range s {
		if sb.Len()+utf8.RuneLen(r) > MaxLength {
			break
		}
		// a leading dot would yield hidden or relative file names
		if isReserved(r) || (sb.Len() == 0 && r == '.') {
			sb.WriteByte('_')
			continue
		}
		sb.WriteRune(r)
	}

	if sb.Len() == 0 {
		return Default
	}
	return Key(sb.String())
}

// isReserved returns true if the rune may not appear in a key.
func isReserved(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|', utf8.RuneError:
		return true
	}
	return r < 0x20 || r == 0x7f
}

// String returns the string representation of the key.
func (k Key) String() string {
	return string(k)
}
