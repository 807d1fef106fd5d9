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

package key_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/pkg/document/key"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want key.Key
	}{
		{"empty", "", key.Default},
		{"root", "/", key.Default},
		{"simple", "/doc1", "doc1"},
		{"without leading slash", "doc1", "doc1"},
		{"room query", "/?room=doc1", "doc1"},
		{"empty room query", "/?room=", key.Default},
		{"nested path", "/team/doc1", "team_doc1"},
		{"reserved characters", `/a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"query string", "/doc1?token=abc", "doc1_token=abc"},
		{"control characters", "/doc\x00\x1f\x7f1", "doc___1"},
		{"invalid utf8", "/doc\xff1", "doc_1"},
		{"unicode", "/문서-1", "문서-1"},
		{"double slash", "//doc1", "_doc1"},
		{"parent directory", "/..", "_."},
		{"current directory", "/.", "_"},
		{"hidden name", "/.tmp-notes", "_tmp-notes"},
		{"inner dot", "/notes.v2", "notes.v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, key.FromPath(tt.raw))
		})
	}
}

func TestFromPathInvariants(t *testing.T) {
	inputs := []string{
		"", "/", "/doc1", "/?room=doc1", "/a/b", "/a_b", `/..\..\etc/passwd`,
		"/?room=/x", "/" + strings.Repeat("가", 300), "/\x00",
		"/..", "/.", "/.tmp-x", "/?room=..",
	}

	t.Run("idempotent", func(t *testing.T) {
		for _, raw := range inputs {
			k := key.FromPath(raw)
			assert.Equal(t, k, key.FromPath(k.String()), raw)
		}
	})

	t.Run("safe to embed in a file name", func(t *testing.T) {
		for _, raw := range inputs {
			k := key.FromPath(raw)
			assert.NotEmpty(t, k)
			assert.LessOrEqual(t, len(k), key.MaxLength)
			assert.NotContains(t, k.String(), "/")
			assert.NotContains(t, k.String(), `\`)
			assert.False(t, strings.HasPrefix(k.String(), "."), raw)
		}
	})

	t.Run("colliding inputs address the same room", func(t *testing.T) {
		assert.Equal(t, key.FromPath("/a/b"), key.FromPath("/a_b"))
	})
}
