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

package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/yorkie-team/relay/pkg/document"
	relayerrors "github.com/yorkie-team/relay/pkg/errors"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected zapcore.Level
	}{
		{"nil error", nil, zapcore.DebugLevel},
		{"context canceled", fmt.Errorf("read: %w", context.Canceled), zapcore.DebugLevel},
		{"malformed update", fmt.Errorf("apply: %w", document.ErrMalformedUpdate), zapcore.InfoLevel},
		{"not found", relayerrors.NotFound("room"), zapcore.InfoLevel},
		{"resource exhausted", relayerrors.ResourceExhausted("queue full"), zapcore.WarnLevel},
		{"unavailable", relayerrors.Unavailable("store"), zapcore.ErrorLevel},
		{"internal", relayerrors.Internal("broken"), zapcore.ErrorLevel},
		{"plain error", errors.New("plain"), zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevelOf(tt.err))
		})
	}
}

func TestLoggerOptions(t *testing.T) {
	t.Run("log level", func(t *testing.T) {
		assert.NoError(t, SetLogLevel("debug"))
		assert.True(t, Enabled(zapcore.DebugLevel))
		assert.NoError(t, SetLogLevel("INFO"))
		assert.False(t, Enabled(zapcore.DebugLevel))
		assert.Error(t, SetLogLevel("verbose"))
	})

	t.Run("log format", func(t *testing.T) {
		assert.NoError(t, SetLogFormat("json"))
		assert.NoError(t, SetLogFormat("console"))
		assert.Error(t, SetLogFormat("xml"))
	})

	t.Run("logger in context", func(t *testing.T) {
		logger := New("test", NewField("room", "doc1"))
		ctx := With(context.Background(), logger)
		assert.Same(t, logger, From(ctx))
		assert.Same(t, DefaultLogger(), From(context.Background()))
	})

	t.Run("room logger in context", func(t *testing.T) {
		base := New("test")
		ctx := WithRoom(With(context.Background(), base), "doc1")
		assert.NotSame(t, base, From(ctx))
		assert.NotNil(t, From(WithRoom(context.Background(), "doc2")))
	})
}
