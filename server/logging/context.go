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
)

type ctxKey struct{}

// With returns a copy of ctx that carries the logger. Routines started by
// the background manager and the housekeeping tasks receive their logger
// this way.
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithRoom returns a copy of ctx whose logger is tagged with the room key.
func WithRoom(ctx context.Context, roomKey string) context.Context {
	return With(ctx, From(ctx).With(NewField("room", roomKey)))
}

// From returns the logger carried by ctx, falling back to the default
// logger.
func From(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(Logger); ok && logger != nil {
			return logger
		}
	}
	return DefaultLogger()
}
