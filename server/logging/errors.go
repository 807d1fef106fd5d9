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
	"time"

	"go.uber.org/zap/zapcore"

	relayerrors "github.com/yorkie-team/relay/pkg/errors"
)

// LevelOf returns the level at which a failure of a connection or of a
// background task should be logged. Peer mistakes are expected and logged
// quietly; storage outages and broken invariants are not.
func LevelOf(err error) zapcore.Level {
	if err == nil || errors.Is(err, context.Canceled) {
		return zapcore.DebugLevel
	}

	switch relayerrors.StatusOf(err) {
	case relayerrors.ErrCodeInvalidArgument, relayerrors.ErrCodeNotFound:
		return zapcore.InfoLevel
	case relayerrors.ErrCodeResourceExhausted, relayerrors.ErrCodeFailedPrecondition,
		relayerrors.ErrCodeAlreadyExists:
		return zapcore.WarnLevel
	case relayerrors.ErrCodeUnavailable, relayerrors.ErrCodeInternal:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// LogError logs the error of the named operation at the level chosen by
// LevelOf.
func LogError(logger Logger, operation string, duration time.Duration, err error) {
	const template = "%s %s => %q"
	switch LevelOf(err) {
	case zapcore.DebugLevel:
		logger.Debugf(template, operation, duration, err)
	case zapcore.InfoLevel:
		logger.Infof(template, operation, duration, err)
	case zapcore.ErrorLevel:
		logger.Errorf(template, operation, duration, err)
	default:
		logger.Warnf(template, operation, duration, err)
	}
}
