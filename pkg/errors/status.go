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

// Package errors provides errors that carry a status. The status decides how
// the relay reacts to a failure: which ones are logged and swallowed, which
// ones close a connection and with which WebSocket close code.
package errors

import "fmt"

// StatusCode represents the status of an error.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates that the peer sent something that can
	// never be accepted, regardless of the state of the system.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates that the addressed entity does not exist.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates that the entity already exists.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodeResourceExhausted indicates that a bounded resource, such as a
	// send queue or a message size limit, has been exceeded.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates that the system is not in a state
	// required for the operation.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates that an invariant of the system was broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates a temporary failure, usually of the
	// persistence backend. Callers may retry.
	ErrCodeUnavailable StatusCode = 14
)

// WebSocket close codes, RFC 6455 section 7.4.1 and the IANA registry.
const (
	CloseNormal            = 1000
	CloseGoingAway         = 1001
	CloseInvalidPayload    = 1007
	ClosePolicyViolation   = 1008
	CloseMessageTooBig     = 1009
	CloseInternalServerErr = 1011
	CloseTryAgainLater     = 1013
)

// String returns the string representation of the status code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeFailedPrecondition:
		return "failed_precondition"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// CloseCode returns the WebSocket close code used when a connection is
// terminated because of an error with this status.
func (c StatusCode) CloseCode() int {
	switch c {
	case 0:
		return CloseNormal
	case ErrCodeInvalidArgument:
		return CloseInvalidPayload
	case ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeFailedPrecondition:
		return ClosePolicyViolation
	case ErrCodeResourceExhausted:
		return CloseMessageTooBig
	case ErrCodeUnavailable:
		return CloseTryAgainLater
	default:
		return CloseInternalServerErr
	}
}

// IsTemporary returns true if an operation failing with this status may
// succeed when retried later.
func (c StatusCode) IsTemporary() bool {
	return c == ErrCodeUnavailable
}
