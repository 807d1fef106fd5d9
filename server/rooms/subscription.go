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

package rooms

import (
	"sync"

	"github.com/yorkie-team/relay/pkg/document"
)

// Subscription is the bounded send queue of one connection subscribed to a
// room.
type Subscription struct {
	id     document.Origin
	mu     sync.Mutex
	closed bool
	frames chan []byte
}

// NewSubscription creates a new instance of Subscription with the given
// buffer size.
func NewSubscription(id document.Origin, bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Subscription{
		id:     id,
		frames: make(chan []byte, bufSize),
	}
}

// ID returns the origin of the subscriber. Changes with this origin are not
// published to it.
func (s *Subscription) ID() document.Origin {
	return s.id
}

// Frames returns the frame channel of this subscription. It is closed when
// the subscription is closed.
func (s *Subscription) Frames() <-chan []byte {
	return s.frames
}

// Publish enqueues the given frame without blocking. It returns false if the
// subscription is closed or its queue is full.
func (s *Subscription) Publish(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

// Close closes the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// Closed returns true if the subscription has been closed.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
