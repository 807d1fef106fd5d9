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

package client

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yorkie-team/relay/pkg/presence"
)

// Option configures Options.
type Option func(*Options)

// Options configures how we set up the client.
type Options struct {
	// PresenceID is the presence client id of the client. A random one is
	// used when it is zero.
	PresenceID presence.ClientID

	// Header is sent with the WebSocket handshake request.
	Header http.Header

	// HandshakeTimeout bounds the WebSocket handshake.
	HandshakeTimeout time.Duration

	// Logger is the Logger of the client.
	Logger *zap.Logger
}

// WithPresenceID configures the presence client id of the client.
func WithPresenceID(id presence.ClientID) Option {
	return func(o *Options) { o.PresenceID = id }
}

// WithHeader configures the header of the handshake request.
func WithHeader(header http.Header) Option {
	return func(o *Options) { o.Header = header }
}

// WithHandshakeTimeout configures the timeout of the handshake.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.HandshakeTimeout = timeout }
}

// WithLogger configures the Logger of the client.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
