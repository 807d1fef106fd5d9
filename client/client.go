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

// Package client provides a client of the relay. A client keeps a local
// document and presence in sync with one room of the relay over a
// WebSocket connection.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/presence"
	"github.com/yorkie-team/relay/pkg/protocol"
)

// OriginRemote is the origin of changes received from the relay.
const OriginRemote document.Origin = "remote"

const writeTimeout = 10 * time.Second

// ErrClientClosed is returned when the connection of the client is closed.
var ErrClientClosed = errors.New("client closed")

// Client is a client connected to one room of the relay.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	// mu guards doc, awareness and received.
	mu        sync.Mutex
	doc       *document.Doc
	awareness *presence.Awareness
	received  [][]byte

	writeMu sync.Mutex

	synced     chan struct{}
	syncedOnce sync.Once

	done      chan struct{}
	closeCode int
	err       error
}

// Dial connects to the room addressed by the given URL, e.g.
// "ws://localhost:11101/room-1", and starts the sync handshake.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.PresenceID == 0 {
		options.PresenceID = presence.ClientID(rand.Uint32())
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := *websocket.DefaultDialer
	if options.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = options.HandshakeTimeout
	}
	conn, resp, err := dialer.DialContext(ctx, url, options.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:      conn,
		logger:    logger.With(zap.String("url", url)),
		doc:       document.New(),
		awareness: presence.New(options.PresenceID),
		synced:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.doc.OnUpdate(c.onUpdate)
	c.awareness.OnChange(c.onPresence)

	c.mu.Lock()
	sv := c.doc.EncodeStateVector()
	c.mu.Unlock()
	if err := c.send(protocol.EncodeSyncStep1(sv)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// onUpdate sends local edits. It is called with mu held.
func (c *Client) onUpdate(update []byte, origin document.Origin) {
	if origin != document.OriginLocal {
		return
	}
	if err := c.send(protocol.EncodeUpdate(update)); err != nil {
		c.logger.Warn("send update", zap.Error(err))
	}
}

// onPresence sends changes of the local presence. It is called with mu
// held.
func (c *Client) onPresence(change presence.Change, origin document.Origin) {
	if origin != document.OriginLocal {
		return
	}
	if err := c.send(protocol.EncodeAwareness(c.awareness.EncodeUpdate(change.All()))); err != nil {
		c.logger.Warn("send presence", zap.Error(err))
	}
}

func (c *Client) send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.writeMu.Lock()
		c.err = err
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			c.closeCode = closeErr.Code
		}
		close(c.done)
		c.writeMu.Unlock()
	}()

	for {
		var data []byte
		if _, data, err = c.conn.ReadMessage(); err != nil {
			return
		}
		frame, decodeErr := protocol.DecodeFrame(data)
		if decodeErr != nil {
			c.logger.Warn("drop malformed frame", zap.Error(decodeErr))
			continue
		}
		if handleErr := c.handle(frame); handleErr != nil {
			c.logger.Warn("handle frame", zap.Error(handleErr))
		}
	}
}

func (c *Client) handle(frame *protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.Type == protocol.MessageAwareness {
		return c.awareness.ApplyUpdate(frame.Payload, OriginRemote)
	}

	switch frame.SyncType {
	case protocol.SyncStep2:
		defer c.syncedOnce.Do(func() { close(c.synced) })
	case protocol.SyncUpdate:
		c.received = append(c.received, frame.Payload)
	}

	reply, err := protocol.HandleSync(c.doc, frame, OriginRemote)
	if err != nil {
		return err
	}
	if reply != nil {
		return c.send(reply)
	}
	return nil
}

// Synced blocks until the initial state of the room has been received.
func (c *Client) Synced(ctx context.Context) error {
	select {
	case <-c.synced:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Set assigns the value to the key and sends the change to the room.
func (c *Client) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Set(key, value)
}

// Delete removes the key and sends the change to the room.
func (c *Client) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Delete(key)
}

// Get returns the value of the key in the local document.
func (c *Client) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doc.Get(key)
}

// Text returns the text extract of the local document.
func (c *Client) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doc.Text()
}

// State returns the full state of the local document as an update.
func (c *Client) State() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doc.EncodeStateAsUpdate()
}

// ReceivedUpdates returns the update frames received from the relay since
// the client connected. The handshake is not included.
func (c *Client) ReceivedUpdates() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([][]byte{}, c.received...)
}

// PresenceID returns the presence client id of the client.
func (c *Client) PresenceID() presence.ClientID {
	return c.awareness.ClientID()
}

// SetPresence replaces the presence state of the client. A nil state
// removes it.
func (c *Client) SetPresence(state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.awareness.SetLocalState(state)
}

// Presence returns the presence states known to the client.
func (c *Client) Presence() map[presence.ClientID]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.awareness.GetStates()
}

// Done returns a channel closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseCode returns the close code sent by the relay, or 0 if the
// connection is open or ended without a close frame.
func (c *Client) CloseCode() int {
	select {
	case <-c.done:
		return c.closeCode
	default:
		return 0
	}
}

// Close closes the connection with a normal closure and waits for the
// relay to acknowledge it.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("write close", zap.Error(err))
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return c.conn.Close()
}
