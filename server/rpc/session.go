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

package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/document/key"
	relayerrors "github.com/yorkie-team/relay/pkg/errors"
	"github.com/yorkie-team/relay/pkg/protocol"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/rooms"
)

const (
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

var (
	// errSlowConsumer is returned when the send queue of a connection is
	// full or the room has dropped it.
	errSlowConsumer = relayerrors.Unavailable("send queue full").WithCode("ErrSlowConsumer")

	// errServerShutdown is returned when the server closes the session.
	errServerShutdown = errors.New("server shutting down")
)

// session serves one WebSocket connection bound to one room.
type session struct {
	id      document.Origin
	roomKey key.Key
	conf    *Config
	be      *backend.Backend
	conn    *websocket.Conn
	logger  logging.Logger
}

func newSession(conf *Config, be *backend.Backend, conn *websocket.Conn, roomKey key.Key) *session {
	id := document.Origin(xid.New().String())
	return &session{
		id:      id,
		roomKey: roomKey,
		conf:    conf,
		be:      be,
		conn:    conn,
		logger: logging.New("SESS",
			logging.NewField("room", roomKey.String()),
			logging.NewField("conn", string(id)),
		),
	}
}

// run serves the connection until the peer leaves, an error occurs or ctx
// is canceled.
func (s *session) run(ctx context.Context) {
	s.be.Metrics.AddConnections(1)
	defer s.be.Metrics.AddConnections(-1)
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debugf("close conn: %v", err)
		}
	}()

	room := s.be.Rooms.Get(s.roomKey)
	if err := room.WaitLoaded(ctx); err != nil {
		if ctx.Err() != nil {
			s.close(relayerrors.CloseGoingAway, "server shutting down")
			return
		}
		s.logger.Warnf("load room: %v", err)
		s.close(relayerrors.CloseCodeOf(err), relayerrors.CodeOf(err))
		return
	}

	sub := rooms.NewSubscription(s.id, s.conf.SendQueueSize)
	unsubscribe := room.Subscribe(sub)
	s.logger.Debugf("connected, %d subscribers", room.Subscribers())

	err := s.serve(ctx, room, sub)

	unsubscribe()
	sub.Close()
	room.Leave(s.id)

	flushCtx, cancel := context.WithTimeout(context.Background(), s.be.Config.ParseStoreTimeout())
	if err := room.Flush(flushCtx); err != nil {
		s.logger.Errorf("flush on leave: %v", err)
	}
	cancel()

	s.closeWith(err)
}

// serve runs the reader and the writer of the connection.
func (s *session) serve(ctx context.Context, room *rooms.Room, sub *rooms.Subscription) error {
	pingInterval := s.conf.ParsePingInterval()
	s.conn.SetReadLimit(s.conf.MaxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(2 * pingInterval)); err != nil {
		return err
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.read(room, sub)
	})
	g.Go(func() error {
		return s.write(gctx, sub, pingInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks the reader.
		return s.conn.SetReadDeadline(time.Now())
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return errServerShutdown
	}
	return err
}

// read handles incoming frames. A malformed frame is logged and dropped;
// the connection stays open.
func (s *session) read(room *rooms.Room, sub *rooms.Subscription) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.BinaryMessage {
			s.malformed(fmt.Errorf("message type %d: %w", messageType, protocol.ErrMalformedFrame))
			continue
		}

		if err := s.handle(room, sub, data); err != nil {
			if !relayerrors.IsStatus(err, relayerrors.ErrCodeInvalidArgument) {
				return err
			}
			s.malformed(err)
		}
	}
}

func (s *session) handle(room *rooms.Room, sub *rooms.Subscription, data []byte) error {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}
	s.be.Metrics.AddReceivedFrame(frame.Type.String())

	switch frame.Type {
	case protocol.MessageSync:
		reply, err := room.HandleSync(frame, s.id)
		if err != nil {
			return err
		}
		if reply != nil && !sub.Publish(reply) {
			return errSlowConsumer
		}
		return nil
	case protocol.MessageAwareness:
		return room.ApplyPresence(frame.Payload, s.id)
	default:
		return fmt.Errorf("message type %d: %w", frame.Type, protocol.ErrMalformedFrame)
	}
}

func (s *session) malformed(err error) {
	reason := relayerrors.CodeOf(err)
	if reason == "" {
		reason = relayerrors.StatusOf(err).String()
	}
	s.be.Metrics.AddMalformedFrame(reason)
	s.logger.Warnf("drop malformed frame: %v", err)
}

// write sends queued frames and keepalive pings.
func (s *session) write(ctx context.Context, sub *rooms.Subscription, pingInterval time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return errSlowConsumer
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return err
			}
			if len(frame) > 0 {
				s.be.Metrics.AddSentFrame(protocol.MessageType(frame[0]).String())
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// closeWith closes the connection with the close code matching err.
func (s *session) closeWith(err error) {
	switch {
	case err == nil:
		s.close(relayerrors.CloseNormal, "")
	case errors.Is(err, errServerShutdown):
		s.close(relayerrors.CloseGoingAway, "server shutting down")
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Warnf("message exceeds %d bytes", s.conf.MaxMessageSize)
		s.close(relayerrors.CloseMessageTooBig, "message too big")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Debugf("peer left: %v", err)
	case websocket.IsUnexpectedCloseError(err):
		s.logger.Debugf("peer closed: %v", err)
	case relayerrors.StatusOf(err) != 0:
		s.logger.Warnf("close session: %v", err)
		s.close(relayerrors.CloseCodeOf(err), relayerrors.CodeOf(err))
	default:
		s.logger.Debugf("connection ended: %v", err)
	}
}

func (s *session) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil {
		s.logger.Debugf("write close %d: %v", code, err)
	}
}
