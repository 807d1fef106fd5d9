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

// Package rpc is the sync relay of the relay server. It accepts WebSocket
// connections, one room per connection selected by the request path, and
// relays sync and presence frames between the connections of a room.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/logging"
)

const healthPath = "/healthz"

// Server is the WebSocket server that serves the rooms of the backend.
type Server struct {
	conf       *Config
	be         *backend.Backend
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	// sessionCtx is canceled on shutdown to close every session.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) *Server {
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	s := &Server{
		conf:          conf,
		be:            be,
		sessionCtx:    sessionCtx,
		sessionCancel: sessionCancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	router := mux.NewRouter()
	router.Use(s.metricsMiddleware)
	router.Methods(http.MethodGet, http.MethodHead).Path(healthPath).HandlerFunc(s.health)
	router.PathPrefix("/").HandlerFunc(s.serveRoom)

	s.httpServer = &http.Server{Handler: router}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		return fmt.Errorf("listen rpc on %d: %w", s.conf.Port, err)
	}
	if s.conf.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.conf.MaxConnections)
	}
	s.listener = listener

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		var err error
		if s.conf.CertFile != "" && s.conf.KeyFile != "" {
			err = s.httpServer.ServeTLS(listener, s.conf.CertFile, s.conf.KeyFile)
		} else {
			err = s.httpServer.Serve(listener)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Errorf("rpc server: %v", err)
		}
	}()

	return nil
}

// Shutdown stops accepting connections and closes every session. Sessions
// flush their room before they end; Shutdown waits for them.
func (s *Server) Shutdown(graceful bool) {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Errorf("rpc server shutdown: %v", err)
		}
	} else if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Errorf("rpc server close: %v", err)
	}

	s.sessionCancel()
	s.sessions.Wait()
}

// track registers a session unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.conf.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.conf.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.be.Metrics.AddHTTPRequest(r.Method, m.Code, m.Duration.Seconds())
		logging.DefaultLogger().Debugf(
			"RPC : %s %s %d %s",
			r.Method,
			r.URL.Path,
			m.Code,
			m.Duration,
		)
	})
}

// health reports that the server is serving.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]string{"status": "ok"})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		if _, err := w.Write(resp); err != nil {
			logging.DefaultLogger().Warnf("write health: %v", err)
		}
	}
}

// serveRoom upgrades the connection and serves it until it closes.
func (s *Server) serveRoom(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	roomKey := key.FromPath(r.URL.RequestURI())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		logging.DefaultLogger().Debugf("upgrade %s: %v", roomKey, err)
		return
	}

	newSession(s.conf, s.be, conn, roomKey).run(s.sessionCtx)
}
