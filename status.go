/*-
 * Copyright 2026 Certrotor Authors
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

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/certrotor/certrotor/certloader"
)

type statusHandler struct {
	// Mutex for locking
	mu *sync.Mutex
	// Raw backend dialer to check if the target is up. Must not go through
	// the supplier, so that health checks never consume rotation slots.
	dial func() (net.Conn, error)
	// Credential pool, for reporting rotation state
	pool *certloader.Pool
	// Current status
	listening bool
}

type statusResponse struct {
	Ok               bool      `json:"ok"`
	Status           string    `json:"status"`
	BackendOk        bool      `json:"backend_ok"`
	BackendStatus    string    `json:"backend_status"`
	BackendError     string    `json:"backend_error,omitempty"`
	PoolSize         int       `json:"pool_size"`
	TotalConnections uint64    `json:"total_connections"`
	Time             time.Time `json:"time"`
	Hostname         string    `json:"hostname,omitempty"`
	Message          string    `json:"message"`
	Revision         string    `json:"revision"`
	Compiler         string    `json:"compiler"`
}

func newStatusHandler(dial func() (net.Conn, error), pool *certloader.Pool) *statusHandler {
	return &statusHandler{
		mu:   &sync.Mutex{},
		dial: dial,
		pool: pool,
	}
}

func (s *statusHandler) Listening() {
	s.mu.Lock()
	s.listening = true
	s.mu.Unlock()
}

// BackendReachable dials the backend over a raw connection and reports
// whether it accepted. Used by the watchdog and the status endpoint.
func (s *statusHandler) BackendReachable() bool {
	conn, err := s.dial()
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (s *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Time:     time.Now(),
		Revision: version,
		Compiler: runtime.Version(),
	}

	conn, err := s.dial()
	resp.BackendOk = err == nil
	if resp.BackendOk {
		conn.Close()
		resp.BackendStatus = "ok"
	} else {
		resp.BackendError = err.Error()
		resp.BackendStatus = "critical"
	}

	resp.PoolSize = s.pool.Size()
	resp.TotalConnections = s.pool.TotalConnections()

	s.mu.Lock()
	resp.Ok = s.listening && resp.BackendOk
	if s.listening {
		resp.Message = "listening"
	} else {
		resp.Message = "initializing"
	}
	s.mu.Unlock()

	if resp.Ok {
		resp.Status = "ok"
	} else {
		resp.Status = "critical"
	}

	hostname, err := os.Hostname()
	if err == nil {
		resp.Hostname = hostname
	}

	out, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !resp.Ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(out)
}
