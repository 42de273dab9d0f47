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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certrotor/certrotor/certloader"
)

func TestBackendDialersInvalidTarget(t *testing.T) {
	resetFlags()

	*forwardAddress = "systemd:backend"
	_, _, err := backendDialers(nil)
	assert.NotNil(t, err, "systemd targets should be rejected")

	*forwardAddress = "no-port-here"
	_, _, err = backendDialers(nil)
	assert.NotNil(t, err, "target without a port should be rejected")
}

func TestRawDialDoesNotConsumeRotationSlots(t *testing.T) {
	resetFlags()
	*connectTimeout = 1 * time.Second

	backend, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "should be able to listen on random port")
	defer backend.Close()

	pool := testPool(t)
	supplier := certloader.NewRotatingSupplier(pool, logger)
	config := certloader.TLSClientConfigFromSupplier(supplier, nil, nil)

	*forwardAddress = backend.Addr().String()
	_, rawDial, err := backendDialers(config)
	require.NoError(t, err)

	// Health checks go through the raw dialer and must not advance the
	// rotation cursor.
	for i := 0; i < 3; i++ {
		conn, err := rawDial()
		require.NoError(t, err, "raw dial should reach the backend")
		conn.Close()
	}

	assert.Equal(t, uint64(0), pool.TotalConnections(), "health checks should not consume rotation slots")
}
