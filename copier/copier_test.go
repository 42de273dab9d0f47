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

package copier

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPair returns two ends of a loopback TCP connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err = net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	return client, server
}

func TestSimpleCopierMovesData(t *testing.T) {
	clientNear, clientFar := tcpPair(t)
	backendNear, backendFar := tcpPair(t)
	defer clientNear.Close()
	defer backendFar.Close()

	done := make(chan struct{})
	go func() {
		written, _ := NewSimpleCopier(backendNear, clientFar, time.Second).Run()
		assert.Equal(t, int64(4), written)
		close(done)
	}()

	_, err := clientNear.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, clientNear.Close())

	received, err := io.ReadAll(backendFar)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(received))
	<-done
}

func TestSimpleCopierHalfClose(t *testing.T) {
	clientNear, clientFar := tcpPair(t)
	backendNear, backendFar := tcpPair(t)
	defer clientNear.Close()
	defer clientFar.Close()
	defer backendNear.Close()
	defer backendFar.Close()

	go func() { _, _ = NewSimpleCopier(backendNear, clientFar, time.Second).Run() }()
	go func() { _, _ = NewSimpleCopier(clientFar, backendNear, time.Second).Run() }()

	// Client half-closes its write side; the response direction must still
	// deliver data afterwards.
	_, err := clientNear.Write([]byte("req"))
	require.NoError(t, err)
	require.NoError(t, clientNear.(*net.TCPConn).CloseWrite())

	buf := make([]byte, 3)
	_, err = io.ReadFull(backendFar, buf)
	require.NoError(t, err)
	assert.Equal(t, "req", string(buf))

	_, err = backendFar.Write([]byte("res"))
	require.NoError(t, err)

	_, err = io.ReadFull(clientNear, buf)
	require.NoError(t, err)
	assert.Equal(t, "res", string(buf))
}

func TestIsClosedConnection(t *testing.T) {
	near, far := tcpPair(t)
	defer far.Close()
	require.NoError(t, near.Close())

	_, err := near.Write([]byte("x"))
	require.Error(t, err)
	assert.True(t, IsClosedConnection(err))

	assert.False(t, IsClosedConnection(errors.New("some other failure")))
}

func TestIsTimeout(t *testing.T) {
	near, far := tcpPair(t)
	defer near.Close()
	defer far.Close()

	require.NoError(t, near.SetReadDeadline(time.Now().Add(10*time.Millisecond)))
	_, err := near.Read(make([]byte, 1))
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("not a timeout")))
}
