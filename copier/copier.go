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

// Package copier moves data between the two halves of a proxied connection,
// with half-close semantics so that a client that shuts down one direction
// can still receive data flowing the other way.
package copier

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Pool of shared copy buffers, to reduce allocations across connections.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 1<<15 /* 32 KiB */)
		return &b
	},
}

// Copier copies data from a source connection to a destination connection
// and reports how many bytes were moved.
type Copier interface {
	Run() (written int64, err error)
}

type simpleCopier struct {
	dst, src     net.Conn
	closeTimeout time.Duration
}

// NewSimpleCopier returns a copier that moves data from src to dst until EOF
// or error, without filtering anything. When the copy finishes it half-closes
// the pair (CloseRead on src, CloseWrite on dst) and arms a deadline so the
// opposite-direction copier can't hang forever on a silent peer.
func NewSimpleCopier(dst, src net.Conn, closeTimeout time.Duration) Copier {
	return simpleCopier{dst: dst, src: src, closeTimeout: closeTimeout}
}

func (c simpleCopier) Run() (int64, error) {
	// Closing only the read/write sides sends a FIN but keeps the opposite
	// direction usable for half-closed peers. The deadline prevents resource
	// leaks from peers that stop reading/writing without closing: it forces
	// the other direction's copy to unblock with an i/o timeout.
	defer func() {
		closeRead(c.src)
		closeWrite(c.dst)
		setDeadline(c.src, c.closeTimeout)
		setDeadline(c.dst, c.closeTimeout)
	}()

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	// The src/dst are wrapped to hide WriteTo/ReadFrom: CopyBuffer would
	// otherwise try splice/sendfile, fall back to a recursive io.Copy for TLS
	// connections, and throw away the pooled buffer.
	//
	// See: https://github.com/golang/go/issues/16474
	// See: https://github.com/golang/go/issues/67074
	return io.CopyBuffer(
		struct{ io.Writer }{c.dst},
		struct{ io.Reader }{c.src},
		*buf)
}

// IsClosedConnection reports whether an error is a read/write on an already
// closed connection, which is the normal way a copy ends when the other
// direction shuts the pipe down.
func IsClosedConnection(err error) bool {
	opErr := &net.OpError{}
	if errors.As(err, &opErr) {
		return (opErr.Op == "read" || opErr.Op == "readfrom" || opErr.Op == "write" || opErr.Op == "writeto") &&
			strings.Contains(err.Error(), "closed network connection")
	}
	return strings.Contains(err.Error(), "closed pipe")
}

// IsTimeout reports whether an error is a network timeout or a deadline
// expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded)
}

func closeRead(conn net.Conn) {
	switch c := conn.(type) {
	case *net.TCPConn:
		_ = c.CloseRead()
	case *net.UnixConn:
		_ = c.CloseRead()
	default:
		_ = c.Close()
	}
}

func closeWrite(conn net.Conn) {
	switch c := conn.(type) {
	case *net.TCPConn:
		_ = c.CloseWrite()
	case *net.UnixConn:
		_ = c.CloseWrite()
	default:
		_ = c.Close()
	}
}

func setDeadline(conn net.Conn, timeout time.Duration) {
	_ = conn.SetDeadline(time.Now().Add(timeout))
}
