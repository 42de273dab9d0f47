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

// Package proxy accepts plaintext connections from a listener and forwards
// them to a TLS backend through a dialer. The dialer owns the TLS handshake,
// so whatever credential selection it performs (such as round-robin rotation)
// happens once per forwarded connection.
package proxy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/certrotor/certrotor/copier"
	proxyproto "github.com/pires/go-proxyproto"
	metrics "github.com/rcrowley/go-metrics"
	sem "golang.org/x/sync/semaphore"
)

var (
	openCounter      = metrics.GetOrRegisterCounter("conn.open", metrics.DefaultRegistry)
	timeoutCounter   = metrics.GetOrRegisterCounter("conn.timeout", metrics.DefaultRegistry)
	totalCounter     = metrics.GetOrRegisterCounter("accept.total", metrics.DefaultRegistry)
	successCounter   = metrics.GetOrRegisterCounter("accept.success", metrics.DefaultRegistry)
	errorCounter     = metrics.GetOrRegisterCounter("accept.error", metrics.DefaultRegistry)
	dialErrorCounter = metrics.GetOrRegisterCounter("backend.dial.error", metrics.DefaultRegistry)
	connTimer        = metrics.GetOrRegisterTimer("conn.lifetime", metrics.DefaultRegistry)
)

// Logger is used by this package to log messages
type Logger interface {
	Printf(format string, v ...interface{})
}

// DialFunc represents a function that can dial the backend to forward
// connections to.
type DialFunc func(context.Context) (net.Conn, error)

// Proxy takes incoming connections from a listener and forwards them to a
// backend through the given dialer.
type Proxy struct {
	// Listener to accept connections on.
	Listener net.Listener
	// ConnectTimeout, CloseTimeout limit time to establish/drain connections.
	ConnectTimeout, CloseTimeout time.Duration
	// MaxConnLifetime is the max lifetime for any connection, regardless of
	// circumstances.
	MaxConnLifetime time.Duration
	// Dial function to reach the backend.
	Dial DialFunc
	// Logger is used to log information messages about connections, errors.
	Logger Logger

	// Log open/close messages per connection
	logConnections bool
	// Send HAProxy's PROXY protocol header to the backend
	// see: https://www.haproxy.org/download/1.8/doc/proxy-protocol.txt
	proxyProtocol bool
	// Internal wait group to keep track of outstanding handlers.
	handlers *sync.WaitGroup
	// Semaphore to limit the max. number of connections.
	connSemaphore semaphore
	// Context & associated cancel func
	context context.Context
	cancel  context.CancelFunc
}

// New creates a new proxy around the given listener and backend dialer. A
// maxConcurrentConnections of zero means unlimited.
func New(
	listener net.Listener,
	connectTimeout, closeTimeout, maxConnLifetime time.Duration,
	maxConcurrentConnections int64,
	dial DialFunc,
	logger Logger,
	logConnections bool,
	proxyProtocol bool) *Proxy {

	ctx, cancel := context.WithCancel(context.Background())

	p := &Proxy{
		Listener:        listener,
		ConnectTimeout:  connectTimeout,
		CloseTimeout:    closeTimeout,
		MaxConnLifetime: maxConnLifetime,
		Dial:            dial,
		Logger:          logger,
		logConnections:  logConnections,
		proxyProtocol:   proxyProtocol,
		handlers:        &sync.WaitGroup{},
		context:         ctx,
		cancel:          cancel,
	}

	if maxConcurrentConnections > 0 {
		p.connSemaphore = sem.NewWeighted(maxConcurrentConnections)
	} else {
		p.connSemaphore = &unlimitedSemaphore{}
	}

	// Add one handler to the wait group, so that Wait() will always block
	// until Shutdown() is called even if the proxy hasn't started yet. This
	// prevents a race condition if someone calls Accept() in a Goroutine and
	// then immediately calls Wait() on the proxy object.
	p.handlers.Add(1)
	return p
}

// Shutdown tells the proxy to close the listener & stop accepting connections.
func (p *Proxy) Shutdown() {
	if err := p.context.Err(); err != nil {
		// Already cancelled
		return
	}
	p.cancel()
	p.Listener.Close()
	p.handlers.Done()
}

// Wait until the proxy is shut down (listener closed, connections drained).
func (p *Proxy) Wait() {
	p.handlers.Wait()
}

// Accept incoming connections and spawn Go routines to forward them to the
// backend. Will stop accepting connections if Shutdown() is called. Run this
// in a Goroutine, call Wait() to block on proxy shutdown/connection drain.
func (p *Proxy) Accept() {
	for {
		// Acquire semaphore, to limit max concurrent connections
		err := p.connSemaphore.Acquire(p.context, 1)
		if err != nil {
			// Context was cancelled -- we're done here
			return
		}

		conn, err := p.Listener.Accept()
		if err != nil {
			if err := p.context.Err(); err != nil {
				return
			}

			errorCounter.Inc(1)
			p.connSemaphore.Release(1)
			continue
		}

		p.handlers.Add(1)
		go connTimer.Time(func() {
			openCounter.Inc(1)
			totalCounter.Inc(1)

			defer func() {
				conn.Close()
				openCounter.Dec(1)
				p.handlers.Done()
				p.connSemaphore.Release(1)
			}()

			ctx, cancel := context.WithTimeout(p.context, p.ConnectTimeout)
			defer cancel()

			// Each dial selects and presents the next credential in the
			// rotation before any client data is forwarded.
			backend, err := p.Dial(ctx)
			if err != nil {
				dialErrorCounter.Inc(1)
				p.Logger.Printf("error on backend dial: %s", err)
				return
			}

			if p.proxyProtocol {
				h := proxyProtoHeader(conn)
				_, err = h.WriteTo(backend)
				if err != nil {
					p.Logger.Printf("error writing proxy header: %s", err)
					backend.Close()
					return
				}
			}

			successCounter.Inc(1)
			p.fuse(conn, backend)
		})
	}
}

func proxyProtoHeader(c net.Conn) *proxyproto.Header {
	return &proxyproto.Header{
		Version:           2,
		Command:           proxyproto.PROXY,
		TransportProtocol: proxyproto.TCPv4,
		SourceAddr:        c.RemoteAddr(),
		DestinationAddr:   c.LocalAddr(),
	}
}

// Fuse connections together, forwarding client data to the backend and
// returning response data, until both directions have drained.
func (p *Proxy) fuse(client, backend net.Conn) {
	start := time.Now()
	p.logConnectionMessage("opening", client, backend, -1, -1, time.Time{})

	if p.MaxConnLifetime > 0 {
		_ = client.SetDeadline(time.Now().Add(p.MaxConnLifetime))
		_ = backend.SetDeadline(time.Now().Add(p.MaxConnLifetime))
	}

	// The copiers half-close the connections when their direction drains; we
	// still need to free up the FDs once both are done.
	defer func() {
		_ = client.Close()
		_ = backend.Close()
	}()

	returnedC := make(chan int64)
	go func() {
		n, err := copier.NewSimpleCopier(client, backend, p.CloseTimeout).Run()
		p.logCopyError(err)
		returnedC <- n
	}()
	forwarded, err := copier.NewSimpleCopier(backend, client, p.CloseTimeout).Run()
	p.logCopyError(err)
	returned := <-returnedC

	p.logConnectionMessage("closed", client, backend, forwarded, returned, start)
}

func (p *Proxy) logCopyError(err error) {
	if err == nil || copier.IsClosedConnection(err) {
		// A copy ending on a closed connection is the normal shutdown path;
		// the "closed" log line already covers it.
		return
	}
	if copier.IsTimeout(err) {
		timeoutCounter.Inc(1)
	}
	p.Logger.Printf("error during copy: %s", err)
}

// Log information message about connection
func (p *Proxy) logConnectionMessage(action string, client net.Conn, backend net.Conn, forwarded, returned int64, start time.Time) {
	if !p.logConnections {
		return
	}
	p.Logger.Printf(
		"%s pipe: %s:%s <-> %s:%s [backend: %s] %s",
		action,
		client.RemoteAddr().Network(),
		client.RemoteAddr().String(),
		backend.RemoteAddr().Network(),
		backend.RemoteAddr().String(),
		backendIdentityString(backend),
		connStatsString(forwarded, returned, time.Since(start)),
	)
}
