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
	"context"
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
	certigo "github.com/square/certigo/lib"

	"github.com/certrotor/certrotor/certloader"
	"github.com/certrotor/certrotor/proxy"
	"github.com/certrotor/certrotor/socket"
)

// backendDialers builds the two dial paths to the backend: the TLS dialer
// used for proxied connections, which picks up the next pool credential on
// every call, and a raw dialer for health checks. The raw dialer must stay
// plaintext so that status probes never advance the rotation cursor.
func backendDialers(config certloader.TLSClientConfig) (proxy.DialFunc, func() (net.Conn, error), error) {
	network, address, _, err := socket.ParseAddress(*forwardAddress)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid target address")
	}
	if network != "tcp" && network != "unix" {
		return nil, nil, errors.Errorf("target must be a TCP address or UNIX socket, got '%s'", network)
	}

	dialer := certloader.DialerWithSupplier(config, *connectTimeout, &net.Dialer{Timeout: *connectTimeout})

	dial := func(ctx context.Context) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if *logTLSInfo {
			logTLSConnectionInfo(conn)
		}
		return conn, nil
	}

	rawDial := func() (net.Conn, error) {
		return net.DialTimeout(network, address, *connectTimeout)
	}

	return dial, rawDial, nil
}

// logTLSConnectionInfo dumps handshake and peer certificate details for a
// completed backend connection.
func logTLSConnectionInfo(conn net.Conn) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return
	}
	state := tlsConn.ConnectionState()
	logger.Printf("backend connection info:\n%s", certigo.EncodeTLSInfoToText(&state, nil))
}
