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

package certloader

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "tls: DialWithDialer timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// Dialer is an interface for dialers, usually a net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type supplierDialer struct {
	config  TLSClientConfig
	timeout time.Duration
	dialer  Dialer
}

// DialerWithSupplier creates a dialer that performs a TLS client handshake on
// every new connection using a config built fresh from the given source. With
// a rotating supplier behind the config, each dial presents the next identity
// from the pool.
func DialerWithSupplier(config TLSClientConfig, timeout time.Duration, dialer Dialer) Dialer {
	return &supplierDialer{
		config:  config,
		timeout: timeout,
		dialer:  dialer,
	}
}

func (d *supplierDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return dialWithDialer(d.dialer, ctx, d.timeout, network, address, d.config.GetClientConfig())
}

// Internal copy of tls.DialWithDialer, adapted to take a context and work
// with custom dialers. See https://golang.org/pkg/crypto/tls/#DialWithDialer
// for the original implementation.
func dialWithDialer(dialer Dialer, ctx context.Context, timeout time.Duration, network, addr string, config *tls.Config) (*tls.Conn, error) {
	errChannel := make(chan error, 2)
	timer := time.AfterFunc(timeout, func() {
		errChannel <- timeoutError{}
	})
	defer timer.Stop()

	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(rawConn, config)
	go func() {
		errChannel <- conn.HandshakeContext(ctx)
	}()

	err = <-errChannel

	if err != nil {
		rawConn.Close()
		return nil, err
	}

	return conn, nil
}
