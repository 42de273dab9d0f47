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
	"crypto/tls"

	"github.com/pkg/errors"

	"github.com/certrotor/certrotor/socket"
)

// buildBackendTLSConfig builds the base TLS configuration for backend
// connections. The server name comes from the target host, unless overridden.
// Unix socket targets have no host to verify against, so the override is
// mandatory for them.
func buildBackendTLSConfig(target, serverNameOverride string) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if serverNameOverride != "" {
		config.ServerName = serverNameOverride
		return config, nil
	}

	network, _, host, err := socket.ParseAddress(target)
	if err != nil {
		return nil, errors.Wrap(err, "invalid target address")
	}
	if network != "tcp" {
		return nil, errors.Errorf("--override-server-name is required for %s targets", network)
	}

	config.ServerName = host
	return config, nil
}
