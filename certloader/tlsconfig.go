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
	"crypto/tls"
	"crypto/x509"
)

// TLSClientConfig can build TLS configuration for use as a TLS client.
type TLSClientConfig interface {
	// GetClientConfig returns a TLS configuration for use as a TLS client.
	// It is safe to call concurrently.
	GetClientConfig() *tls.Config
}

type supplierTLSConfig struct {
	supplier   *RotatingSupplier
	trustStore *x509.CertPool
	base       *tls.Config
}

// TLSClientConfigFromSupplier wires a rotating credential supplier into TLS
// client configuration. The base configuration is cloned for every returned
// config; the supplier's GetClientCertificate callback is installed so that
// each handshake selects the next pool entry. The trust store verifies the
// backend and may be nil to use system roots.
func TLSClientConfigFromSupplier(supplier *RotatingSupplier, trustStore *x509.CertPool, base *tls.Config) TLSClientConfig {
	if base == nil {
		base = new(tls.Config)
	}
	return &supplierTLSConfig{
		supplier:   supplier,
		trustStore: trustStore,
		base:       base,
	}
}

func (c *supplierTLSConfig) GetClientConfig() *tls.Config {
	config := c.base.Clone()
	config.GetClientCertificate = c.supplier.GetClientCertificate
	config.RootCAs = c.trustStore
	return config
}
