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
	"fmt"
	"path/filepath"

	metrics "github.com/rcrowley/go-metrics"
)

var (
	supplyCounter      = metrics.GetOrRegisterCounter("supply.total", metrics.DefaultRegistry)
	supplyErrorCounter = metrics.GetOrRegisterCounter("supply.error", metrics.DefaultRegistry)
)

// SupplyError wraps a credential load failure for a single connection
// attempt. The rotation cursor has already advanced by the time this is
// returned, so a broken entry does not stall rotation of the remaining good
// entries; that slot is simply skipped for the cycle.
type SupplyError struct {
	// Index of the pool entry whose load failed.
	Index int
	// Path of the file that failed to load.
	Path string
	// Err is the underlying load error.
	Err error
}

func (e *SupplyError) Error() string {
	return fmt.Sprintf("unable to supply credentials from '%s' (pool entry %d): %s", e.Path, e.Index, e.Err)
}

func (e *SupplyError) Unwrap() error {
	return e.Err
}

// RotatingSupplier hands out credentials for outbound connections, drawing
// entries from a shared Pool in round-robin order. Certificates and keys are
// parsed from disk on every call rather than cached, so files replaced on
// disk take effect on the very next connection.
//
// A RotatingSupplier is safe for concurrent use: it holds no lock beyond the
// pool's atomic cursor, and the paths it reads are immutable and validated
// at pool construction.
type RotatingSupplier struct {
	pool   *Pool
	logger Logger
}

// NewRotatingSupplier creates a supplier drawing from the given pool. The
// logger receives one record per connection attempt naming the selected
// entry; it may not be nil.
func NewRotatingSupplier(pool *Pool, logger Logger) *RotatingSupplier {
	return &RotatingSupplier{
		pool:   pool,
		logger: logger,
	}
}

// Pool returns the pool this supplier draws from.
func (s *RotatingSupplier) Pool() *Pool {
	return s.pool
}

// Credentials selects the next pool entry and materializes it into a
// tls.Certificate. Invoked once per outbound connection. On a load failure
// the already-consumed rotation slot is not returned to the pool.
func (s *RotatingSupplier) Credentials() (*tls.Certificate, error) {
	entry, index := s.pool.Next()
	connection := s.pool.TotalConnections()
	supplyCounter.Inc(1)

	key, algorithm, err := LoadPrivateKey(entry.KeyPath)
	if err != nil {
		supplyErrorCounter.Inc(1)
		return nil, &SupplyError{Index: index, Path: entry.KeyPath, Err: err}
	}

	chain, err := LoadCertificateChain(entry.CertPath)
	if err != nil {
		supplyErrorCounter.Inc(1)
		return nil, &SupplyError{Index: index, Path: entry.CertPath, Err: err}
	}

	cert := &tls.Certificate{
		PrivateKey: key,
		Leaf:       chain[0],
	}
	for _, c := range chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	s.logger.Printf("connection %d: presenting '%s' from %s (entry %d of %d, %s key)",
		connection,
		chain[0].Subject.CommonName,
		filepath.Base(entry.CertPath),
		index+1,
		s.pool.Size(),
		algorithm)

	return cert, nil
}

// GetClientCertificate supplies the next certificate in the rotation. Can be
// used for tls.Config's GetClientCertificate callback, so that every TLS
// handshake triggers a fresh selection.
func (s *RotatingSupplier) GetClientCertificate(certInfo *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return s.Credentials()
}
