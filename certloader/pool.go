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
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Entry is a single certificate/key pair in a credential pool.
type Entry struct {
	// CertPath is the path to a PEM file with the certificate chain, leaf first.
	CertPath string
	// KeyPath is the path to a PEM file with the matching private key.
	KeyPath string
}

// Pool is a fixed, ordered collection of certificate/key pairs with a shared
// rotation cursor. The entries are immutable after construction; the cursor is
// the only mutable state and is advanced atomically, so a single Pool instance
// may be shared by any number of listeners and in-flight connections. Sharing
// one Pool is what makes rotation global: every connection draws from the same
// sequence regardless of which listener it arrived on.
type Pool struct {
	entries []Entry
	cursor  atomic.Uint64
}

// NewPool builds a pool from parallel lists of certificate and key paths.
// Every referenced file must exist and be readable; validation happens here,
// once, so that selection can never fail at connection time.
func NewPool(certPaths, keyPaths []string) (*Pool, error) {
	if len(certPaths) == 0 || len(keyPaths) == 0 {
		return nil, errors.New("credential pool must have at least one certificate/key pair")
	}
	if len(certPaths) != len(keyPaths) {
		return nil, errors.Errorf(
			"number of certificate paths (%d) must match number of key paths (%d)",
			len(certPaths), len(keyPaths))
	}

	entries := make([]Entry, 0, len(certPaths))
	for i := range certPaths {
		if err := checkReadable(certPaths[i]); err != nil {
			return nil, errors.Wrapf(err, "certificate file '%s'", certPaths[i])
		}
		if err := checkReadable(keyPaths[i]); err != nil {
			return nil, errors.Wrapf(err, "key file '%s'", keyPaths[i])
		}
		entries = append(entries, Entry{CertPath: certPaths[i], KeyPath: keyPaths[i]})
	}

	return &Pool{entries: entries}, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Next advances the rotation cursor and returns the entry whose turn it is,
// along with its index. The increment-and-read is a single atomic step: two
// concurrent callers never consume the same cursor value, and no value is
// skipped. The sequence of indices, ordered by the instant each increment
// commits, is a strict round-robin 0,1,...,N-1,0,...
func (p *Pool) Next() (Entry, int) {
	index := int((p.cursor.Add(1) - 1) % uint64(len(p.entries)))
	return p.entries[index], index
}

// TotalConnections returns the current cursor value, i.e. how many selections
// have been made so far. This is a snapshot read for diagnostics; it is not
// synchronized with in-flight selections.
func (p *Pool) TotalConnections() uint64 {
	return p.cursor.Load()
}

// Size returns the number of entries in the pool.
func (p *Pool) Size() int {
	return len(p.entries)
}

// Entry returns the pool entry at the given index.
func (p *Pool) Entry(index int) Entry {
	return p.entries[index]
}
