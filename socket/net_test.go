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

package socket

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	network, address, host, _ := ParseAddress("unix:/tmp/foo")
	if network != "unix" {
		t.Errorf("unexpected network: %s", network)
	}
	if address != "/tmp/foo" {
		t.Errorf("unexpected address: %s", address)
	}
	if host != "" {
		t.Errorf("unexpected host: %s", host)
	}

	network, address, host, _ = ParseAddress("localhost:8080")
	if network != "tcp" {
		t.Errorf("unexpected network: %s", network)
	}
	if address != "localhost:8080" {
		t.Errorf("unexpected address: %s", address)
	}
	if host != "localhost" {
		t.Errorf("unexpected host: %s", host)
	}

	network, address, host, _ = ParseAddress("systemd:test")
	if network != "systemd" {
		t.Errorf("unexpected network: %s", network)
	}
	if address != "test" {
		t.Errorf("unexpected address: %s", address)
	}
	if host != "" {
		t.Errorf("unexpected host: %s", host)
	}

	_, _, _, err := ParseAddress("localhost")
	assert.NotNil(t, err, "was able to parse invalid host/port")

	_, _, _, err = ParseAddress("256.256.256.256:99999")
	assert.NotNil(t, err, "was able to parse invalid host/port")

	_, _, _, err = ParseAddress("systemdfoobar")
	assert.NotNil(t, err, "was able to parse invalid host/port")
}

func TestOpenTCPSocket(t *testing.T) {
	ln, err := Open("tcp", "127.0.0.1:0")
	assert.Nil(t, err, "should be able to open TCP socket on random port")
	defer func() { _ = ln.Close() }()
	assert.NotNil(t, ln.Addr(), "listener should have an address")
}

func TestOpenUnixSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := Open("unix", sockPath)
	assert.Nil(t, err, "should be able to open Unix socket")
	defer func() { _ = ln.Close() }()
	assert.NotNil(t, ln.Addr(), "listener should have an address")
}

func TestOpenSystemdSocketMissing(t *testing.T) {
	// Not running under systemd here, so activation can't provide anything.
	_, err := Open("systemd", "missing-socket")
	assert.NotNil(t, err, "should fail without systemd activation sockets")
}

func TestParseAndOpenTCPSuccess(t *testing.T) {
	ln, err := ParseAndOpen("127.0.0.1:0")
	assert.Nil(t, err, "should be able to parse and open TCP address")
	defer func() { _ = ln.Close() }()
}

func TestParseAndOpenUnixSuccess(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := ParseAndOpen("unix:" + sockPath)
	assert.Nil(t, err, "should be able to parse and open Unix socket")
	defer func() { _ = ln.Close() }()
}

func TestParseAndOpenInvalidAddress(t *testing.T) {
	_, err := ParseAndOpen("invalid-no-port")
	assert.NotNil(t, err, "should fail to parse invalid address")
}
