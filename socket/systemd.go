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
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/pkg/errors"
)

// systemdSocket fetches a listener from the set of file descriptors passed
// in by systemd socket activation, selected by FileDescriptorName.
func systemdSocket(name string) (net.Listener, error) {
	listeners, err := activation.ListenersWithNames()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read systemd activation sockets")
	}

	named, ok := listeners[name]
	if !ok {
		return nil, errors.Errorf("no systemd socket with name '%s' found", name)
	}
	if len(named) != 1 {
		return nil, errors.Errorf("expected exactly one systemd socket for name '%s', got %d", name, len(named))
	}

	return named[0], nil
}
