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
	"os"
	"os/signal"
	"syscall"

	"github.com/certrotor/certrotor/certloader"
	"github.com/certrotor/certrotor/proxy"
)

// signalHandler reacts to signals sent to the process:
//
//	SIGTERM, SIGINT: graceful shutdown, stop accepting and drain connections.
//	SIGUSR1: log a rotation progress report without disturbing the proxy.
func signalHandler(p *proxy.Proxy, pool *certloader.Pool) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)

	for sig := range signals {
		switch sig {
		case syscall.SIGUSR1:
			logRotationProgress(pool)
		default:
			logger.Printf("received %s, shutting down", sig)
			p.Shutdown()
			return
		}
	}
}

func logRotationProgress(pool *certloader.Pool) {
	total := pool.TotalConnections()
	size := pool.Size()
	logger.Printf("rotation progress: %d connections handled across %d pool entries", total, size)
	if total > 0 {
		// The cursor has already advanced past the last presented entry.
		last := int((total - 1) % uint64(size))
		logger.Printf("last presented entry: %d (%s)", last, pool.Entry(last).CertPath)
	}
}
