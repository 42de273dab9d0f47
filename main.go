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
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strings"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	gsyslog "github.com/hashicorp/go-syslog"

	"github.com/certrotor/certrotor/certloader"
	"github.com/certrotor/certrotor/proxy"
	"github.com/certrotor/certrotor/socket"
)

// Optionally overridden via -ldflags at build time
var version = "master"

var defaultMetricsPrefix = "certrotor"

var (
	app = kingpin.New("certrotor", "A TCP proxy that fronts a TLS backend with a rotating pool of client certificates, presenting the next credential in round-robin order for every forwarded connection.")

	listenAddress      = app.Flag("listen", "Address and port to listen on (HOST:PORT, unix:PATH, or systemd:NAME).").PlaceHolder("ADDR").Required().String()
	forwardAddress     = app.Flag("target", "TLS backend to forward connections to (HOST:PORT, or unix:PATH).").PlaceHolder("ADDR").Required().String()
	certPaths          = app.Flag("cert", "Path to a PEM certificate (or chain) for the rotation pool, repeat to add entries. Paired with --key by position.").PlaceHolder("PATH").Required().Strings()
	keyPaths           = app.Flag("key", "Path to the PEM private key matching the --cert at the same position, repeat to add entries.").PlaceHolder("PATH").Required().Strings()
	caBundlePath       = app.Flag("cacert", "Path to CA bundle file (PEM/X509) for verifying the backend. Uses system trust store if omitted.").PlaceHolder("PATH").String()
	overrideServerName = app.Flag("override-server-name", "Server name to use for backend hostname verification and SNI (required for unix: targets).").PlaceHolder("NAME").String()
	connectTimeout     = app.Flag("connect-timeout", "Timeout for establishing connections to the backend.").Default("10s").Duration()
	closeTimeout       = app.Flag("close-timeout", "Timeout for closing connections after one side has drained.").Default("10s").Duration()
	maxConnLifetime    = app.Flag("max-conn-lifetime", "Maximum lifetime for a proxied connection (0 means unlimited).").Default("0s").Duration()
	maxConcurrency     = app.Flag("max-concurrency", "Maximum number of concurrent proxied connections (0 means unlimited).").Default("0").Int64()
	proxyProtocol      = app.Flag("proxy-protocol", "Send a PROXY protocol v2 header to the backend on connect.").Bool()
	logTLSInfo         = app.Flag("log-tls-info", "Log detailed TLS handshake and peer certificate info for backend connections.").Bool()
	quiet              = app.Flag("quiet", "Disable per-connection open/close log messages.").Bool()
	statusAddress      = app.Flag("status", "Enable serving /_status and /_metrics on given HOST:PORT (or unix:PATH, systemd:NAME).").PlaceHolder("ADDR").String()
	enableProf         = app.Flag("enable-pprof", "Enable serving /debug/pprof endpoints alongside /_status (for profiling).").Bool()
	graphiteAddr       = app.Flag("metrics-graphite", "Collect metrics and report them to the given graphite instance (raw TCP).").PlaceHolder("ADDR").TCP()
	metricsURL         = app.Flag("metrics-url", "Collect metrics and POST them periodically to the given URL (via HTTP/JSON).").PlaceHolder("URL").String()
	metricsPrefix      = app.Flag("metrics-prefix", fmt.Sprintf("Set prefix string for all reported metrics (default: %s).", defaultMetricsPrefix)).PlaceHolder("PREFIX").Default(defaultMetricsPrefix).String()
	metricsInterval    = app.Flag("metrics-interval", "Interval for reporting metrics to graphite/URL/prometheus collectors.").Default("30s").Duration()
	enablePrometheus   = app.Flag("metrics-prometheus", "Expose metrics in Prometheus format on /_metrics/prometheus (requires --status).").Bool()
	useSyslog          = app.Flag("syslog", "Send logs to syslog instead of stderr.").Bool()
	shutdownTimeout    = app.Flag("shutdown-timeout", "Time to allow connections to drain on shutdown before exiting anyway.").Default("5m").Duration()
)

// Global logger instance
var logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// syslogWriter adapts a gsyslog.Syslogger into an io.Writer for log.New.
type syslogWriter struct {
	gsyslog.Syslogger
}

func (w syslogWriter) Write(p []byte) (int, error) {
	err := w.WriteLevel(gsyslog.LOG_NOTICE, p)
	return len(p), err
}

func initLogger() error {
	if *useSyslog {
		writer, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, "DAEMON", "certrotor")
		if err != nil {
			return err
		}
		logger = log.New(syslogWriter{writer}, "", 0)
	}

	// Set log prefix to process ID to distinguish parent/child
	logger.SetPrefix(fmt.Sprintf("[%5d] ", os.Getpid()))
	return nil
}

// Validate flags
func validateFlags(app *kingpin.Application) error {
	if len(*certPaths) != len(*keyPaths) {
		return fmt.Errorf("--cert and --key must be repeated the same number of times (got %d certs, %d keys)", len(*certPaths), len(*keyPaths))
	}
	if *enableProf && *statusAddress == "" {
		return fmt.Errorf("--enable-pprof requires --status to be set")
	}
	if *enablePrometheus && *statusAddress == "" {
		return fmt.Errorf("--metrics-prometheus requires --status to be set")
	}
	if *metricsURL != "" && !strings.HasPrefix(*metricsURL, "http://") && !strings.HasPrefix(*metricsURL, "https://") {
		return fmt.Errorf("--metrics-url should start with http:// or https://")
	}
	if strings.HasPrefix(*forwardAddress, "systemd:") {
		return fmt.Errorf("--target must be a TCP address or UNIX socket")
	}
	if strings.HasPrefix(*forwardAddress, "unix:") && *overrideServerName == "" {
		return fmt.Errorf("--override-server-name is required when --target is a UNIX socket")
	}
	return nil
}

func main() {
	app.Version(fmt.Sprintf("rev %s built with %s", version, runtime.Version()))
	app.Validate(validateFlags)

	if len(os.Args) == 1 {
		fmt.Fprintf(os.Stderr, "error: no flags provided, try --help\n")
		os.Exit(1)
	}

	_, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s, try --help\n", err)
		os.Exit(1)
	}

	err = initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: unable to set up logger: %s\n", err)
		os.Exit(1)
	}

	os.Exit(run())
}

func run() int {
	pool, err := certloader.NewPool(*certPaths, *keyPaths)
	if err != nil {
		logger.Printf("error building credential pool: %s", err)
		return 1
	}
	logPoolSummary(pool)

	supplier := certloader.NewRotatingSupplier(pool, logger)

	trustStore, err := certloader.LoadTrustStore(*caBundlePath)
	if err != nil {
		logger.Printf("error loading trust store: %s", err)
		return 1
	}

	base, err := buildBackendTLSConfig(*forwardAddress, *overrideServerName)
	if err != nil {
		logger.Printf("error setting up TLS: %s", err)
		return 1
	}
	clientConfig := certloader.TLSClientConfigFromSupplier(supplier, trustStore, base)

	dial, rawDial, err := backendDialers(clientConfig)
	if err != nil {
		logger.Printf("error: invalid backend address: %s", err)
		return 1
	}

	listener, err := socket.ParseAndOpen(*listenAddress)
	if err != nil {
		logger.Printf("error opening listening socket: %s", err)
		return 1
	}

	p := proxy.New(
		listener,
		*connectTimeout,
		*closeTimeout,
		*maxConnLifetime,
		*maxConcurrency,
		dial,
		logger,
		!*quiet,
		*proxyProtocol)

	handlers := configureMetrics()

	status := newStatusHandler(rawDial, pool)
	if *statusAddress != "" {
		err = serveStatus(status, handlers)
		if err != nil {
			logger.Printf("error starting status server: %s", err)
			return 1
		}
	}

	go signalHandler(p, pool)

	watchdogShutdown := make(chan bool, 1)
	go func() {
		_ = systemdHandleWatchdog(status.BackendReachable, watchdogShutdown)
	}()

	status.Listening()
	systemdNotifyReady()
	logger.Printf("listening on %s, forwarding to %s", *listenAddress, *forwardAddress)

	p.Accept()

	close(watchdogShutdown)
	waitWithTimeout(p, *shutdownTimeout)

	systemdNotifyStopping()
	logger.Printf("shutting down: %d connections handled in total", pool.TotalConnections())
	return 0
}

// Log a summary of the credential pool on startup, so operators can tell
// which files participate in the rotation and in which order.
func logPoolSummary(pool *certloader.Pool) {
	logger.Printf("credential pool loaded with %d entries", pool.Size())
	for i := 0; i < pool.Size(); i++ {
		entry := pool.Entry(i)
		logger.Printf("  entry %d: cert=%s key=%s", i, entry.CertPath, entry.KeyPath)
	}
}

// Serve /_status and /_metrics (if configured)
func serveStatus(status *statusHandler, handlers *metricsHandlers) error {
	mux := http.NewServeMux()
	mux.Handle("/_status", status)
	mux.Handle("/_metrics", handlers.bridge)
	if handlers.prometheus != nil {
		mux.Handle("/_metrics/prometheus", handlers.prometheus)
	}
	if *enableProf {
		mux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
		mux.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
		mux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
		mux.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
		mux.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	}

	listener, err := socket.ParseAndOpen(*statusAddress)
	if err != nil {
		return err
	}

	logger.Printf("status port enabled; serving status on http://%s/_status", listener.Addr().String())
	server := &http.Server{
		Handler:  mux,
		ErrorLog: logger,
	}
	go func() {
		_ = server.Serve(listener)
	}()

	return nil
}

// Wait for connections to drain, but give up after the shutdown timeout so a
// stuck connection can't keep the process alive forever.
func waitWithTimeout(p *proxy.Proxy, timeout time.Duration) {
	drained := make(chan struct{})
	go func() {
		p.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(timeout):
		logger.Printf("shutdown timeout of %s exceeded, exiting with connections still open", timeout)
	}
}
