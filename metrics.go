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
	"net/http"

	graphite "github.com/cyberdelia/go-metrics-graphite"
	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/rcrowley/go-metrics"
	sqmetrics "github.com/square/go-sq-metrics"
)

// metricsHandlers groups the HTTP endpoints that expose collected metrics.
type metricsHandlers struct {
	// JSON dump of the registry, also POSTs to --metrics-url if set.
	bridge *sqmetrics.SquareMetrics
	// Prometheus text format endpoint, nil unless --metrics-prometheus.
	prometheus http.Handler
}

// configureMetrics starts the configured background reporters and returns
// handlers for mounting on the status server. All reporters read from the
// default registry, which the proxy and supplier packages feed.
func configureMetrics() *metricsHandlers {
	if *graphiteAddr != nil {
		logger.Printf("metrics enabled; reporting metrics to graphite at %s", (*graphiteAddr).String())
		go graphite.Graphite(metrics.DefaultRegistry, *metricsInterval, *metricsPrefix, *graphiteAddr)
	}

	if *metricsURL != "" {
		logger.Printf("metrics enabled; posting metrics to %s", *metricsURL)
	}

	// SquareMetrics only POSTs if the URL is non-empty, but always serves
	// the JSON dump for the /_metrics endpoint.
	bridge := sqmetrics.NewMetrics(*metricsURL, *metricsPrefix, http.DefaultClient, *metricsInterval, metrics.DefaultRegistry, logger)

	handlers := &metricsHandlers{bridge: bridge}
	if *enablePrometheus {
		provider := prometheusmetrics.NewPrometheusProvider(metrics.DefaultRegistry, *metricsPrefix, "", prometheus.DefaultRegisterer, *metricsInterval)
		go provider.UpdatePrometheusMetrics()
		handlers.prometheus = promhttp.Handler()
	}

	return handlers
}
