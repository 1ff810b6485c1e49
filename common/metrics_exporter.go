// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultMetricsAddr is the listen address for the Prometheus scrape
// endpoint when a deployment doesn't override it.
const DefaultMetricsAddr = ":9189"

// StartMetricsExporter wires a Prometheus collector into the global
// MeterProvider and serves it over HTTP at addr+"/metrics", the
// production counterpart of the otel.SetMeterProvider(metric.
// NewMeterProvider(metric.WithReader(reader))) wiring the teacher's
// test harness does with a metric.ManualReader -- here the reader is
// a real exporter instead of one a test collects from directly.
//
// The returned ShutdownFn stops the HTTP server and flushes the
// MeterProvider; callers should invoke it during Fini.
func StartMetricsExporter(addr string) (ShutdownFn, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	return func(ctx context.Context) error {
		shutdownErr := srv.Shutdown(ctx)
		<-errCh
		return errors.Join(shutdownErr, provider.Shutdown(ctx))
	}, nil
}
